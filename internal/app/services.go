package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/conceptlab-backend/internal/concepts"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
	"github.com/yungbote/conceptlab-backend/internal/services"
	"github.com/yungbote/conceptlab-backend/internal/signals"
)

type Services struct {
	Dataset      services.DatasetService
	ConceptModel services.ConceptModelService
	Concept      services.ConceptService

	SignalRegistry *signals.Registry
}

func wireServices(db *gorm.DB, log *logger.Logger, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	registry := signals.NewRegistry()
	embedding := signals.NewOpenAIEmbedding(log, clients.OpenAI, clients.VectorCache)
	if err := registry.Register(embedding); err != nil {
		return Services{}, fmt.Errorf("register embedding signal: %w", err)
	}
	splitter := signals.NewSentenceSplitter()
	if err := registry.Register(splitter); err != nil {
		return Services{}, fmt.Errorf("register splitter signal: %w", err)
	}

	datasetService := services.NewDatasetService(log, repos.DatasetRow)

	modelService := services.NewConceptModelService(db, log, repos.Concept, repos.ConceptModel, concepts.ModelDeps{
		Registry: registry,
		Selector: datasetService,
		Splitter: splitter,
	})

	conceptService := services.NewConceptService(db, log, repos.Concept, modelService)

	return Services{
		Dataset:        datasetService,
		ConceptModel:   modelService,
		Concept:        conceptService,
		SignalRegistry: registry,
	}, nil
}
