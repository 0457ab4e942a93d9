package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/conceptlab-backend/internal/data/repos"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

type Repos struct {
	Concept      repos.ConceptRepo
	ConceptModel repos.ConceptModelRepo
	DatasetRow   repos.DatasetRowRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Concept:      repos.NewConceptRepo(db, log),
		ConceptModel: repos.NewConceptModelRepo(db, log),
		DatasetRow:   repos.NewDatasetRowRepo(db, log),
	}
}
