package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/conceptlab-backend/internal/concepts"
	"github.com/yungbote/conceptlab-backend/internal/data/repos"
	types "github.com/yungbote/conceptlab-backend/internal/domain"
	pkgerrors "github.com/yungbote/conceptlab-backend/internal/pkg/errors"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

// ConceptModelInfo is the wire projection of a concept model.
type ConceptModelInfo struct {
	Namespace     string                      `json:"namespace"`
	ConceptName   string                      `json:"concept_name"`
	EmbeddingName string                      `json:"embedding_name"`
	Version       int                         `json:"version"`
	ColumnInfo    *concepts.ConceptColumnInfo `json:"column_info,omitempty"`
}

// ConceptModelService owns the live model instances. Models are synced on
// read: every Get, List and Score call brings the model up to its concept's
// version first and persists the refreshed classifier state.
type ConceptModelService interface {
	Create(ctx context.Context, namespace, conceptName, embeddingName string, columnInfo *concepts.ConceptColumnInfo) (*ConceptModelInfo, error)
	Get(ctx context.Context, namespace, conceptName, embeddingName string) (*ConceptModelInfo, error)
	ListForConcept(ctx context.Context, namespace, conceptName string) ([]*ConceptModelInfo, error)
	ColumnInfos(ctx context.Context, namespace, conceptName string) ([]concepts.ConceptColumnInfo, error)
	Score(ctx context.Context, namespace, conceptName, embeddingName string, draft concepts.DraftID, texts []string, sensitivity concepts.Sensitivity) ([]float64, bool, error)
	RemoveAllForConcept(ctx context.Context, tx *gorm.DB, namespace, conceptName string) error
}

type modelKey struct {
	namespace string
	concept   string
	embedding string
}

// instance pairs a live model with the lock that serializes every sync and
// score against it. ConceptModel itself is single-threaded; concurrent
// requests for the same key share one instance and queue on its mutex.
type instance struct {
	mu sync.Mutex
	m  *concepts.ConceptModel
}

type conceptModelService struct {
	db          *gorm.DB
	log         *logger.Logger
	conceptRepo repos.ConceptRepo
	modelRepo   repos.ConceptModelRepo
	deps        concepts.ModelDeps

	// mu guards the cache map only; per-model state is under instance.mu.
	// The two locks are never held together.
	mu        sync.Mutex
	instances map[modelKey]*instance
}

func NewConceptModelService(
	db *gorm.DB,
	baseLog *logger.Logger,
	conceptRepo repos.ConceptRepo,
	modelRepo repos.ConceptModelRepo,
	deps concepts.ModelDeps,
) ConceptModelService {
	return &conceptModelService{
		db:          db,
		log:         baseLog.With("service", "ConceptModelService"),
		conceptRepo: conceptRepo,
		modelRepo:   modelRepo,
		deps:        deps,
		instances:   map[modelKey]*instance{},
	}
}

func (s *conceptModelService) Create(ctx context.Context, namespace, conceptName, embeddingName string, columnInfo *concepts.ConceptColumnInfo) (*ConceptModelInfo, error) {
	if err := s.requireConcept(ctx, namespace, conceptName); err != nil {
		return nil, err
	}

	// Sampling negatives reads the dataset, so build the model before
	// touching the cache lock. The unique index arbitrates racing creates.
	m, err := concepts.NewConceptModel(ctx, namespace, conceptName, embeddingName, columnInfo, s.deps)
	if err != nil {
		s.log.Warn("Create model failed", "error", err, "namespace", namespace, "concept", conceptName, "embedding", embeddingName)
		return nil, err
	}
	row, err := encodeModelRow(m)
	if err != nil {
		return nil, err
	}
	if err := s.modelRepo.Create(ctx, nil, row); err != nil {
		s.log.Warn("Create model failed", "error", err, "namespace", namespace, "concept", conceptName, "embedding", embeddingName)
		return nil, err
	}

	key := modelKey{namespace, conceptName, embeddingName}
	inst := &instance{m: m}
	s.mu.Lock()
	if cached, ok := s.instances[key]; ok {
		// A concurrent reader restored the row we just wrote; keep every
		// handle on that one instance.
		inst = cached
	} else {
		s.instances[key] = inst
	}
	s.mu.Unlock()

	s.log.Info("Concept model created", "namespace", namespace, "concept", conceptName, "embedding", embeddingName)
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return modelInfo(inst.m), nil
}

func (s *conceptModelService) Get(ctx context.Context, namespace, conceptName, embeddingName string) (*ConceptModelInfo, error) {
	inst, err := s.ensureInstance(ctx, namespace, conceptName, embeddingName)
	if err != nil {
		return nil, err
	}
	return s.syncedInfo(ctx, inst)
}

func (s *conceptModelService) ListForConcept(ctx context.Context, namespace, conceptName string) ([]*ConceptModelInfo, error) {
	if err := s.requireConcept(ctx, namespace, conceptName); err != nil {
		return nil, err
	}
	rows, err := s.modelRepo.ListByConcept(ctx, nil, namespace, conceptName)
	if err != nil {
		s.log.Warn("List models failed", "error", err, "namespace", namespace, "concept", conceptName)
		return nil, err
	}

	out := make([]*ConceptModelInfo, 0, len(rows))
	for _, row := range rows {
		inst, err := s.instanceFor(ctx, row.Namespace, row.ConceptName, row.EmbeddingName)
		if err != nil {
			return nil, err
		}
		info, err := s.syncedInfo(ctx, inst)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// syncedInfo serializes on the instance, brings it up to its concept's
// version and snapshots the wire projection while still holding the lock.
func (s *conceptModelService) syncedInfo(ctx context.Context, inst *instance) (*ConceptModelInfo, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if _, _, err := s.syncInstance(ctx, inst.m); err != nil {
		return nil, err
	}
	return modelInfo(inst.m), nil
}

func (s *conceptModelService) ColumnInfos(ctx context.Context, namespace, conceptName string) ([]concepts.ConceptColumnInfo, error) {
	if err := s.requireConcept(ctx, namespace, conceptName); err != nil {
		return nil, err
	}
	rows, err := s.modelRepo.ListByConcept(ctx, nil, namespace, conceptName)
	if err != nil {
		return nil, err
	}
	out := make([]concepts.ConceptColumnInfo, 0, len(rows))
	for _, row := range rows {
		info, err := decodeColumnInfo(row.ColumnInfo)
		if err != nil {
			return nil, fmt.Errorf("model %s/%s/%s: %w", row.Namespace, row.ConceptName, row.EmbeddingName, err)
		}
		if info != nil {
			out = append(out, *info)
		}
	}
	return out, nil
}

func (s *conceptModelService) Score(ctx context.Context, namespace, conceptName, embeddingName string, draft concepts.DraftID, texts []string, sensitivity concepts.Sensitivity) ([]float64, bool, error) {
	inst, err := s.ensureInstance(ctx, namespace, conceptName, embeddingName)
	if err != nil {
		return nil, false, err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	c, synced, err := s.syncInstance(ctx, inst.m)
	if err != nil {
		return nil, false, err
	}
	// Unknown drafts fail here the same way resolution does.
	if _, err := concepts.DraftExamples(c, draft); err != nil {
		return nil, false, err
	}

	scores, err := inst.m.Score(ctx, draft, texts, sensitivity)
	if err != nil {
		s.log.Warn("Score failed", "error", err, "namespace", namespace, "concept", conceptName, "embedding", embeddingName)
		return nil, false, err
	}
	return scores, synced, nil
}

func (s *conceptModelService) RemoveAllForConcept(ctx context.Context, tx *gorm.DB, namespace, conceptName string) error {
	if err := s.modelRepo.DeleteByConcept(ctx, tx, namespace, conceptName); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.instances {
		if key.namespace == namespace && key.concept == conceptName {
			delete(s.instances, key)
		}
	}
	return nil
}

// ensureInstance returns the live model, creating and persisting a default
// one (no negative-sampling source) when neither an instance nor a row
// exists.
func (s *conceptModelService) ensureInstance(ctx context.Context, namespace, conceptName, embeddingName string) (*instance, error) {
	inst, err := s.instanceFor(ctx, namespace, conceptName, embeddingName)
	if err != nil {
		return nil, err
	}
	if inst != nil {
		return inst, nil
	}
	// Concurrent first reads race to create the row; losing that race just
	// means the row exists now, so fall through and load it.
	if _, err := s.Create(ctx, namespace, conceptName, embeddingName, nil); err != nil && !errors.Is(err, pkgerrors.ErrAlreadyExists) {
		return nil, err
	}
	inst, err = s.instanceFor(ctx, namespace, conceptName, embeddingName)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: model %s/%s/%s vanished after create", pkgerrors.ErrNotFound, namespace, conceptName, embeddingName)
	}
	return inst, nil
}

// instanceFor returns the cached instance, restoring it from the persisted
// row on a cold start. Returns nil when no row exists. Restoring re-samples
// the negative pool, so the cache lock is dropped around the load and racing
// restores settle on whichever instance landed first.
func (s *conceptModelService) instanceFor(ctx context.Context, namespace, conceptName, embeddingName string) (*instance, error) {
	key := modelKey{namespace, conceptName, embeddingName}

	s.mu.Lock()
	if inst, ok := s.instances[key]; ok {
		s.mu.Unlock()
		return inst, nil
	}
	s.mu.Unlock()

	row, err := s.modelRepo.GetByKey(ctx, nil, namespace, conceptName, embeddingName)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	state, err := decodeModelState(row)
	if err != nil {
		return nil, err
	}
	m, err := concepts.RestoreConceptModel(ctx, state, s.deps)
	if err != nil {
		s.log.Warn("Restore model failed", "error", err, "namespace", namespace, "concept", conceptName, "embedding", embeddingName)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := s.instances[key]; ok {
		return inst, nil
	}
	inst := &instance{m: m}
	s.instances[key] = inst
	return inst, nil
}

// syncInstance loads the concept, syncs the model against it and persists the
// refreshed state when a resync happened. Returns the decoded concept and
// whether this call performed the resync.
func (s *conceptModelService) syncInstance(ctx context.Context, m *concepts.ConceptModel) (*concepts.Concept, bool, error) {
	row, err := s.conceptRepo.GetByKey(ctx, nil, m.Namespace, m.ConceptName)
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, fmt.Errorf("%w: concept %s/%s", pkgerrors.ErrNotFound, m.Namespace, m.ConceptName)
	}
	c, err := decodeConcept(row)
	if err != nil {
		return nil, false, err
	}

	synced, err := m.Sync(ctx, c)
	if err != nil {
		s.log.Warn("Sync model failed", "error", err, "namespace", m.Namespace, "concept", m.ConceptName, "embedding", m.EmbeddingName)
		return nil, false, err
	}
	if !synced {
		return c, false, nil
	}

	if err := s.persistState(ctx, m); err != nil {
		return nil, false, err
	}
	s.log.Debug("Concept model synced",
		"namespace", m.Namespace,
		"concept", m.ConceptName,
		"embedding", m.EmbeddingName,
		"version", m.Version,
	)
	return c, true, nil
}

func (s *conceptModelService) persistState(ctx context.Context, m *concepts.ConceptModel) error {
	row, err := s.modelRepo.GetByKey(ctx, nil, m.Namespace, m.ConceptName, m.EmbeddingName)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: model %s/%s/%s", pkgerrors.ErrNotFound, m.Namespace, m.ConceptName, m.EmbeddingName)
	}
	state := m.State()
	draftState, err := json.Marshal(state.DraftModels)
	if err != nil {
		return fmt.Errorf("encode model state %s/%s/%s: %w", m.Namespace, m.ConceptName, m.EmbeddingName, err)
	}
	row.Version = state.Version
	row.DraftState = datatypes.JSON(draftState)
	if err := s.modelRepo.Update(ctx, nil, row); err != nil {
		return fmt.Errorf("save model state %s/%s/%s: %w", m.Namespace, m.ConceptName, m.EmbeddingName, err)
	}
	return nil
}

func (s *conceptModelService) requireConcept(ctx context.Context, namespace, conceptName string) error {
	row, err := s.conceptRepo.GetByKey(ctx, nil, namespace, conceptName)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: concept %s/%s", pkgerrors.ErrNotFound, namespace, conceptName)
	}
	return nil
}

func modelInfo(m *concepts.ConceptModel) *ConceptModelInfo {
	return &ConceptModelInfo{
		Namespace:     m.Namespace,
		ConceptName:   m.ConceptName,
		EmbeddingName: m.EmbeddingName,
		Version:       m.Version,
		ColumnInfo:    m.ColumnInfo,
	}
}

func encodeModelRow(m *concepts.ConceptModel) (*types.ConceptModel, error) {
	row := &types.ConceptModel{
		Namespace:     m.Namespace,
		ConceptName:   m.ConceptName,
		EmbeddingName: m.EmbeddingName,
		Version:       m.Version,
	}
	if m.ColumnInfo != nil {
		raw, err := json.Marshal(m.ColumnInfo)
		if err != nil {
			return nil, fmt.Errorf("encode column info: %w", err)
		}
		row.ColumnInfo = datatypes.JSON(raw)
	}
	state := m.State()
	if len(state.DraftModels) > 0 {
		raw, err := json.Marshal(state.DraftModels)
		if err != nil {
			return nil, fmt.Errorf("encode model state: %w", err)
		}
		row.DraftState = datatypes.JSON(raw)
	}
	return row, nil
}

func decodeModelState(row *types.ConceptModel) (concepts.ModelState, error) {
	state := concepts.ModelState{
		Namespace:     row.Namespace,
		ConceptName:   row.ConceptName,
		EmbeddingName: row.EmbeddingName,
		Version:       row.Version,
	}
	info, err := decodeColumnInfo(row.ColumnInfo)
	if err != nil {
		return state, fmt.Errorf("model %s/%s/%s: %w", row.Namespace, row.ConceptName, row.EmbeddingName, err)
	}
	state.ColumnInfo = info
	if len(row.DraftState) > 0 {
		if err := json.Unmarshal(row.DraftState, &state.DraftModels); err != nil {
			return state, fmt.Errorf("decode model state %s/%s/%s: %w", row.Namespace, row.ConceptName, row.EmbeddingName, err)
		}
	}
	return state, nil
}

func decodeColumnInfo(raw datatypes.JSON) (*concepts.ConceptColumnInfo, error) {
	// NULL columns scan as the literal bytes "null".
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var info concepts.ConceptColumnInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode column info: %w", err)
	}
	return &info, nil
}
