package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/conceptlab-backend/internal/concepts"
	"github.com/yungbote/conceptlab-backend/internal/data/repos"
	types "github.com/yungbote/conceptlab-backend/internal/domain"
	pkgerrors "github.com/yungbote/conceptlab-backend/internal/pkg/errors"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

// ConceptACLs is a static placeholder: single-user deployments may read and
// write everything.
type ConceptACLs struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

// ConceptInfo is the list-view projection of a concept.
type ConceptInfo struct {
	Namespace   string               `json:"namespace"`
	Name        string               `json:"name"`
	Type        concepts.ConceptType `json:"type"`
	Description string               `json:"description,omitempty"`
	Drafts      []concepts.DraftID   `json:"drafts"`
	ACLs        ConceptACLs          `json:"acls"`
}

type ConceptService interface {
	Create(ctx context.Context, namespace, name, conceptType, description string) (*concepts.Concept, error)
	Get(ctx context.Context, namespace, name string, draft concepts.DraftID) (*concepts.Concept, error)
	List(ctx context.Context) ([]ConceptInfo, error)
	Edit(ctx context.Context, namespace, name string, change concepts.ConceptUpdate) (*concepts.Concept, error)
	MergeDraft(ctx context.Context, namespace, name string, draft concepts.DraftID) (*concepts.Concept, error)
	Remove(ctx context.Context, namespace, name string) error
}

type conceptService struct {
	db          *gorm.DB
	log         *logger.Logger
	conceptRepo repos.ConceptRepo
	models      ConceptModelService
}

func NewConceptService(
	db *gorm.DB,
	baseLog *logger.Logger,
	conceptRepo repos.ConceptRepo,
	models ConceptModelService,
) ConceptService {
	return &conceptService{
		db:          db,
		log:         baseLog.With("service", "ConceptService"),
		conceptRepo: conceptRepo,
		models:      models,
	}
}

func (s *conceptService) Create(ctx context.Context, namespace, name, conceptType, description string) (*concepts.Concept, error) {
	if namespace == "" || name == "" {
		return nil, fmt.Errorf("%w: namespace and name required", pkgerrors.ErrInvalidArgument)
	}
	ct, err := concepts.ParseConceptType(conceptType)
	if err != nil {
		return nil, err
	}

	c := &concepts.Concept{
		Namespace:   namespace,
		ConceptName: name,
		Type:        ct,
		Data:        map[string]concepts.Example{},
		Version:     0,
		Description: description,
	}
	data, err := encodeConceptData(c)
	if err != nil {
		return nil, err
	}
	row := &types.Concept{
		Namespace:   namespace,
		Name:        name,
		Type:        string(ct),
		Description: description,
		Version:     c.Version,
		Data:        data,
	}
	if err := s.conceptRepo.Create(ctx, nil, row); err != nil {
		s.log.Warn("Create concept failed", "error", err, "namespace", namespace, "name", name)
		return nil, err
	}
	s.log.Info("Concept created", "namespace", namespace, "name", name, "type", ct)
	return c, nil
}

func (s *conceptService) Get(ctx context.Context, namespace, name string, draft concepts.DraftID) (*concepts.Concept, error) {
	c, err := s.loadConcept(ctx, nil, namespace, name)
	if err != nil {
		return nil, err
	}
	resolved, err := concepts.DraftExamples(c, draft)
	if err != nil {
		return nil, err
	}
	view := *c
	view.Data = resolved
	return &view, nil
}

func (s *conceptService) List(ctx context.Context) ([]ConceptInfo, error) {
	rows, err := s.conceptRepo.List(ctx, nil)
	if err != nil {
		s.log.Warn("List concepts failed", "error", err)
		return nil, err
	}
	out := make([]ConceptInfo, 0, len(rows))
	for _, row := range rows {
		c, err := decodeConcept(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ConceptInfo{
			Namespace:   c.Namespace,
			Name:        c.ConceptName,
			Type:        c.Type,
			Description: c.Description,
			Drafts:      c.Drafts(),
			ACLs:        ConceptACLs{Read: true, Write: true},
		})
	}
	return out, nil
}

func (s *conceptService) Edit(ctx context.Context, namespace, name string, change concepts.ConceptUpdate) (*concepts.Concept, error) {
	var out *concepts.Concept
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.mutateConcept(ctx, tx, namespace, name, func(c *concepts.Concept) error {
			return c.ApplyUpdate(change)
		})
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		s.log.Warn("Edit concept failed", "error", err, "namespace", namespace, "name", name)
		return nil, err
	}
	return out, nil
}

func (s *conceptService) MergeDraft(ctx context.Context, namespace, name string, draft concepts.DraftID) (*concepts.Concept, error) {
	var out *concepts.Concept
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.mutateConcept(ctx, tx, namespace, name, func(c *concepts.Concept) error {
			return c.MergeDraft(draft)
		})
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		s.log.Warn("Merge draft failed", "error", err, "namespace", namespace, "name", name, "draft", draft)
		return nil, err
	}
	s.log.Info("Draft merged", "namespace", namespace, "name", name, "draft", draft)
	return out, nil
}

func (s *conceptService) Remove(ctx context.Context, namespace, name string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.conceptRepo.GetByKey(ctx, tx, namespace, name)
		if err != nil {
			return err
		}
		if row == nil {
			return fmt.Errorf("%w: concept %s/%s", pkgerrors.ErrNotFound, namespace, name)
		}
		if err := s.models.RemoveAllForConcept(ctx, tx, namespace, name); err != nil {
			return fmt.Errorf("remove concept models: %w", err)
		}
		return s.conceptRepo.DeleteByKey(ctx, tx, namespace, name)
	})
	if err != nil {
		s.log.Warn("Remove concept failed", "error", err, "namespace", namespace, "name", name)
		return err
	}
	s.log.Info("Concept removed", "namespace", namespace, "name", name)
	return nil
}

// mutateConcept loads, mutates and saves one concept document inside the
// caller's transaction.
func (s *conceptService) mutateConcept(ctx context.Context, tx *gorm.DB, namespace, name string, mutate func(*concepts.Concept) error) (*concepts.Concept, error) {
	row, err := s.conceptRepo.GetByKey(ctx, tx, namespace, name)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: concept %s/%s", pkgerrors.ErrNotFound, namespace, name)
	}
	c, err := decodeConcept(row)
	if err != nil {
		return nil, err
	}
	if err := mutate(c); err != nil {
		return nil, err
	}
	data, err := encodeConceptData(c)
	if err != nil {
		return nil, err
	}
	row.Version = c.Version
	row.Data = data
	if err := s.conceptRepo.Update(ctx, tx, row); err != nil {
		return nil, fmt.Errorf("save concept %s/%s: %w", namespace, name, err)
	}
	return c, nil
}

func (s *conceptService) loadConcept(ctx context.Context, tx *gorm.DB, namespace, name string) (*concepts.Concept, error) {
	row, err := s.conceptRepo.GetByKey(ctx, tx, namespace, name)
	if err != nil {
		s.log.Warn("Load concept failed", "error", err, "namespace", namespace, "name", name)
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: concept %s/%s", pkgerrors.ErrNotFound, namespace, name)
	}
	return decodeConcept(row)
}

func decodeConcept(row *types.Concept) (*concepts.Concept, error) {
	ct, err := concepts.ParseConceptType(row.Type)
	if err != nil {
		return nil, fmt.Errorf("concept %s/%s: %w", row.Namespace, row.Name, err)
	}
	data := map[string]concepts.Example{}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &data); err != nil {
			return nil, fmt.Errorf("decode concept %s/%s data: %w", row.Namespace, row.Name, err)
		}
	}
	return &concepts.Concept{
		Namespace:   row.Namespace,
		ConceptName: row.Name,
		Type:        ct,
		Data:        data,
		Version:     row.Version,
		Description: row.Description,
	}, nil
}

func encodeConceptData(c *concepts.Concept) (datatypes.JSON, error) {
	raw, err := json.Marshal(c.Data)
	if err != nil {
		return nil, fmt.Errorf("encode concept %s/%s data: %w", c.Namespace, c.ConceptName, err)
	}
	return datatypes.JSON(raw), nil
}
