package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/conceptlab-backend/internal/domain"
	pkgerrors "github.com/yungbote/conceptlab-backend/internal/pkg/errors"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

type ConceptModelRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ConceptModel) error
	GetByKey(ctx context.Context, tx *gorm.DB, namespace, conceptName, embeddingName string) (*types.ConceptModel, error)
	ListByConcept(ctx context.Context, tx *gorm.DB, namespace, conceptName string) ([]*types.ConceptModel, error)
	Update(ctx context.Context, tx *gorm.DB, row *types.ConceptModel) error
	DeleteByConcept(ctx context.Context, tx *gorm.DB, namespace, conceptName string) error
}

type conceptModelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptModelRepo(db *gorm.DB, baseLog *logger.Logger) ConceptModelRepo {
	return &conceptModelRepo{db: db, log: baseLog.With("repo", "ConceptModelRepo")}
}

func (r *conceptModelRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ConceptModel) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := t.WithContext(ctx).Create(row).Error; err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: model %s/%s/%s", pkgerrors.ErrAlreadyExists, row.Namespace, row.ConceptName, row.EmbeddingName)
		}
		return err
	}
	return nil
}

func (r *conceptModelRepo) GetByKey(ctx context.Context, tx *gorm.DB, namespace, conceptName, embeddingName string) (*types.ConceptModel, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if namespace == "" || conceptName == "" || embeddingName == "" {
		return nil, nil
	}
	var out []*types.ConceptModel
	if err := t.WithContext(ctx).
		Where("namespace = ? AND concept_name = ? AND embedding_name = ?", namespace, conceptName, embeddingName).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *conceptModelRepo) ListByConcept(ctx context.Context, tx *gorm.DB, namespace, conceptName string) ([]*types.ConceptModel, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.ConceptModel
	if namespace == "" || conceptName == "" {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("namespace = ? AND concept_name = ?", namespace, conceptName).
		Order("embedding_name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conceptModelRepo) Update(ctx context.Context, tx *gorm.DB, row *types.ConceptModel) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	return t.WithContext(ctx).Save(row).Error
}

func (r *conceptModelRepo) DeleteByConcept(ctx context.Context, tx *gorm.DB, namespace, conceptName string) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if namespace == "" || conceptName == "" {
		return nil
	}
	return t.WithContext(ctx).
		Where("namespace = ? AND concept_name = ?", namespace, conceptName).
		Delete(&types.ConceptModel{}).Error
}
