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

type ConceptRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.Concept) error
	GetByKey(ctx context.Context, tx *gorm.DB, namespace, name string) (*types.Concept, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Concept, error)
	Update(ctx context.Context, tx *gorm.DB, row *types.Concept) error
	DeleteByKey(ctx context.Context, tx *gorm.DB, namespace, name string) error
}

type conceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	return &conceptRepo{db: db, log: baseLog.With("repo", "ConceptRepo")}
}

func (r *conceptRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Concept) error {
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
			return fmt.Errorf("%w: concept %s/%s", pkgerrors.ErrAlreadyExists, row.Namespace, row.Name)
		}
		return err
	}
	return nil
}

func (r *conceptRepo) GetByKey(ctx context.Context, tx *gorm.DB, namespace, name string) (*types.Concept, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if namespace == "" || name == "" {
		return nil, nil
	}
	var out []*types.Concept
	if err := t.WithContext(ctx).
		Where("namespace = ? AND name = ?", namespace, name).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *conceptRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Concept, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Concept
	if err := t.WithContext(ctx).
		Order("namespace ASC, name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conceptRepo) Update(ctx context.Context, tx *gorm.DB, row *types.Concept) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	return t.WithContext(ctx).Save(row).Error
}

func (r *conceptRepo) DeleteByKey(ctx context.Context, tx *gorm.DB, namespace, name string) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if namespace == "" || name == "" {
		return nil
	}
	return t.WithContext(ctx).
		Where("namespace = ? AND name = ?", namespace, name).
		Delete(&types.Concept{}).Error
}
