package repos

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/conceptlab-backend/internal/domain"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

type DatasetRowRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.DatasetRow) ([]*types.DatasetRow, error)
	SelectTextColumn(ctx context.Context, tx *gorm.DB, namespace, name string, path []string, limit int) ([]string, error)
}

type datasetRowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatasetRowRepo(db *gorm.DB, baseLog *logger.Logger) DatasetRowRepo {
	return &datasetRowRepo{db: db, log: baseLog.With("repo", "DatasetRowRepo")}
}

func (r *datasetRowRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.DatasetRow) ([]*types.DatasetRow, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.DatasetRow{}, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	if err := t.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SelectTextColumn returns the string values at the given JSON path for rows
// of the dataset where the path exists, ordered by row id and limited.
func (r *datasetRowRepo) SelectTextColumn(ctx context.Context, tx *gorm.DB, namespace, name string, path []string, limit int) ([]string, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if namespace == "" || name == "" || len(path) == 0 {
		return nil, nil
	}

	var rows []*types.DatasetRow
	q := t.WithContext(ctx).
		Where("namespace = ? AND name = ?", namespace, name).
		Where(datatypes.JSONQuery("data").HasKey(path...)).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if s, ok := jsonPathString(row.Data, path); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func jsonPathString(raw datatypes.JSON, path []string) (string, bool) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", false
	}
	var cur any = doc
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = m[key]; !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}
