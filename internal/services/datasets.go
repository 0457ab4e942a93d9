package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/yungbote/conceptlab-backend/internal/data/repos"
	types "github.com/yungbote/conceptlab-backend/internal/domain"
	pkgerrors "github.com/yungbote/conceptlab-backend/internal/pkg/errors"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

// DatasetService fronts the dataset rows: the negative sampler reads columns
// through it and the seed command imports fixtures through it. It satisfies
// concepts.DatasetSelector.
type DatasetService interface {
	SelectTextColumn(ctx context.Context, namespace, name string, path []string, limit int) ([]string, error)
	ImportRows(ctx context.Context, namespace, name string, rows []map[string]any) (int, error)
}

type datasetService struct {
	log     *logger.Logger
	rowRepo repos.DatasetRowRepo
}

func NewDatasetService(baseLog *logger.Logger, rowRepo repos.DatasetRowRepo) DatasetService {
	return &datasetService{
		log:     baseLog.With("service", "DatasetService"),
		rowRepo: rowRepo,
	}
}

func (s *datasetService) SelectTextColumn(ctx context.Context, namespace, name string, path []string, limit int) ([]string, error) {
	texts, err := s.rowRepo.SelectTextColumn(ctx, nil, namespace, name, path, limit)
	if err != nil {
		s.log.Warn("Select text column failed", "error", err, "namespace", namespace, "name", name, "path", path)
		return nil, err
	}
	return texts, nil
}

func (s *datasetService) ImportRows(ctx context.Context, namespace, name string, rows []map[string]any) (int, error) {
	if namespace == "" || name == "" {
		return 0, fmt.Errorf("%w: dataset namespace and name required", pkgerrors.ErrInvalidArgument)
	}
	out := make([]*types.DatasetRow, 0, len(rows))
	for i, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			return 0, fmt.Errorf("encode dataset row %d: %w", i, err)
		}
		out = append(out, &types.DatasetRow{
			Namespace: namespace,
			Name:      name,
			Data:      datatypes.JSON(raw),
		})
	}
	created, err := s.rowRepo.Create(ctx, nil, out)
	if err != nil {
		s.log.Warn("Import dataset rows failed", "error", err, "namespace", namespace, "name", name)
		return 0, err
	}
	s.log.Info("Dataset rows imported", "namespace", namespace, "name", name, "rows", len(created))
	return len(created), nil
}
