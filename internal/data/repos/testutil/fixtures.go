package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/conceptlab-backend/internal/domain"
)

func SeedConcept(tb testing.TB, ctx context.Context, tx *gorm.DB, namespace, name string) *types.Concept {
	tb.Helper()
	c := &types.Concept{
		ID:        uuid.New(),
		Namespace: namespace,
		Name:      name,
		Type:      "text",
		Version:   0,
		Data:      datatypes.JSON([]byte("{}")),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed concept: %v", err)
	}
	return c
}

func SeedConceptModel(tb testing.TB, ctx context.Context, tx *gorm.DB, namespace, conceptName, embeddingName string) *types.ConceptModel {
	tb.Helper()
	m := &types.ConceptModel{
		ID:            uuid.New(),
		Namespace:     namespace,
		ConceptName:   conceptName,
		EmbeddingName: embeddingName,
		Version:       -1,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed concept model: %v", err)
	}
	return m
}

func SeedDatasetRow(tb testing.TB, ctx context.Context, tx *gorm.DB, namespace, name string, data map[string]any) *types.DatasetRow {
	tb.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		tb.Fatalf("marshal dataset row: %v", err)
	}
	row := &types.DatasetRow{
		ID:        uuid.New(),
		Namespace: namespace,
		Name:      name,
		Data:      datatypes.JSON(raw),
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed dataset row: %v", err)
	}
	return row
}
