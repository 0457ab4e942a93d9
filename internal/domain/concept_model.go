package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ConceptModel struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Namespace     string         `gorm:"column:namespace;not null;index:idx_concept_model_key,unique,priority:1" json:"namespace"`
	ConceptName   string         `gorm:"column:concept_name;not null;index:idx_concept_model_key,unique,priority:2" json:"concept_name"`
	EmbeddingName string         `gorm:"column:embedding_name;not null;index:idx_concept_model_key,unique,priority:3" json:"embedding_name"`
	Version       int            `gorm:"column:version;not null" json:"version"`
	ColumnInfo    datatypes.JSON `gorm:"column:column_info;type:jsonb" json:"column_info,omitempty"`
	DraftState    datatypes.JSON `gorm:"column:draft_state;type:jsonb" json:"draft_state,omitempty"` // draft -> classifier state
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (ConceptModel) TableName() string { return "concept_model" }
