package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Concept struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Namespace   string         `gorm:"column:namespace;not null;index:idx_concept_key,unique,priority:1" json:"namespace"`
	Name        string         `gorm:"column:name;not null;index:idx_concept_key,unique,priority:2" json:"name"`
	Type        string         `gorm:"column:type;not null" json:"type"`
	Description string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Version     int            `gorm:"column:version;not null;default:0" json:"version"`
	Data        datatypes.JSON `gorm:"column:data;type:jsonb" json:"data"` // id -> example document
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Concept) TableName() string { return "concept" }
