package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DatasetRow is one row of an ingested dataset. The uuid primary key doubles
// as the stable sort key for negative sampling.
type DatasetRow struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Namespace string         `gorm:"column:namespace;not null;index:idx_dataset_row_scope,priority:1" json:"namespace"`
	Name      string         `gorm:"column:name;not null;index:idx_dataset_row_scope,priority:2" json:"name"`
	Data      datatypes.JSON `gorm:"column:data;type:jsonb" json:"data"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (DatasetRow) TableName() string { return "dataset_row" }
