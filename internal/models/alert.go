package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/wastewise/internal/config"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Alert rows are append-only. Only the acknowledgement columns are ever
// written after insert.
type Alert struct {
	ID             string           `gorm:"type:varchar(36);primaryKey"`
	Type           config.AlertType `gorm:"type:varchar(32);not null;index"`
	Severity       config.Severity  `gorm:"type:varchar(16);not null"`
	Message        string           `gorm:"type:text;not null"`
	JobID          *string          `gorm:"type:varchar(36);index"`
	Metadata       datatypes.JSON   `gorm:"type:jsonb"`
	CreatedAt      time.Time        `gorm:"autoCreateTime;index"`
	AcknowledgedAt *time.Time
	AcknowledgedBy string `gorm:"type:varchar(128)"`
}

func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (a *Alert) Acknowledged() bool {
	return a.AcknowledgedAt != nil
}
