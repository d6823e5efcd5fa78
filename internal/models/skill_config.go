package models

import (
	"time"

	"gorm.io/datatypes"
)

// SkillConfig is a versioned bundle of numeric constants for one skill. The
// highest version of a name is the active one.
type SkillConfig struct {
	ID              uint           `gorm:"primaryKey;autoIncrement"`
	Name            string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_skill_configs_name_version"`
	Version         int            `gorm:"not null;uniqueIndex:idx_skill_configs_name_version"`
	Thresholds      datatypes.JSON `gorm:"type:jsonb;not null"`
	ConversionRates datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
}
