package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/wastewise/internal/config"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RetryErrorEntry is one failed attempt recorded in Job.RetryErrorLog.
type RetryErrorEntry struct {
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
}

type Job struct {
	ID       string           `gorm:"type:varchar(36);primaryKey"`
	JobType  config.JobType   `gorm:"type:varchar(32);not null;index"`
	Priority int              `gorm:"not null"`
	Status   config.JobStatus `gorm:"type:varchar(16);not null;index"`

	Percent        int    `gorm:"not null;default:0"`
	CurrentStep    string `gorm:"type:varchar(128)"`
	StepsCompleted int    `gorm:"not null;default:0"`
	TotalSteps     int    `gorm:"not null;default:0"`

	PrincipalID string `gorm:"type:varchar(64);not null;index"`
	PropertyID  string `gorm:"type:varchar(36);not null;index"`

	InputData    datatypes.JSON `gorm:"type:jsonb"`
	ResultData   datatypes.JSON `gorm:"type:jsonb"`
	ErrorMessage string         `gorm:"type:text"`
	ErrorCode    string         `gorm:"type:varchar(64)"`

	RetryCount    int                                  `gorm:"not null;default:0"`
	MaxRetries    int                                  `gorm:"not null"`
	RetryErrorLog datatypes.JSONSlice[RetryErrorEntry] `gorm:"type:jsonb"`
	RetryAfter    *time.Time

	WorkerID        string `gorm:"type:varchar(128)"`
	ClaimedAt       *time.Time
	CancelRequested bool `gorm:"not null;default:false"`

	CreatedAt       time.Time `gorm:"autoCreateTime"`
	StartedAt       *time.Time
	CompletedAt     *time.Time
	DurationSeconds *float64
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = config.JobStatusPending
	}
	if j.Priority == 0 {
		j.Priority = config.DefaultPriority
	}
	if j.RetryErrorLog == nil {
		j.RetryErrorLog = datatypes.JSONSlice[RetryErrorEntry]{}
	}
	return nil
}
