package dto

import (
	"encoding/json"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/models"
)

type AlertDTO struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Severity       string          `json:"severity"`
	Message        string          `json:"message"`
	JobID          *string         `json:"jobId,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	AcknowledgedAt *time.Time      `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string          `json:"acknowledgedBy,omitempty"`
}

func NewAlertDTO(a *models.Alert) AlertDTO {
	return AlertDTO{
		ID:             a.ID,
		Type:           string(a.Type),
		Severity:       string(a.Severity),
		Message:        a.Message,
		JobID:          a.JobID,
		Metadata:       json.RawMessage(a.Metadata),
		CreatedAt:      a.CreatedAt,
		AcknowledgedAt: a.AcknowledgedAt,
		AcknowledgedBy: a.AcknowledgedBy,
	}
}

type AlertListQuery struct {
	Unacknowledged bool `form:"unacknowledged"`
	Limit          int  `form:"limit" validate:"omitempty,gte=1,lte=200"`
}

type AlertAckDTO struct {
	AcknowledgedBy string `json:"acknowledgedBy" validate:"required,max=128"`
}
