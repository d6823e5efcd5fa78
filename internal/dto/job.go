package dto

import (
	"encoding/json"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/models"
)

type JobCreateDTO struct {
	JobType    string          `json:"jobType" validate:"required"`
	PropertyID string          `json:"propertyId" validate:"required,max=36"`
	Priority   *int            `json:"priority,omitempty" validate:"omitempty,gte=1,lte=10"`
	MaxRetries *int            `json:"maxRetries,omitempty" validate:"omitempty,gte=0,lte=10"`
	InputData  json.RawMessage `json:"inputData,omitempty"`
}

type JobListQuery struct {
	PropertyID  string `form:"propertyId" validate:"omitempty,max=36"`
	Status      string `form:"status"`
	Limit       int    `form:"limit" validate:"omitempty,gte=1,lte=200"`
	PrincipalID string `form:"-"`
}

type ProgressDTO struct {
	Percent        int    `json:"percent"`
	CurrentStep    string `json:"currentStep,omitempty"`
	StepsCompleted int    `json:"stepsCompleted"`
	TotalSteps     int    `json:"totalSteps"`
}

type ErrorDTO struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type TimingDTO struct {
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	DurationSeconds *float64   `json:"durationSeconds,omitempty"`
	RetryAfter      *time.Time `json:"retryAfter,omitempty"`
}

// JobStatusDTO is the document returned to pollers.
type JobStatusDTO struct {
	ID              string          `json:"id"`
	JobType         string          `json:"jobType"`
	Status          string          `json:"status"`
	PropertyID      string          `json:"propertyId"`
	Priority        int             `json:"priority"`
	Progress        ProgressDTO     `json:"progress"`
	Error           *ErrorDTO       `json:"error,omitempty"`
	Timing          TimingDTO       `json:"timing"`
	RetryCount      int             `json:"retryCount"`
	MaxRetries      int             `json:"maxRetries"`
	CancelRequested bool            `json:"cancelRequested,omitempty"`
	ResultSummary   json.RawMessage `json:"resultSummary,omitempty"`
}

// NewJobStatusDTO maps a stored job to its poll document. The latest error
// is reported even while a retry is pending.
func NewJobStatusDTO(job *models.Job) JobStatusDTO {
	out := JobStatusDTO{
		ID:         job.ID,
		JobType:    string(job.JobType),
		Status:     string(job.Status),
		PropertyID: job.PropertyID,
		Priority:   job.Priority,
		Progress: ProgressDTO{
			Percent:        job.Percent,
			CurrentStep:    job.CurrentStep,
			StepsCompleted: job.StepsCompleted,
			TotalSteps:     job.TotalSteps,
		},
		Timing: TimingDTO{
			CreatedAt:       job.CreatedAt,
			StartedAt:       job.StartedAt,
			CompletedAt:     job.CompletedAt,
			DurationSeconds: job.DurationSeconds,
			RetryAfter:      job.RetryAfter,
		},
		RetryCount:      job.RetryCount,
		MaxRetries:      job.MaxRetries,
		CancelRequested: job.CancelRequested,
	}

	if job.ErrorMessage != "" {
		out.Error = &ErrorDTO{Message: job.ErrorMessage, Code: job.ErrorCode}
	}

	if len(job.ResultData) > 0 {
		var doc struct {
			Summary json.RawMessage `json:"summary"`
		}
		if err := json.Unmarshal(job.ResultData, &doc); err == nil && len(doc.Summary) > 0 && string(doc.Summary) != "null" {
			out.ResultSummary = doc.Summary
		}
	}

	return out
}

type CancelResponseDTO struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
