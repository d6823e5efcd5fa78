package models

import (
	"errors"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/config"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrInvalidTransition   = errors.New("invalid job state transition")
	ErrAlertNotFound       = errors.New("alert not found")
	ErrPropertyNotFound    = errors.New("property not found")
	ErrSkillConfigNotFound = errors.New("skill config not found")
)

type Progress struct {
	Percent        int
	CurrentStep    string
	StepsCompleted int
	TotalSteps     int
}

type JobFilter struct {
	PropertyID  string
	PrincipalID string
	Status      config.JobStatus
	Limit       int
}

type CancelOutcome string

const (
	CancelOutcomeCancelled CancelOutcome = "cancelled"
	CancelOutcomeRequested CancelOutcome = "cancel_requested"
)

// JobOutcomeCounts counts jobs that reached a terminal outcome in a window.
type JobOutcomeCounts struct {
	Completed int64
	Failed    int64
	Since     time.Time
}

func (c JobOutcomeCounts) Total() int64 {
	return c.Completed + c.Failed
}

// FailureRate is failed / (completed + failed), zero when nothing finished.
func (c JobOutcomeCounts) FailureRate() float64 {
	if c.Total() == 0 {
		return 0
	}
	return float64(c.Failed) / float64(c.Total())
}

type AlertFilter struct {
	UnacknowledgedOnly bool
	Type               config.AlertType
	Limit              int
}

// All lists every model for AutoMigrate in tests and local runs.
func All() []any {
	return []any{
		&Job{},
		&Alert{},
		&SkillConfig{},
		&Property{},
		&Invoice{},
		&HaulLog{},
	}
}
