package config

import "slices"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type JobType string

const (
	JobTypeInvoiceExtraction  JobType = "invoice_extraction"
	JobTypeRegulatoryResearch JobType = "regulatory_research"
	JobTypeCompleteAnalysis   JobType = "complete_analysis"
	JobTypeReportGeneration   JobType = "report_generation"
)

type AlertType string

const (
	AlertTypeStuckJob      AlertType = "stuck_job"
	AlertTypeHighErrorRate AlertType = "high_error_rate"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	DefaultPriority   = 5
	MinPriority       = 1
	MaxPriority       = 10
	DefaultMaxRetries = 3
	MaxAllowedRetries = 10
)

var (
	AllowedJobTypes = []JobType{
		JobTypeInvoiceExtraction,
		JobTypeRegulatoryResearch,
		JobTypeCompleteAnalysis,
		JobTypeReportGeneration,
	}
	AllowedJobStatuses = []JobStatus{
		JobStatusPending,
		JobStatusProcessing,
		JobStatusCompleted,
		JobStatusFailed,
		JobStatusCancelled,
	}
)

func IsAllowedJobType(t JobType) bool {
	return slices.Contains(AllowedJobTypes, t)
}

func IsAllowedJobStatus(s JobStatus) bool {
	return slices.Contains(AllowedJobStatuses, s)
}
