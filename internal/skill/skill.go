// Package skill defines the units of analysis a job runs, the registry that
// resolves them with their configuration, and the fixed pipelines per job
// type.
package skill

import "context"

// Name identifies a skill and its configuration row.
type Name string

const (
	WasteBatchExtractor   Name = "waste-batch-extractor"
	ContractExtractor     Name = "contract-extractor"
	RegulatoryResearch    Name = "regulatory-research"
	CompactorOptimization Name = "compactor-optimization"
	WastewiseAnalytics    Name = "wastewise-analytics"
	ReportGenerator       Name = "report-generator"
)

// Skill is a stateless analysis step. Execute must honour ctx and must not
// mutate the Context it is given.
type Skill interface {
	Name() Name
	Version() string
	Execute(ctx context.Context, sc *Context) (Result, error)
}

// Result is a skill's output. Data feeds later steps and the stored result
// document; Summary is a short digest for pollers.
type Result struct {
	Data    any            `json:"data"`
	Summary map[string]any `json:"summary,omitempty"`
}
