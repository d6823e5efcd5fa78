package skill

import (
	"fmt"

	"github.com/joshu-sajeev/wastewise/internal/config"
)

// Step is one pipeline stage. Percent is the cumulative progress reported
// once the step finishes.
type Step struct {
	Skill   Name
	Label   string
	Percent int
}

// PipelineFor returns the ordered steps for a job type.
func PipelineFor(jobType config.JobType) ([]Step, error) {
	switch jobType {
	case config.JobTypeCompleteAnalysis:
		return []Step{
			{Skill: WasteBatchExtractor, Label: "Extracting invoice data", Percent: 20},
			{Skill: ContractExtractor, Label: "Parsing contract terms", Percent: 30},
			{Skill: RegulatoryResearch, Label: "Researching regulations", Percent: 45},
			{Skill: CompactorOptimization, Label: "Analyzing compactor utilization", Percent: 65},
			{Skill: WastewiseAnalytics, Label: "Calculating savings opportunities", Percent: 85},
			{Skill: ReportGenerator, Label: "Generating report", Percent: 100},
		}, nil
	case config.JobTypeInvoiceExtraction:
		return []Step{
			{Skill: WasteBatchExtractor, Label: "Extracting invoice data", Percent: 100},
		}, nil
	case config.JobTypeRegulatoryResearch:
		return []Step{
			{Skill: RegulatoryResearch, Label: "Researching regulations", Percent: 100},
		}, nil
	case config.JobTypeReportGeneration:
		return []Step{
			{Skill: WasteBatchExtractor, Label: "Extracting invoice data", Percent: 25},
			{Skill: CompactorOptimization, Label: "Analyzing compactor utilization", Percent: 50},
			{Skill: WastewiseAnalytics, Label: "Calculating savings opportunities", Percent: 75},
			{Skill: ReportGenerator, Label: "Generating report", Percent: 100},
		}, nil
	default:
		return nil, ValidationErr("UNKNOWN_JOB_TYPE", "no pipeline for job type %q", jobType)
	}
}

// PipelineSkills lists every skill any pipeline uses, without duplicates.
func PipelineSkills() []Name {
	seen := map[Name]bool{}
	var names []Name
	for _, jt := range config.AllowedJobTypes {
		steps, err := PipelineFor(jt)
		if err != nil {
			panic(fmt.Sprintf("allowed job type %s has no pipeline", jt))
		}
		for _, s := range steps {
			if !seen[s.Skill] {
				seen[s.Skill] = true
				names = append(names, s.Skill)
			}
		}
	}
	return names
}
