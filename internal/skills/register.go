package skills

import "github.com/joshu-sajeev/wastewise/internal/skill"

// All returns one instance of every built-in skill.
func All() []skill.Skill {
	return []skill.Skill{
		NewWasteBatchExtractor(),
		NewContractExtractor(),
		NewRegulatoryResearch(),
		NewCompactorOptimizer(),
		NewWastewiseAnalytics(),
		NewReportGenerator(),
	}
}

// RegisterAll registers the built-in skills and checks every pipeline
// step resolves.
func RegisterAll(reg *skill.Registry) error {
	for _, s := range All() {
		reg.Register(s)
	}
	return reg.RequireAll(skill.PipelineSkills()...)
}
