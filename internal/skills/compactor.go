package skills

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/joshu-sajeev/wastewise/internal/skill"
)

// Amortised monthly cost of a fullness monitor.
const (
	monitorInstallMonthly = 200.0
	monitorServiceMonthly = 50.0
)

const (
	ServiceCompacted   = "compacted"
	ServiceUncompacted = "uncompacted"
)

// Typical tons per pull by compactor size. Tonnage well below the closest
// range points at an open top.
var expectedTonsBySize = []struct {
	sizeCY   float64
	min, max float64
}{
	{10, 0.3, 1.5},
	{20, 0.5, 2.5},
	{30, 1.0, 3.5},
	{40, 1.5, 4.5},
}

type benchmark struct{ min, optimal, max float64 }

var yardsPerDoorBenchmarks = map[string]benchmark{
	ServiceCompacted:   {min: 0.06, optimal: 0.09, max: 0.125},
	ServiceUncompacted: {min: 0.25, optimal: 0.35, max: 0.50},
}

type CompactorInputs struct {
	Units                 int     `json:"units"`
	ContainerSizeCY       float64 `json:"containerSizeCy"`
	ServiceType           string  `json:"serviceType"`
	AnnualPickups         int     `json:"annualPickups"`
	AvgTonsPerPull        float64 `json:"avgTonsPerPull"`
	BaseHaulFee           float64 `json:"baseHaulFee"`
	DisposalRatePerTon    float64 `json:"disposalRatePerTon"`
	MaxDaysBetweenPickups int     `json:"maxDaysBetweenPickups"`
	LightHauls            int     `json:"lightHauls"`
}

type CapacityAnalysis struct {
	MaxCapacityTons float64 `json:"maxCapacityTons"`
	UtilizationPct  float64 `json:"utilizationPct"`
	Status          string  `json:"status"`
}

type YardsPerDoor struct {
	AvailableWeekly       float64 `json:"availableWeekly"`
	ActualWeekly          float64 `json:"actualWeekly"`
	AvailableAnnual       float64 `json:"availableAnnual"`
	ActualAnnual          float64 `json:"actualAnnual"`
	ServiceUtilizationPct float64 `json:"serviceUtilizationPct"`
	ExcessCapacityPct     float64 `json:"excessCapacityPct"`
}

type ServiceAssessment struct {
	Status         string  `json:"status"`
	Recommendation string  `json:"recommendation"`
	MinBenchmark   float64 `json:"minBenchmark"`
	Optimal        float64 `json:"optimalBenchmark"`
	MaxBenchmark   float64 `json:"maxBenchmark"`
}

type CompactorCosts struct {
	AnnualHaul     float64 `json:"annualHaul"`
	AnnualDisposal float64 `json:"annualDisposal"`
	AnnualTotal    float64 `json:"annualTotal"`
}

type CompactorOptimization struct {
	RecommendedPickups      int     `json:"recommendedPickups"`
	PickupReduction         int     `json:"pickupReduction"`
	DaysBetweenPickups      float64 `json:"daysBetweenPickups"`
	OptimizedUtilizationPct float64 `json:"optimizedUtilizationPct"`
	AnnualSavings           float64 `json:"annualSavings"`
	MonthlySavings          float64 `json:"monthlySavings"`
	Priority                string  `json:"priority"`
}

// MonitorEvaluation decides whether fullness monitors pay for themselves.
type MonitorEvaluation struct {
	Eligible          bool    `json:"eligible"`
	Recommended       bool    `json:"recommended"`
	Reason            string  `json:"reason"`
	MonthlySavings    float64 `json:"monthlySavings"`
	MonthlyCost       float64 `json:"monthlyCost"`
	NetMonthlySavings float64 `json:"netMonthlySavings"`
}

// CompactorAnalysis is the output of the compactor-optimization skill.
type CompactorAnalysis struct {
	Applicable     bool                   `json:"applicable"`
	Reason         string                 `json:"reason,omitempty"`
	ContainerValid bool                   `json:"containerValid"`
	Warnings       []string               `json:"warnings,omitempty"`
	Inputs         *CompactorInputs       `json:"inputs,omitempty"`
	Capacity       *CapacityAnalysis      `json:"capacity,omitempty"`
	YardsPerDoor   *YardsPerDoor          `json:"yardsPerDoor,omitempty"`
	Service        *ServiceAssessment     `json:"serviceAssessment,omitempty"`
	Costs          *CompactorCosts        `json:"costs,omitempty"`
	Optimization   *CompactorOptimization `json:"optimization,omitempty"`
	Monitors       *MonitorEvaluation     `json:"monitors,omitempty"`
}

type CompactorOptimizer struct{}

func NewCompactorOptimizer() *CompactorOptimizer { return &CompactorOptimizer{} }

func (CompactorOptimizer) Name() skill.Name { return skill.CompactorOptimization }
func (CompactorOptimizer) Version() string  { return "2.0.0" }

func (s CompactorOptimizer) Execute(ctx context.Context, sc *skill.Context) (skill.Result, error) {
	if err := checkCtx(ctx); err != nil {
		return skill.Result{}, err
	}

	out := analyzePropertyCompactor(sc.Property, sc.HaulLogs, sc.Config)

	summary := map[string]any{"applicable": out.Applicable}
	if out.Capacity != nil {
		summary["utilizationPct"] = out.Capacity.UtilizationPct
		summary["status"] = out.Capacity.Status
	}
	if out.Optimization != nil {
		summary["annualSavings"] = out.Optimization.AnnualSavings
		summary["priority"] = out.Optimization.Priority
	}
	return skill.Result{Data: out, Summary: summary}, nil
}

func analyzePropertyCompactor(p models.Property, logs []models.HaulLog, cfg skill.Config) *CompactorAnalysis {
	switch {
	case !p.HasCompactor:
		return &CompactorAnalysis{Reason: "property has no compactor"}
	case len(logs) < 2:
		return &CompactorAnalysis{Reason: "at least two haul logs are required"}
	case p.ContainerSizeCY <= 0:
		return &CompactorAnalysis{Reason: "container size is unknown"}
	}

	in, ok := compactorInputs(p, logs, cfg)
	if !ok {
		return &CompactorAnalysis{Reason: "haul logs span less than one day"}
	}
	return analyzeCompactor(in, cfg)
}

// compactorInputs derives the service profile from haul history.
func compactorInputs(p models.Property, logs []models.HaulLog, cfg skill.Config) (CompactorInputs, bool) {
	sorted := slices.Clone(logs)
	slices.SortFunc(sorted, func(a, b models.HaulLog) int {
		return a.ServiceDate.Compare(b.ServiceDate)
	})

	span := daysBetween(sorted[0].ServiceDate, sorted[len(sorted)-1].ServiceDate)
	if span < 1 {
		return CompactorInputs{}, false
	}

	in := CompactorInputs{
		Units:           p.Units,
		ContainerSizeCY: p.ContainerSizeCY,
		ServiceType:     cmp.Or(strings.ToLower(p.ServiceType), ServiceCompacted),
		AnnualPickups:   int(math.Round(float64(len(sorted)-1) * 365 / span)),
	}

	var tons, haulFees, disposal float64
	maxGap := 0.0
	for i, l := range sorted {
		tons += l.Tons
		haulFees += l.HaulFee
		disposal += l.DisposalFee
		if l.Tons < cfg.Threshold("compactorTons") {
			in.LightHauls++
		}
		if i > 0 {
			maxGap = max(maxGap, daysBetween(sorted[i-1].ServiceDate, l.ServiceDate))
		}
	}
	n := float64(len(sorted))
	in.AvgTonsPerPull = round(tons/n, 2)
	in.BaseHaulFee = round(haulFees/n, 2)
	if tons > 0 {
		in.DisposalRatePerTon = round(disposal/tons, 2)
	}
	in.MaxDaysBetweenPickups = int(math.Round(maxGap))
	if p.MaxDaysBetweenPickups > 0 {
		in.MaxDaysBetweenPickups = p.MaxDaysBetweenPickups
	}
	return in, true
}

// validateContainer rejects data that looks like an open top.
func validateContainer(in CompactorInputs) []string {
	if strings.Contains(in.ServiceType, "open") {
		return []string{"service type is marked open top; compactor methodology does not apply"}
	}

	closest := expectedTonsBySize[0]
	for _, r := range expectedTonsBySize[1:] {
		if math.Abs(r.sizeCY-in.ContainerSizeCY) < math.Abs(closest.sizeCY-in.ContainerSizeCY) {
			closest = r
		}
	}
	if in.AvgTonsPerPull < closest.min*0.6 {
		return []string{
			fmt.Sprintf("average tonnage (%.2f tons) is unusually low for a %.0f-yard container", in.AvgTonsPerPull, in.ContainerSizeCY),
			fmt.Sprintf("expected range for a compactor is %.1f-%.1f tons", closest.min, closest.max),
			"data may represent an open top container",
		}
	}
	return nil
}

func analyzeCompactor(in CompactorInputs, cfg skill.Config) *CompactorAnalysis {
	out := &CompactorAnalysis{Applicable: true, Inputs: &in}

	if warnings := validateContainer(in); warnings != nil {
		out.Warnings = warnings
		return out
	}
	out.ContainerValid = true

	if float64(in.MaxDaysBetweenPickups) > cfg.Threshold("maxDaysBetweenPickups") {
		out.Warnings = append(out.Warnings, fmt.Sprintf("pickup interval of %d days exceeds %.0f days", in.MaxDaysBetweenPickups, cfg.Threshold("maxDaysBetweenPickups")))
	}

	pickups := float64(in.AnnualPickups)
	units := float64(in.Units)
	multiplier := cfg.Rate("haulFeeMultiplier")

	maxCapacity := in.ContainerSizeCY * cfg.Rate("lbsPerCubicYard") / cfg.Rate("lbsPerTon")
	utilization := in.AvgTonsPerPull / maxCapacity * 100
	annualTons := in.AvgTonsPerPull * pickups

	out.Capacity = &CapacityAnalysis{
		MaxCapacityTons: round(maxCapacity, 2),
		UtilizationPct:  round(utilization, 1),
		Status:          utilizationStatus(utilization, cfg),
	}

	availableAnnual := in.ContainerSizeCY * pickups
	actualAnnual := annualTons * cfg.Rate("tonsToYards")
	serviceUtilization := actualAnnual / availableAnnual * 100
	out.YardsPerDoor = &YardsPerDoor{
		AvailableWeekly:       round(availableAnnual/units/52, 3),
		ActualWeekly:          round(actualAnnual/units/52, 3),
		AvailableAnnual:       round(availableAnnual/units, 2),
		ActualAnnual:          round(actualAnnual/units, 2),
		ServiceUtilizationPct: round(serviceUtilization, 1),
		ExcessCapacityPct:     round(100-serviceUtilization, 1),
	}
	out.Service = assessService(availableAnnual/units/52, in.ServiceType)

	haulCost := in.BaseHaulFee * pickups * multiplier
	disposalCost := annualTons * in.DisposalRatePerTon
	out.Costs = &CompactorCosts{
		AnnualHaul:     round(haulCost, 2),
		AnnualDisposal: round(disposalCost, 2),
		AnnualTotal:    round(haulCost+disposalCost, 2),
	}

	if utilization < cfg.Threshold("optimizeBelowUtilizationPct") {
		optimal := int(math.Round(pickups * utilization / cfg.Threshold("targetUtilizationPct")))
		if optimal > 0 {
			savings := in.BaseHaulFee * multiplier * float64(in.AnnualPickups-optimal)
			priority := "MEDIUM"
			if utilization < cfg.Threshold("highPriorityBelowUtilizationPct") {
				priority = "HIGH"
			}
			out.Optimization = &CompactorOptimization{
				RecommendedPickups:      optimal,
				PickupReduction:         in.AnnualPickups - optimal,
				DaysBetweenPickups:      round(365/float64(optimal), 1),
				OptimizedUtilizationPct: round(annualTons/float64(optimal)/maxCapacity*100, 1),
				AnnualSavings:           round(savings, 2),
				MonthlySavings:          round(savings/12, 2),
				Priority:                priority,
			}
		}
	}

	out.Monitors = evaluateMonitors(in, out.Optimization, cfg)
	return out
}

func utilizationStatus(pct float64, cfg skill.Config) string {
	switch {
	case pct < cfg.Threshold("optimizeBelowUtilizationPct"):
		return "Under-utilized"
	case pct >= 70 && pct <= 85:
		return "Optimal"
	case pct < 70:
		return "Acceptable"
	default:
		return "Over-utilized"
	}
}

func assessService(weeklyYardsPerDoor float64, serviceType string) *ServiceAssessment {
	b, ok := yardsPerDoorBenchmarks[serviceType]
	if !ok {
		b = yardsPerDoorBenchmarks[ServiceCompacted]
	}
	a := &ServiceAssessment{MinBenchmark: b.min, Optimal: b.optimal, MaxBenchmark: b.max}
	switch {
	case weeklyYardsPerDoor < b.min:
		a.Status = "Under-serviced"
		a.Recommendation = "Increase frequency or container size"
	case weeklyYardsPerDoor <= b.max:
		a.Status = "Within acceptable range"
		if weeklyYardsPerDoor <= b.optimal {
			a.Recommendation = "Optimal - maintain current service"
		} else {
			a.Recommendation = "Slight over-service - consider minor frequency reduction"
		}
	default:
		a.Status = "Over-serviced"
		a.Recommendation = "Reduce frequency or downsize container"
	}
	return a
}

func evaluateMonitors(in CompactorInputs, opt *CompactorOptimization, cfg skill.Config) *MonitorEvaluation {
	m := &MonitorEvaluation{MonthlyCost: monitorInstallMonthly + monitorServiceMonthly}

	if in.AvgTonsPerPull >= cfg.Threshold("monitorMaxAvgTons") {
		m.Reason = fmt.Sprintf("average of %.2f tons per haul is already efficient", in.AvgTonsPerPull)
		return m
	}
	if float64(in.MaxDaysBetweenPickups) > cfg.Threshold("maxDaysBetweenPickups") {
		m.Reason = fmt.Sprintf("pickup interval of %d days is too long for monitors", in.MaxDaysBetweenPickups)
		return m
	}
	m.Eligible = true

	if opt != nil {
		m.MonthlySavings = opt.MonthlySavings
	}
	if m.MonthlySavings < cfg.Threshold("monitorMinMonthlySavings") {
		m.Reason = fmt.Sprintf("monthly pickup savings of %s are below %s", formatUSD(m.MonthlySavings), formatUSD(cfg.Threshold("monitorMinMonthlySavings")))
		return m
	}

	m.NetMonthlySavings = round(m.MonthlySavings-m.MonthlyCost, 2)
	if m.NetMonthlySavings <= 0 {
		m.Reason = "monitor cost exceeds pickup savings"
		return m
	}
	m.Recommended = true
	m.Reason = fmt.Sprintf("monitors net %s per month after monitor costs", formatUSD(m.NetMonthlySavings))
	return m
}
