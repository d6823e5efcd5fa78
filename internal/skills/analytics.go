package skills

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/joshu-sajeev/wastewise/internal/skill"
)

const (
	leaseUpStatus             = "lease-up"
	leaseUpTargetOccupancyPct = 95.0
	consistentOverageShare    = 0.75
	seasonalOverageShare      = 0.25
)

type Financials struct {
	Months               int     `json:"months"`
	TotalSpend           float64 `json:"totalSpend"`
	MonthlyCost          float64 `json:"monthlyCost"`
	MonthlyContamination float64 `json:"monthlyContamination"`
	MonthlyBulk          float64 `json:"monthlyBulk"`
	MonthlyOverage       float64 `json:"monthlyOverage"`
	ContaminationPct     float64 `json:"contaminationPct"`
	CostPerHaul          float64 `json:"costPerHaul"`
	AvgTonsPerHaul       float64 `json:"avgTonsPerHaul"`
	OveragesPresent      bool    `json:"overagesPresent"`
	OverageFrequency     string  `json:"overageFrequency"`
}

type Recommendation struct {
	Title          string   `json:"title"`
	Detail         string   `json:"detail"`
	Category       string   `json:"category"`
	MonthlySavings float64  `json:"monthlySavings"`
	AnnualSavings  float64  `json:"annualSavings"`
	PaybackMonths  *float64 `json:"paybackMonths,omitempty"`
	Priority       int      `json:"priority"`
}

// AnalyticsResult is the output of the wastewise-analytics skill.
type AnalyticsResult struct {
	PropertyName       string           `json:"propertyName"`
	Units              int              `json:"units"`
	Warnings           []string         `json:"warnings,omitempty"`
	Financials         Financials       `json:"financials"`
	YardsPerDoor       *float64         `json:"yardsPerDoor,omitempty"`
	YardsPerDoorBasis  string           `json:"yardsPerDoorBasis,omitempty"`
	CostPerDoor        float64          `json:"costPerDoor"`
	ServiceLevel       string           `json:"serviceLevel"`
	OverageStrategy    string           `json:"overageStrategy,omitempty"`
	LeaseUpProjection  *float64         `json:"leaseUpProjection,omitempty"`
	Recommendations    []Recommendation `json:"recommendations"`
	TotalAnnualSavings float64          `json:"totalAnnualSavings"`
}

type WastewiseAnalytics struct{}

func NewWastewiseAnalytics() *WastewiseAnalytics { return &WastewiseAnalytics{} }

func (WastewiseAnalytics) Name() skill.Name { return skill.WastewiseAnalytics }
func (WastewiseAnalytics) Version() string  { return "1.4.0" }

func (s WastewiseAnalytics) Execute(ctx context.Context, sc *skill.Context) (skill.Result, error) {
	if err := validateProperty(&sc.Property); err != nil {
		return skill.Result{}, err
	}
	if len(sc.Invoices) == 0 {
		return skill.Result{}, skill.ValidationErr("NO_INVOICES", "property %s has no invoices to analyse", sc.Property.ID)
	}

	extraction, ok := previous[*InvoiceExtraction](sc, skill.WasteBatchExtractor)
	if !ok {
		return skill.Result{}, skill.ValidationErr("MISSING_EXTRACTION", "analytics requires %s output", skill.WasteBatchExtractor)
	}
	compactor, ok := previous[*CompactorAnalysis](sc, skill.CompactorOptimization)
	if !ok {
		return skill.Result{}, skill.ValidationErr("MISSING_COMPACTOR_ANALYSIS", "analytics requires %s output", skill.CompactorOptimization)
	}
	if err := checkCtx(ctx); err != nil {
		return skill.Result{}, err
	}

	out := analyze(sc, extraction, compactor)
	return skill.Result{
		Data: out,
		Summary: map[string]any{
			"recommendationCount": len(out.Recommendations),
			"totalAnnualSavings":  out.TotalAnnualSavings,
			"costPerDoor":         out.CostPerDoor,
		},
	}, nil
}

func analyze(sc *skill.Context, extraction *InvoiceExtraction, compactor *CompactorAnalysis) *AnalyticsResult {
	cfg := sc.Config
	p := sc.Property
	units := float64(p.Units)

	out := &AnalyticsResult{PropertyName: p.Name, Units: p.Units}
	if p.Status == leaseUpStatus && p.OccupancyPct >= cfg.Threshold("leaseUpMaxOccupancyPct") {
		out.Warnings = append(out.Warnings, fmt.Sprintf("lease-up status is inconsistent with %.0f%% occupancy", p.OccupancyPct))
	}
	out.Warnings = append(out.Warnings, compactor.Warnings...)

	fin := financials(extraction, compactor)
	out.Financials = fin
	out.CostPerDoor = round(fin.MonthlyCost/units, 2)

	switch {
	case compactor.ContainerValid:
		monthlyTons := compactor.Inputs.AvgTonsPerPull * float64(compactor.Inputs.AnnualPickups) / cfg.Rate("monthsPerYear")
		out.YardsPerDoor = ptr(round(monthlyTons*cfg.Rate("compactorYpd")/units, 2))
		out.YardsPerDoorBasis = "compactor"
	case p.DumpsterQty > 0:
		ypd := float64(p.DumpsterQty) * p.DumpsterSizeCY * p.DumpsterFreqPerWeek * cfg.Rate("dumpsterYpd") / units
		out.YardsPerDoor = ptr(round(ypd, 2))
		out.YardsPerDoorBasis = "dumpster"
	}

	out.ServiceLevel = serviceLevel(fin, cfg)

	if p.Status == leaseUpStatus && p.OccupancyPct > 0 {
		out.LeaseUpProjection = ptr(round(fin.MonthlyCost/p.OccupancyPct*leaseUpTargetOccupancyPct, 2))
	}

	var recs []Recommendation
	if r, ok := compactorRecommendation(compactor); ok {
		recs = append(recs, r)
	}
	if r, ok := contaminationPlan(fin, cfg); ok {
		recs = append(recs, r)
	}
	recs = append(recs, bulkStrategy(fin, cfg))

	extraService := fin.CostPerHaul * cfg.Rate("dumpsterYpd")
	if extraService == 0 && p.DumpsterFreqPerWeek > 0 {
		extraService = extraction.MonthlyCategoryAverage(CategoryBase) / p.DumpsterFreqPerWeek
	}
	strategy, rec := overageStrategy(fin, extraService)
	out.OverageStrategy = strategy
	if rec != nil {
		recs = append(recs, *rec)
	}

	out.Recommendations = prioritize(recs)
	for _, r := range out.Recommendations {
		out.TotalAnnualSavings += r.AnnualSavings
	}
	out.TotalAnnualSavings = round(out.TotalAnnualSavings, 2)
	return out
}

func financials(e *InvoiceExtraction, c *CompactorAnalysis) Financials {
	f := Financials{
		Months:               len(e.Months),
		TotalSpend:           e.TotalSpend,
		MonthlyCost:          e.AvgMonthlySpend,
		MonthlyContamination: round(e.MonthlyCategoryAverage(CategoryContamination), 2),
		MonthlyBulk:          round(e.MonthlyCategoryAverage(CategoryExtraPickup), 2),
		MonthlyOverage:       round(e.MonthlyCategoryAverage(CategoryOverage), 2),
	}
	if e.TotalSpend > 0 {
		f.ContaminationPct = round(e.CategoryTotals[CategoryContamination]/e.TotalSpend*100, 2)
	}
	if c.Inputs != nil {
		f.CostPerHaul = c.Inputs.BaseHaulFee
		f.AvgTonsPerHaul = c.Inputs.AvgTonsPerPull
	}

	overageMonths := e.MonthsWithCategory(CategoryOverage)
	f.OveragesPresent = e.CategoryTotals[CategoryOverage] > 0
	switch {
	case !f.OveragesPresent:
		f.OverageFrequency = "none"
	case len(e.Months) == 0:
		f.OverageFrequency = "sporadic"
	case float64(overageMonths)/float64(len(e.Months)) >= consistentOverageShare:
		f.OverageFrequency = "consistent"
	case float64(overageMonths)/float64(len(e.Months)) >= seasonalOverageShare:
		f.OverageFrequency = "seasonal"
	default:
		f.OverageFrequency = "sporadic"
	}
	return f
}

func compactorRecommendation(c *CompactorAnalysis) (Recommendation, bool) {
	if c.Monitors != nil && c.Monitors.Recommended {
		net := c.Monitors.NetMonthlySavings
		return Recommendation{
			Title:          "Add Compactor Monitors",
			Detail:         "Average tons per haul is low and pickups are frequent; monitors trigger hauls only when the compactor is full.",
			Category:       "compactor",
			MonthlySavings: net,
			AnnualSavings:  round(net*12, 2),
		}, true
	}
	if c.Optimization != nil {
		o := c.Optimization
		return Recommendation{
			Title: "Reduce Compactor Pickups",
			Detail: fmt.Sprintf("Reduce from %d to %d pickups per year (every %.1f days) for %.1f%% utilization; %s priority.",
				c.Inputs.AnnualPickups, o.RecommendedPickups, o.DaysBetweenPickups, o.OptimizedUtilizationPct, o.Priority),
			Category:       "compactor",
			MonthlySavings: o.MonthlySavings,
			AnnualSavings:  o.AnnualSavings,
			PaybackMonths:  ptr(0.0),
		}, true
	}
	return Recommendation{}, false
}

func contaminationPlan(f Financials, cfg skill.Config) (Recommendation, bool) {
	if f.ContaminationPct <= cfg.Threshold("contaminationPct") {
		return Recommendation{}, false
	}

	detail := "Light intervention: signage refresh and resident reminders."
	if f.ContaminationPct > cfg.Threshold("contaminationFullPlanPct") && f.MonthlyContamination > cfg.Threshold("contaminationFullPlanMinCharges") {
		detail = "Full contamination reduction: signage, resident education and monthly monitoring."
	}

	rate := cfg.Threshold("contaminationLightSavingsRate")
	if f.ContaminationPct > cfg.Threshold("contaminationFullPlanPct") {
		rate = cfg.Threshold("contaminationFullSavingsRate")
	}
	monthly := round(f.MonthlyContamination*rate, 2)
	return Recommendation{
		Title:          "Contamination Reduction",
		Detail:         detail,
		Category:       "contamination",
		MonthlySavings: monthly,
		AnnualSavings:  round(monthly*12, 2),
	}, true
}

func bulkStrategy(f Financials, cfg skill.Config) Recommendation {
	price := cfg.Threshold("bulkSubscriptionPrice")
	switch {
	case f.MonthlyBulk > cfg.Threshold("bulkSubscriptionTrigger"):
		monthly := round(f.MonthlyBulk-price, 2)
		return Recommendation{
			Title:          "Switch to Bulk Subscription",
			Detail:         fmt.Sprintf("Average bulk spend of %s per month exceeds a %s subscription.", formatUSD(f.MonthlyBulk), formatUSD(price)),
			Category:       "bulk",
			MonthlySavings: monthly,
			AnnualSavings:  round(monthly*12, 2),
		}
	case f.MonthlyBulk >= cfg.Threshold("bulkMonitorFloor"):
		return Recommendation{
			Title:    "Monitor Bulk Spend",
			Detail:   "Borderline spend; monitor for three months and prepare a subscription if the trend increases.",
			Category: "bulk",
		}
	default:
		return Recommendation{
			Title:    "Keep On-Demand Bulk",
			Detail:   "On-demand pricing remains cost-effective.",
			Category: "bulk",
		}
	}
}

// overageStrategy compares recurring overage charges with the cost of an
// added weekly service day.
func overageStrategy(f Financials, extraServiceMonthly float64) (string, *Recommendation) {
	switch f.OverageFrequency {
	case "none":
		return "", nil
	case "consistent":
		if extraServiceMonthly > 0 && extraServiceMonthly < f.MonthlyOverage {
			monthly := round(f.MonthlyOverage-extraServiceMonthly, 2)
			return "Add permanent service day; cheaper than overages.", &Recommendation{
				Title:          "Add Service Day",
				Detail:         fmt.Sprintf("Overages average %s per month against %s for an added service day.", formatUSD(f.MonthlyOverage), formatUSD(extraServiceMonthly)),
				Category:       "overage",
				MonthlySavings: monthly,
				AnnualSavings:  round(monthly*12, 2),
			}
		}
		return "Overages cheaper than added service; keep status quo.", nil
	case "seasonal":
		return "Add seasonal service only during peak months.", nil
	default:
		return "Investigate operations (valet distribution, compliance); consider larger equipment if needed.", nil
	}
}

func serviceLevel(f Financials, cfg skill.Config) string {
	if f.AvgTonsPerHaul == 0 {
		return "Insufficient haul data for service-level guidance."
	}
	reduceBelow := cfg.Threshold("serviceReduceBelowTons")
	contaminationOrOverages := f.MonthlyContamination > 0 || f.OveragesPresent

	switch {
	case contaminationOrOverages && f.AvgTonsPerHaul < reduceBelow:
		return "Address contamination and overages before any reduction."
	case f.AvgTonsPerHaul >= cfg.Threshold("serviceAddDayAtTons") && f.OveragesPresent:
		return "Add service day (compactor near capacity)."
	case f.AvgTonsPerHaul < reduceBelow && !f.OveragesPresent:
		return "Reduce pickup frequency (underutilized)."
	default:
		return "Maintain current service."
	}
}

// prioritize orders by annual savings, then by payback with unknown
// payback last, and numbers the result from 1.
func prioritize(recs []Recommendation) []Recommendation {
	ranked := slices.Clone(recs)
	slices.SortStableFunc(ranked, func(a, b Recommendation) int {
		if c := cmp.Compare(b.AnnualSavings, a.AnnualSavings); c != 0 {
			return c
		}
		switch {
		case a.PaybackMonths == nil && b.PaybackMonths == nil:
			return 0
		case a.PaybackMonths == nil:
			return 1
		case b.PaybackMonths == nil:
			return -1
		}
		return cmp.Compare(*a.PaybackMonths, *b.PaybackMonths)
	})
	for i := range ranked {
		ranked[i].Priority = i + 1
	}
	if ranked == nil {
		ranked = []Recommendation{}
	}
	return ranked
}
