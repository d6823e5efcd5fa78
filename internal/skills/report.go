package skills

import (
	"context"
	"fmt"

	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/internal/skill"
)

// Report sections in presentation order.
var reportSections = []struct {
	skill skill.Name
	name  string
}{
	{skill.WasteBatchExtractor, "expense_analysis"},
	{skill.ContractExtractor, "contract_terms"},
	{skill.RegulatoryResearch, "regulatory_compliance"},
	{skill.CompactorOptimization, "optimization"},
	{skill.WastewiseAnalytics, "recommendations"},
}

type Report struct {
	PropertyID         string           `json:"propertyId"`
	PropertyName       string           `json:"propertyName"`
	Units              int              `json:"units"`
	ReportYear         int              `json:"reportYear"`
	Headline           string           `json:"headline"`
	InvoiceCount       int              `json:"invoiceCount"`
	InvoicesForReview  int              `json:"invoicesForReview"`
	MonthlyCost        float64          `json:"monthlyCost"`
	CostPerDoor        float64          `json:"costPerDoor"`
	TotalAnnualSavings float64          `json:"totalAnnualSavings"`
	TopRecommendations []Recommendation `json:"topRecommendations"`
	Sections           []string         `json:"sections"`
	ContractRenewalDue bool             `json:"contractRenewalDue"`
	Regulated          bool             `json:"regulated"`
	Notes              string           `json:"notes,omitempty"`
}

type ReportGenerator struct{}

func NewReportGenerator() *ReportGenerator { return &ReportGenerator{} }

func (ReportGenerator) Name() skill.Name { return skill.ReportGenerator }
func (ReportGenerator) Version() string  { return "1.1.0" }

func (s ReportGenerator) Execute(ctx context.Context, sc *skill.Context) (skill.Result, error) {
	if len(sc.Previous) == 0 {
		return skill.Result{}, skill.ValidationErr("NO_PRIOR_OUTPUT", "report requires at least one completed analysis step")
	}
	if err := checkCtx(ctx); err != nil {
		return skill.Result{}, err
	}

	var input dto.AnalysisInput
	if err := sc.DecodeInput(&input); err != nil {
		return skill.Result{}, err
	}

	r := &Report{
		PropertyID:   sc.Property.ID,
		PropertyName: sc.Property.Name,
		Units:        sc.Property.Units,
		ReportYear:   input.ReportYear,
		Notes:        input.Notes,
		InvoiceCount: len(sc.Invoices),
		Sections:     []string{},
	}
	if r.ReportYear == 0 {
		r.ReportYear = sc.Now.Year() + 1
	}

	for _, sec := range reportSections {
		if _, ok := sc.Output(sec.skill); ok {
			r.Sections = append(r.Sections, sec.name)
		}
	}

	if e, ok := previous[*InvoiceExtraction](sc, skill.WasteBatchExtractor); ok {
		r.InvoiceCount = e.InvoiceCount
		r.InvoicesForReview = e.NeedsReviewCount
		r.MonthlyCost = e.AvgMonthlySpend
	}
	if c, ok := previous[*ContractAnalysis](sc, skill.ContractExtractor); ok {
		r.ContractRenewalDue = c.InRenewalWindow
	}
	if reg, ok := previous[*RegulatoryFindings](sc, skill.RegulatoryResearch); ok {
		r.Regulated = reg.Applicable
	}

	r.TopRecommendations = []Recommendation{}
	if a, ok := previous[*AnalyticsResult](sc, skill.WastewiseAnalytics); ok {
		r.TotalAnnualSavings = a.TotalAnnualSavings
		r.CostPerDoor = a.CostPerDoor
		n := min(int(sc.Config.Threshold("topRecommendations")), len(a.Recommendations))
		r.TopRecommendations = append(r.TopRecommendations, a.Recommendations[:n]...)
	} else if c, ok := previous[*CompactorAnalysis](sc, skill.CompactorOptimization); ok && c.Optimization != nil {
		r.TotalAnnualSavings = c.Optimization.AnnualSavings
	}

	r.Headline = fmt.Sprintf("Potential to Reduce %d Trash Expense by %s", r.ReportYear, formatUSD(r.TotalAnnualSavings))

	titles := make([]string, 0, len(r.TopRecommendations))
	for _, rec := range r.TopRecommendations {
		titles = append(titles, rec.Title)
	}
	return skill.Result{
		Data: r,
		Summary: map[string]any{
			"propertyName":       r.PropertyName,
			"headline":           r.Headline,
			"invoiceCount":       r.InvoiceCount,
			"totalAnnualSavings": r.TotalAnnualSavings,
			"topRecommendations": titles,
			"sections":           r.Sections,
		},
	}, nil
}
