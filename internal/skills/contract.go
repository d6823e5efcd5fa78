package skills

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/internal/skill"
)

// Clauses every hauling contract is expected to carry.
var requiredClauses = []string{"price_increase", "termination", "renewal"}

// ContractAnalysis is the output of the contract-extractor skill. Present is
// false when the job carried no contract terms.
type ContractAnalysis struct {
	Present             bool       `json:"present"`
	VendorName          string     `json:"vendorName,omitempty"`
	EffectiveDate       *time.Time `json:"effectiveDate,omitempty"`
	ExpirationDate      *time.Time `json:"expirationDate,omitempty"`
	TermYears           *float64   `json:"termYears,omitempty"`
	StatedTermYears     *float64   `json:"statedTermYears,omitempty"`
	DaysUntilExpiration *int       `json:"daysUntilExpiration,omitempty"`
	InRenewalWindow     bool       `json:"inRenewalWindow"`
	MissingClauses      []string   `json:"missingClauses,omitempty"`
	ScheduleCount       int        `json:"scheduleCount"`
	MonthlyServiceCost  float64    `json:"monthlyServiceCost"`
	VendorMatchesBills  *bool      `json:"vendorMatchesInvoices,omitempty"`
	Confidence          float64    `json:"confidence"`
	CriticalMissing     []string   `json:"criticalMissing,omitempty"`
	Warnings            []string   `json:"warnings,omitempty"`
	NeedsReview         bool       `json:"needsReview"`
}

type ContractExtractor struct{}

func NewContractExtractor() *ContractExtractor { return &ContractExtractor{} }

func (ContractExtractor) Name() skill.Name { return skill.ContractExtractor }
func (ContractExtractor) Version() string  { return "1.1.0" }

func (s ContractExtractor) Execute(ctx context.Context, sc *skill.Context) (skill.Result, error) {
	if err := checkCtx(ctx); err != nil {
		return skill.Result{}, err
	}

	var input dto.AnalysisInput
	if err := sc.DecodeInput(&input); err != nil {
		return skill.Result{}, err
	}
	if input.Contract == nil {
		return skill.Result{
			Data:    &ContractAnalysis{},
			Summary: map[string]any{"present": false},
		}, nil
	}

	out := analyzeContract(input.Contract, sc)
	summary := map[string]any{
		"present":         true,
		"confidence":      out.Confidence,
		"needsReview":     out.NeedsReview,
		"inRenewalWindow": out.InRenewalWindow,
	}
	if out.DaysUntilExpiration != nil {
		summary["daysUntilExpiration"] = *out.DaysUntilExpiration
	}
	return skill.Result{Data: out, Summary: summary}, nil
}

func analyzeContract(c *dto.ContractInput, sc *skill.Context) *ContractAnalysis {
	cfg := sc.Config
	out := &ContractAnalysis{
		Present:        true,
		VendorName:     strings.TrimSpace(c.VendorName),
		EffectiveDate:  c.EffectiveDate,
		ExpirationDate: c.ExpirationDate,
		ScheduleCount:  len(c.ServiceSchedules),
	}
	confidence := 1.0

	critical := []struct {
		field   string
		present bool
	}{
		{"vendor_name", out.VendorName != ""},
		{"effective_date", c.EffectiveDate != nil},
		{"expiration_date", c.ExpirationDate != nil},
	}
	for _, f := range critical {
		if !f.present {
			out.CriticalMissing = append(out.CriticalMissing, f.field)
			confidence -= cfg.Threshold("missingFieldPenalty")
		}
	}

	if c.EffectiveDate != nil && c.ExpirationDate != nil {
		if !c.ExpirationDate.After(*c.EffectiveDate) {
			out.Warnings = append(out.Warnings, "expiration date is not after effective date")
			confidence -= cfg.Threshold("dateOrderPenalty")
		} else {
			years := round(daysBetween(*c.EffectiveDate, *c.ExpirationDate)/cfg.Rate("daysPerYear"), 2)
			out.TermYears = &years
			if c.TermMonths > 0 {
				stated := round(float64(c.TermMonths)/12, 2)
				out.StatedTermYears = &stated
				if math.Abs(years-stated) > cfg.Threshold("termMismatchYears") {
					out.Warnings = append(out.Warnings, fmt.Sprintf("stated term of %.1f years does not match dates (%.1f years)", stated, years))
				}
			}
		}
	}

	if c.ExpirationDate != nil {
		days := int(math.Floor(daysBetween(sc.Now, *c.ExpirationDate)))
		out.DaysUntilExpiration = &days
		out.InRenewalWindow = days >= 0 && float64(days) <= cfg.Threshold("renewalWindowDays")
		if days < 0 {
			out.Warnings = append(out.Warnings, "contract has expired")
		}
	}

	for _, clause := range requiredClauses {
		if strings.TrimSpace(c.Clauses[clause]) == "" {
			out.MissingClauses = append(out.MissingClauses, clause)
			confidence -= cfg.Threshold("missingClausePenalty")
		}
	}

	if len(c.ServiceSchedules) == 0 {
		out.Warnings = append(out.Warnings, "no service schedules found")
		confidence -= cfg.Threshold("missingSchedulePenalty")
	}
	for _, sched := range c.ServiceSchedules {
		out.MonthlyServiceCost += sched.MonthlyRate
	}
	out.MonthlyServiceCost = round(out.MonthlyServiceCost, 2)

	if out.VendorName != "" && len(sc.Invoices) > 0 {
		matches := true
		for _, inv := range sc.Invoices {
			if name := strings.TrimSpace(inv.VendorName); name != "" && !strings.EqualFold(name, out.VendorName) {
				matches = false
				break
			}
		}
		out.VendorMatchesBills = &matches
		if !matches {
			out.Warnings = append(out.Warnings, "contract vendor differs from invoice vendor")
		}
	}

	out.NeedsReview = confidence < cfg.Threshold("confidenceThreshold") || len(out.CriticalMissing) > 0
	out.Confidence = round(max(0, confidence), 2)
	return out
}
