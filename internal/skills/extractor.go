package skills

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/joshu-sajeev/wastewise/internal/skill"
)

// Line item categories recognised on hauler invoices.
const (
	CategoryBase          = "base"
	CategoryExtraPickup   = "extra_pickup"
	CategoryContamination = "contamination"
	CategoryOverage       = "overage"
	CategoryFuel          = "fuel_surcharge"
	CategoryFranchise     = "franchise_fee"
	CategoryAdmin         = "admin"
	CategoryEnvCharge     = "env_charge"
	CategoryRental        = "rental"
	CategoryEquipment     = "equipment"
	CategoryOther         = "other"
)

var knownCategories = []string{
	CategoryBase, CategoryExtraPickup, CategoryContamination, CategoryOverage,
	CategoryFuel, CategoryFranchise, CategoryAdmin, CategoryEnvCharge,
	CategoryRental, CategoryEquipment, CategoryOther,
}

type InvoiceValidation struct {
	InvoiceID       string          `json:"invoiceId"`
	InvoiceNumber   string          `json:"invoiceNumber,omitempty"`
	VendorName      string          `json:"vendorName,omitempty"`
	AmountDue       float64         `json:"amountDue"`
	Confidence      float64         `json:"confidence"`
	CriticalMissing []string        `json:"criticalMissing,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
	NeedsReview     bool            `json:"needsReview"`
	Checks          map[string]bool `json:"checks,omitempty"`
}

type MonthlySpend struct {
	Month      string             `json:"month"`
	Total      float64            `json:"total"`
	Categories map[string]float64 `json:"categories"`
}

type ConfidenceBands struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// InvoiceExtraction is the output of the waste-batch-extractor skill.
type InvoiceExtraction struct {
	PropertyID       string              `json:"propertyId"`
	PropertyName     string              `json:"propertyName"`
	InvoiceCount     int                 `json:"invoiceCount"`
	Invoices         []InvoiceValidation `json:"invoices"`
	CategoryTotals   map[string]float64  `json:"categoryTotals"`
	TotalSpend       float64             `json:"totalSpend"`
	Months           []MonthlySpend      `json:"months"`
	AvgMonthlySpend  float64             `json:"avgMonthlySpend"`
	Vendors          []string            `json:"vendors"`
	VendorConsistent bool                `json:"vendorConsistent"`
	NeedsReviewCount int                 `json:"needsReviewCount"`
	AvgConfidence    float64             `json:"avgConfidence"`
	Confidence       ConfidenceBands     `json:"confidence"`
	PeriodStart      *time.Time          `json:"periodStart,omitempty"`
	PeriodEnd        *time.Time          `json:"periodEnd,omitempty"`
}

// MonthlyCategoryAverage averages a category's spend over the months
// covered by dated invoices.
func (e *InvoiceExtraction) MonthlyCategoryAverage(category string) float64 {
	if len(e.Months) == 0 {
		return e.CategoryTotals[category]
	}
	return e.CategoryTotals[category] / float64(len(e.Months))
}

// MonthsWithCategory counts months where category has positive spend.
func (e *InvoiceExtraction) MonthsWithCategory(category string) int {
	n := 0
	for _, m := range e.Months {
		if m.Categories[category] > 0 {
			n++
		}
	}
	return n
}

type WasteBatchExtractor struct{}

func NewWasteBatchExtractor() *WasteBatchExtractor { return &WasteBatchExtractor{} }

func (WasteBatchExtractor) Name() skill.Name { return skill.WasteBatchExtractor }
func (WasteBatchExtractor) Version() string  { return "1.2.0" }

func (s WasteBatchExtractor) Execute(ctx context.Context, sc *skill.Context) (skill.Result, error) {
	if err := validateProperty(&sc.Property); err != nil {
		return skill.Result{}, err
	}
	if len(sc.Invoices) == 0 {
		return skill.Result{}, skill.ValidationErr("NO_INVOICES", "property %s has no invoices to extract", sc.Property.ID)
	}

	out, err := extractInvoices(ctx, sc.Property, sc.Invoices, sc.Config)
	if err != nil {
		return skill.Result{}, err
	}

	return skill.Result{
		Data: out,
		Summary: map[string]any{
			"invoiceCount":  out.InvoiceCount,
			"totalSpend":    out.TotalSpend,
			"needsReview":   out.NeedsReviewCount,
			"avgConfidence": out.AvgConfidence,
		},
	}, nil
}

func validateProperty(p *models.Property) error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "property name is required")
	}
	if p.Units <= 0 {
		problems = append(problems, "units must be positive")
	}
	if len(problems) > 0 {
		return skill.ValidationErr("INVALID_PROPERTY", "property %s is invalid: %s", p.ID, strings.Join(problems, "; "))
	}
	return nil
}

func extractInvoices(ctx context.Context, property models.Property, invoices []models.Invoice, cfg skill.Config) (*InvoiceExtraction, error) {
	out := &InvoiceExtraction{
		PropertyID:     property.ID,
		PropertyName:   property.Name,
		InvoiceCount:   len(invoices),
		CategoryTotals: map[string]float64{},
	}

	months := map[string]*MonthlySpend{}
	vendors := map[string]bool{}
	var confidenceSum float64

	for i := range invoices {
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		inv := &invoices[i]

		v := validateInvoice(property, inv, cfg)
		out.Invoices = append(out.Invoices, v)
		confidenceSum += v.Confidence
		if v.NeedsReview {
			out.NeedsReviewCount++
		}
		switch {
		case v.Confidence >= 0.85:
			out.Confidence.High++
		case v.Confidence >= cfg.Threshold("confidenceThreshold"):
			out.Confidence.Medium++
		default:
			out.Confidence.Low++
		}

		if name := strings.TrimSpace(inv.VendorName); name != "" {
			vendors[name] = true
		}
		out.TotalSpend += inv.AmountDue

		var month *MonthlySpend
		if inv.InvoiceDate != nil {
			d := inv.InvoiceDate.UTC()
			if out.PeriodStart == nil || d.Before(*out.PeriodStart) {
				out.PeriodStart = ptr(d)
			}
			if out.PeriodEnd == nil || d.After(*out.PeriodEnd) {
				out.PeriodEnd = ptr(d)
			}

			key := d.Format("2006-01")
			month = months[key]
			if month == nil {
				month = &MonthlySpend{Month: key, Categories: map[string]float64{}}
				months[key] = month
			}
			month.Total += inv.AmountDue
		}

		for _, item := range inv.LineItems {
			category := item.Category
			if category == "" {
				category = CategoryOther
			}
			out.CategoryTotals[category] += item.ExtendedAmount
			if month != nil {
				month.Categories[category] += item.ExtendedAmount
			}
		}
	}

	for _, key := range slices.Sorted(maps.Keys(months)) {
		m := months[key]
		m.Total = round(m.Total, 2)
		for c, v := range m.Categories {
			m.Categories[c] = round(v, 2)
		}
		out.Months = append(out.Months, *m)
	}
	for c, v := range out.CategoryTotals {
		out.CategoryTotals[c] = round(v, 2)
	}

	out.TotalSpend = round(out.TotalSpend, 2)
	if len(out.Months) > 0 {
		out.AvgMonthlySpend = round(out.TotalSpend/float64(len(out.Months)), 2)
	} else {
		out.AvgMonthlySpend = out.TotalSpend
	}
	out.AvgConfidence = round(confidenceSum/float64(len(invoices)), 2)
	out.Vendors = slices.Sorted(maps.Keys(vendors))
	out.VendorConsistent = len(out.Vendors) <= 1

	return out, nil
}

// validateInvoice scores how much an invoice can be trusted. Every failed
// check costs a configured penalty from a starting confidence of 1.
func validateInvoice(property models.Property, inv *models.Invoice, cfg skill.Config) InvoiceValidation {
	v := InvoiceValidation{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		VendorName:    inv.VendorName,
		AmountDue:     inv.AmountDue,
		Checks:        map[string]bool{},
	}
	confidence := 1.0

	critical := []struct {
		field   string
		present bool
	}{
		{"property_name", strings.TrimSpace(property.Name) != ""},
		{"vendor_name", strings.TrimSpace(inv.VendorName) != ""},
		{"invoice_number", strings.TrimSpace(inv.InvoiceNumber) != ""},
		{"invoice_date", inv.InvoiceDate != nil},
		{"amount_due", inv.AmountDue != 0},
	}
	for _, c := range critical {
		if !c.present {
			v.CriticalMissing = append(v.CriticalMissing, c.field)
			confidence -= cfg.Threshold("missingFieldPenalty")
		}
	}

	if len(inv.LineItems) > 0 {
		var lineTotal float64
		for _, item := range inv.LineItems {
			lineTotal += item.ExtendedAmount
		}

		if inv.Subtotal > 0 {
			matches := math.Abs(lineTotal-inv.Subtotal) <= cfg.Threshold("totalsTolerance")
			if !matches {
				v.Warnings = append(v.Warnings, fmt.Sprintf("line items total ($%.2f) does not match subtotal ($%.2f)", lineTotal, inv.Subtotal))
				confidence -= cfg.Threshold("lineItemMismatchPenalty")
			}
			v.Checks["lineItemsMatchSubtotal"] = matches
		}
		if inv.Subtotal > 0 && inv.AmountDue > 0 && inv.Subtotal > inv.AmountDue {
			v.Warnings = append(v.Warnings, fmt.Sprintf("subtotal ($%.2f) exceeds amount due ($%.2f)", inv.Subtotal, inv.AmountDue))
			confidence -= cfg.Threshold("subtotalExceedsPenalty")
		}
	}

	if inv.InvoiceDate != nil && inv.DueDate != nil {
		ordered := inv.DueDate.After(*inv.InvoiceDate)
		if !ordered {
			v.Warnings = append(v.Warnings, "due date is not after invoice date")
			confidence -= cfg.Threshold("dateOrderPenalty")
		}
		if terms := daysBetween(*inv.InvoiceDate, *inv.DueDate); terms > cfg.Threshold("longPaymentTermsDays") {
			v.Warnings = append(v.Warnings, fmt.Sprintf("unusually long payment terms: %d days", int(terms)))
		}
		v.Checks["dateConsistency"] = ordered
	}

	if inv.AmountDue < 0 {
		v.Warnings = append(v.Warnings, "negative amount due")
		confidence -= cfg.Threshold("negativeAmountPenalty")
	}

	for _, item := range inv.LineItems {
		if item.Category != "" && !slices.Contains(knownCategories, item.Category) {
			v.Warnings = append(v.Warnings, fmt.Sprintf("unknown line item category %q", item.Category))
		}
	}

	v.NeedsReview = confidence < cfg.Threshold("confidenceThreshold") || len(v.CriticalMissing) > 0
	v.Confidence = round(max(0, confidence), 2)
	return v
}
