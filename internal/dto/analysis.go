package dto

import "time"

// AnalysisInput is the optional inputData accepted by the analysis job types.
type AnalysisInput struct {
	Contract   *ContractInput `json:"contract,omitempty"`
	ReportYear int            `json:"reportYear,omitempty" validate:"omitempty,gte=2000,lte=2100"`
	Notes      string         `json:"notes,omitempty" validate:"max=2000"`
}

// ContractInput carries contract terms captured upstream.
type ContractInput struct {
	VendorName       string            `json:"vendorName,omitempty" validate:"max=255"`
	EffectiveDate    *time.Time        `json:"effectiveDate,omitempty"`
	ExpirationDate   *time.Time        `json:"expirationDate,omitempty"`
	TermMonths       int               `json:"termMonths,omitempty" validate:"gte=0,lte=600"`
	Clauses          map[string]string `json:"clauses,omitempty"`
	ServiceSchedules []ServiceSchedule `json:"serviceSchedules,omitempty" validate:"dive"`
}

type ServiceSchedule struct {
	ContainerType    string  `json:"containerType" validate:"required"`
	SizeCY           float64 `json:"sizeCy" validate:"gte=0"`
	Quantity         int     `json:"quantity" validate:"gte=0"`
	FrequencyPerWeek float64 `json:"frequencyPerWeek" validate:"gte=0"`
	MonthlyRate      float64 `json:"monthlyRate" validate:"gte=0"`
}

// RegulatoryInput optionally overrides the property's location.
type RegulatoryInput struct {
	City  string `json:"city,omitempty" validate:"max=128"`
	State string `json:"state,omitempty" validate:"omitempty,len=2,uppercase"`
}
