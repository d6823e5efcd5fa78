package skill

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/joshu-sajeev/wastewise/internal/models"
	"gorm.io/datatypes"
)

// Config is the parsed, validated configuration of one skill.
type Config struct {
	Name            Name
	Version         int
	Thresholds      map[string]float64
	ConversionRates map[string]float64
}

// Threshold returns a threshold value. Validated configs carry every key
// the skill reads.
func (c Config) Threshold(key string) float64 {
	return c.Thresholds[key]
}

func (c Config) Rate(key string) float64 {
	return c.ConversionRates[key]
}

// Equal reports whether two configs carry identical values.
func (c Config) Equal(other Config) bool {
	return c.Name == other.Name &&
		c.Version == other.Version &&
		maps.Equal(c.Thresholds, other.Thresholds) &&
		maps.Equal(c.ConversionRates, other.ConversionRates)
}

// CanonicalConfigs are the reference values every stored configuration
// must match.
var CanonicalConfigs = map[Name]Config{
	CompactorOptimization: {
		Name:    CompactorOptimization,
		Version: 1,
		Thresholds: map[string]float64{
			"compactorTons":                   6.0,
			"targetUtilizationPct":            75,
			"optimizeBelowUtilizationPct":     60,
			"highPriorityBelowUtilizationPct": 50,
			"maxDaysBetweenPickups":           14,
			"monitorMaxAvgTons":               7,
			"monitorMinMonthlySavings":        300,
		},
		ConversionRates: map[string]float64{
			"compactorYpd":      14.49,
			"lbsPerCubicYard":   580,
			"lbsPerTon":         2000,
			"tonsToYards":       3.448,
			"haulFeeMultiplier": 1.39,
		},
	},
	WasteBatchExtractor: {
		Name:    WasteBatchExtractor,
		Version: 1,
		Thresholds: map[string]float64{
			"confidenceThreshold":     0.70,
			"missingFieldPenalty":     0.15,
			"lineItemMismatchPenalty": 0.10,
			"totalsTolerance":         1.0,
			"subtotalExceedsPenalty":  0.05,
			"dateOrderPenalty":        0.05,
			"negativeAmountPenalty":   0.10,
			"longPaymentTermsDays":    90,
		},
		ConversionRates: map[string]float64{},
	},
	ContractExtractor: {
		Name:    ContractExtractor,
		Version: 1,
		Thresholds: map[string]float64{
			"confidenceThreshold":    0.70,
			"missingFieldPenalty":    0.15,
			"dateOrderPenalty":       0.10,
			"missingClausePenalty":   0.05,
			"missingSchedulePenalty": 0.10,
			"termMismatchYears":      0.5,
			"renewalWindowDays":      180,
		},
		ConversionRates: map[string]float64{
			"daysPerYear": 365.25,
		},
	},
	RegulatoryResearch: {
		Name:    RegulatoryResearch,
		Version: 1,
		Thresholds: map[string]float64{
			"multifamilyUnitThreshold": 5,
		},
		ConversionRates: map[string]float64{},
	},
	WastewiseAnalytics: {
		Name:    WastewiseAnalytics,
		Version: 1,
		Thresholds: map[string]float64{
			"contaminationPct":                3,
			"contaminationFullPlanPct":        5,
			"contaminationFullPlanMinCharges": 150,
			"contaminationFullSavingsRate":    0.5,
			"contaminationLightSavingsRate":   0.25,
			"bulkSubscriptionTrigger":         500,
			"bulkMonitorFloor":                300,
			"bulkSubscriptionPrice":           400,
			"serviceReduceBelowTons":          6,
			"serviceAddDayAtTons":             8,
			"leaseUpMaxOccupancyPct":          90,
		},
		ConversionRates: map[string]float64{
			"compactorYpd":  14.49,
			"dumpsterYpd":   4.33,
			"monthsPerYear": 12,
		},
	},
	ReportGenerator: {
		Name:    ReportGenerator,
		Version: 1,
		Thresholds: map[string]float64{
			"topRecommendations": 3,
		},
		ConversionRates: map[string]float64{},
	},
}

// ParseRecord decodes a stored configuration row.
func ParseRecord(rec *models.SkillConfig) (Config, error) {
	cfg := Config{
		Name:            Name(rec.Name),
		Version:         rec.Version,
		Thresholds:      map[string]float64{},
		ConversionRates: map[string]float64{},
	}
	if len(rec.Thresholds) > 0 {
		if err := json.Unmarshal(rec.Thresholds, &cfg.Thresholds); err != nil {
			return Config{}, fmt.Errorf("parse thresholds for %s: %w", rec.Name, err)
		}
	}
	if len(rec.ConversionRates) > 0 {
		if err := json.Unmarshal(rec.ConversionRates, &cfg.ConversionRates); err != nil {
			return Config{}, fmt.Errorf("parse conversion rates for %s: %w", rec.Name, err)
		}
	}
	// "null" decodes to a nil map
	if cfg.Thresholds == nil {
		cfg.Thresholds = map[string]float64{}
	}
	if cfg.ConversionRates == nil {
		cfg.ConversionRates = map[string]float64{}
	}
	return cfg, nil
}

// Validate compares cfg against its canonical reference. Every differing
// version, missing key, extra key or value is reported.
func Validate(cfg Config) error {
	ref, ok := CanonicalConfigs[cfg.Name]
	if !ok {
		return fmt.Errorf("no canonical configuration for %q", cfg.Name)
	}

	var problems []string
	if cfg.Version != ref.Version {
		problems = append(problems, fmt.Sprintf("version %d, want %d", cfg.Version, ref.Version))
	}
	problems = append(problems, diffValues("thresholds", cfg.Thresholds, ref.Thresholds)...)
	problems = append(problems, diffValues("conversionRates", cfg.ConversionRates, ref.ConversionRates)...)

	if len(problems) > 0 {
		return fmt.Errorf("configuration %s drifted from canonical values: %s", cfg.Name, strings.Join(problems, "; "))
	}
	return nil
}

func diffValues(section string, got, want map[string]float64) []string {
	var problems []string
	for _, key := range slices.Sorted(maps.Keys(want)) {
		v, ok := got[key]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%s.%s missing", section, key))
		case v != want[key]:
			problems = append(problems, fmt.Sprintf("%s.%s = %v, want %v", section, key, v, want[key]))
		}
	}
	for _, key := range slices.Sorted(maps.Keys(got)) {
		if _, ok := want[key]; !ok {
			problems = append(problems, fmt.Sprintf("%s.%s unexpected", section, key))
		}
	}
	return problems
}

// CanonicalRecords renders the canonical configurations as storable rows in
// a stable order.
func CanonicalRecords() []models.SkillConfig {
	names := slices.Sorted(maps.Keys(CanonicalConfigs))

	records := make([]models.SkillConfig, 0, len(names))
	for _, name := range names {
		cfg := CanonicalConfigs[name]
		thresholds, _ := json.Marshal(cfg.Thresholds)
		rates, _ := json.Marshal(cfg.ConversionRates)
		records = append(records, models.SkillConfig{
			Name:            string(cfg.Name),
			Version:         cfg.Version,
			Thresholds:      datatypes.JSON(thresholds),
			ConversionRates: datatypes.JSON(rates),
		})
	}
	return records
}
