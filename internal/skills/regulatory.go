package skills

import (
	"context"
	"strings"

	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/internal/skill"
)

type Ordinance struct {
	Name         string   `json:"name"`
	Authority    string   `json:"authority"`
	Scope        string   `json:"scope"`
	Requirements []string `json:"requirements"`
}

type jurisdiction struct {
	city       string // empty applies statewide
	state      string
	ordinances []Ordinance
}

var jurisdictions = []jurisdiction{
	{
		city:  "Austin",
		state: "TX",
		ordinances: []Ordinance{{
			Name:      "Universal Recycling Ordinance (URO)",
			Authority: "City of Austin Resource Recovery",
			Scope:     "multifamily properties",
			Requirements: []string{
				"Provide convenient recycling access to all residents",
				"Offer organics diversion for residents",
				"Submit an annual diversion plan",
				"Post signage and educate tenants on move-in and annually",
			},
		}},
	},
	{
		state: "CA",
		ordinances: []Ordinance{
			{
				Name:      "AB 341 Mandatory Commercial Recycling",
				Authority: "CalRecycle",
				Scope:     "multifamily properties with 5 or more units",
				Requirements: []string{
					"Arrange recycling service for residents",
				},
			},
			{
				Name:      "SB 1383 Short-Lived Climate Pollutants",
				Authority: "CalRecycle",
				Scope:     "multifamily properties",
				Requirements: []string{
					"Subscribe to organics collection service",
					"Provide color-coded containers and annual tenant education",
					"Allow jurisdiction contamination monitoring",
				},
			},
		},
	},
	{
		city:  "New York",
		state: "NY",
		ordinances: []Ordinance{{
			Name:      "NYC Residential Recycling and Curbside Composting Rules",
			Authority: "Department of Sanitation (DSNY)",
			Scope:     "residential buildings",
			Requirements: []string{
				"Separate paper, metal, glass and plastic recyclables",
				"Separate yard waste and food scraps for curbside composting",
				"Maintain recycling containers and decals in common areas",
			},
		}},
	},
	{
		city:  "Seattle",
		state: "WA",
		ordinances: []Ordinance{{
			Name:      "Seattle Recycling and Food Waste Requirements",
			Authority: "Seattle Public Utilities",
			Scope:     "multifamily properties",
			Requirements: []string{
				"Provide food and yard waste collection",
				"Keep recyclables and compostables out of garbage",
			},
		}},
	},
	{
		city:  "Denver",
		state: "CO",
		ordinances: []Ordinance{{
			Name:      "Waste No More Ordinance",
			Authority: "Denver Department of Public Health and Environment",
			Scope:     "multifamily properties",
			Requirements: []string{
				"Provide recycling and composting service",
				"Educate tenants annually",
			},
		}},
	},
}

// RegulatoryFindings is the output of the regulatory-research skill.
type RegulatoryFindings struct {
	City                string      `json:"city,omitempty"`
	State               string      `json:"state,omitempty"`
	Units               int         `json:"units"`
	Applicable          bool        `json:"applicable"`
	Ordinances          []Ordinance `json:"ordinances"`
	NeedsManualResearch bool        `json:"needsManualResearch"`
	Note                string      `json:"note,omitempty"`
}

type RegulatoryResearch struct{}

func NewRegulatoryResearch() *RegulatoryResearch { return &RegulatoryResearch{} }

func (RegulatoryResearch) Name() skill.Name { return skill.RegulatoryResearch }
func (RegulatoryResearch) Version() string  { return "1.0.0" }

func (s RegulatoryResearch) Execute(ctx context.Context, sc *skill.Context) (skill.Result, error) {
	if err := checkCtx(ctx); err != nil {
		return skill.Result{}, err
	}

	// the location override is accepted by every job type that runs this step
	var input dto.RegulatoryInput
	if err := sc.DecodeInput(&input); err != nil {
		return skill.Result{}, err
	}

	city := strings.TrimSpace(sc.Property.City)
	state := strings.ToUpper(strings.TrimSpace(sc.Property.State))
	if input.City != "" {
		city = strings.TrimSpace(input.City)
	}
	if input.State != "" {
		state = strings.ToUpper(strings.TrimSpace(input.State))
	}

	out := research(city, state, sc.Property.Units, sc.Config)
	return skill.Result{
		Data: out,
		Summary: map[string]any{
			"jurisdiction":        strings.Trim(city+", "+state, ", "),
			"ordinanceCount":      len(out.Ordinances),
			"applicable":          out.Applicable,
			"needsManualResearch": out.NeedsManualResearch,
		},
	}, nil
}

func research(city, state string, units int, cfg skill.Config) *RegulatoryFindings {
	out := &RegulatoryFindings{City: city, State: state, Units: units, Ordinances: []Ordinance{}}

	if city == "" || state == "" {
		out.NeedsManualResearch = true
		out.Note = "property location is incomplete"
		return out
	}

	var matched []Ordinance
	for _, j := range jurisdictions {
		if j.state != state {
			continue
		}
		if j.city == "" || strings.EqualFold(j.city, city) {
			matched = append(matched, j.ordinances...)
		}
	}
	if len(matched) == 0 {
		out.NeedsManualResearch = true
		out.Note = "no ordinances on file for " + city + ", " + state
		return out
	}

	if float64(units) < cfg.Threshold("multifamilyUnitThreshold") {
		out.Note = "property is below the multifamily unit threshold"
		return out
	}

	out.Applicable = true
	out.Ordinances = matched
	return out
}
