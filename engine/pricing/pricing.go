// Package pricing estimates the current market value of a used vehicle from
// its price when new.
package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
)

// Bracket applies Rate to every year of age up to and including UpToYear.
// The last bracket of a policy should have UpToYear 0, meaning unbounded.
type Bracket struct {
	UpToYear int     `koanf:"up_to_year" yaml:"up_to_year" json:"up_to_year"`
	Rate     float64 `koanf:"rate" yaml:"rate" json:"rate"`
}

// Policy holds the depreciation schedule and the adjustment multipliers.
type Policy struct {
	Brackets []Bracket `koanf:"brackets" json:"brackets"`
	Floor    float64   `koanf:"floor" json:"floor"`
	Band     float64   `koanf:"band" json:"band"`

	Segment     map[domain.Segment]float64 `koanf:"-" json:"-"`
	Country     map[string]float64         `koanf:"-" json:"-"`
	Demand      map[domain.Level]float64   `koanf:"-" json:"-"`
	Reliability map[domain.Level]float64   `koanf:"-" json:"-"`

	// Fuel efficiency at or above EfficientKML earns EfficientMult; at or
	// below ThirstyKML it takes ThirstyMult.
	EfficientKML  float64 `koanf:"efficient_kml" json:"efficient_kml"`
	EfficientMult float64 `koanf:"efficient_mult" json:"efficient_mult"`
	ThirstyKML    float64 `koanf:"thirsty_kml" json:"thirsty_kml"`
	ThirstyMult   float64 `koanf:"thirsty_mult" json:"thirsty_mult"`
}

// DefaultPolicy returns the stock schedule: 10% a year for the first five
// years, 15% for years six to ten, 22% after that, a 5000 floor and a ±10%
// band.
func DefaultPolicy() Policy {
	return Policy{
		Brackets: []Bracket{{UpToYear: 5, Rate: 0.10}, {UpToYear: 10, Rate: 0.15}, {Rate: 0.22}},
		Floor:    5000,
		Band:     0.10,
		Segment: map[domain.Segment]float64{
			domain.SegmentLuxury:    0.95,
			domain.SegmentExecutive: 0.95,
			domain.SegmentSUV:       0.95,
			domain.SegmentBudget:    1.03,
			domain.SegmentCompact:   1.03,
			domain.SegmentMini:      1.03,
		},
		Country: map[string]float64{
			"japan":   1.02,
			"korea":   1.02,
			"germany": 0.99,
			"france":  0.97,
			"italy":   0.97,
			"china":   0.96,
		},
		Demand:        map[domain.Level]float64{domain.LevelHigh: 1.03, domain.LevelLow: 0.96},
		Reliability:   map[domain.Level]float64{domain.LevelHigh: 1.03, domain.LevelLow: 0.95},
		EfficientKML:  18,
		EfficientMult: 1.02,
		ThirstyKML:    10,
		ThirstyMult:   0.97,
	}
}

// FlatPolicy is DefaultPolicy with a single depreciation rate for every year.
func FlatPolicy(rate float64) Policy {
	p := DefaultPolicy()
	p.Brackets = []Bracket{{Rate: rate}}
	return p
}

// Validate reports the first inconsistency in p.
func (p Policy) Validate() error {
	if len(p.Brackets) == 0 {
		return fmt.Errorf("pricing: no depreciation brackets")
	}
	prev := 0
	for i, b := range p.Brackets {
		if b.Rate <= 0 || b.Rate >= 1 {
			return fmt.Errorf("pricing: bracket %d rate %.3f outside (0,1)", i, b.Rate)
		}
		last := i == len(p.Brackets)-1
		if !last && b.UpToYear <= prev {
			return fmt.Errorf("pricing: bracket %d ends at year %d, not after %d", i, b.UpToYear, prev)
		}
		if last && b.UpToYear != 0 && b.UpToYear <= prev {
			return fmt.Errorf("pricing: bracket %d ends at year %d, not after %d", i, b.UpToYear, prev)
		}
		prev = b.UpToYear
	}
	if p.Floor < 0 {
		return fmt.Errorf("pricing: negative floor %.0f", p.Floor)
	}
	if p.Band < 0 || p.Band > 0.5 {
		return fmt.Errorf("pricing: band %.3f outside [0,0.5]", p.Band)
	}
	for _, m := range p.multipliers() {
		if m <= 0 {
			return fmt.Errorf("pricing: non-positive multiplier %.3f", m)
		}
	}
	return nil
}

func (p Policy) multipliers() []float64 {
	var out []float64
	for _, v := range p.Segment {
		out = append(out, v)
	}
	for _, v := range p.Country {
		out = append(out, v)
	}
	for _, v := range p.Demand {
		out = append(out, v)
	}
	for _, v := range p.Reliability {
		out = append(out, v)
	}
	if p.EfficientMult != 0 {
		out = append(out, p.EfficientMult)
	}
	if p.ThirstyMult != 0 {
		out = append(out, p.ThirstyMult)
	}
	return out
}

// rate returns the depreciation rate for the given year of age (1-based).
// Brackets past the last bounded one fall through to the final rate.
func (p Policy) rate(year int) float64 {
	for _, b := range p.Brackets {
		if b.UpToYear == 0 || year <= b.UpToYear {
			return b.Rate
		}
	}
	return p.Brackets[len(p.Brackets)-1].Rate
}

// Input describes one vehicle to price.
type Input struct {
	BasePrice      float64
	Year           int
	Segment        domain.Segment
	Brand          domain.BrandProfile
	FuelEfficiency float64
}

// Estimator prices vehicles against a reference year.
type Estimator struct {
	Policy  Policy
	RefYear int
}

// New returns an estimator after validating policy.
func New(policy Policy, refYear int) (*Estimator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if refYear <= 0 {
		return nil, fmt.Errorf("pricing: invalid reference year %d", refYear)
	}
	return &Estimator{Policy: policy, RefYear: refYear}, nil
}

// Age is the vehicle age in whole years, never negative.
func (e *Estimator) Age(year int) int {
	if age := e.RefYear - year; age > 0 {
		return age
	}
	return 0
}

// Depreciation returns the compounded fraction of value kept after age
// years.
func (e *Estimator) Depreciation(age int) float64 {
	kept := 1.0
	for y := 1; y <= age; y++ {
		kept *= 1 - e.Policy.rate(y)
	}
	return kept
}

// Adjustment is the product of the non-age multipliers for in.
func (e *Estimator) Adjustment(in Input) float64 {
	p := e.Policy
	seg := in.Segment
	if seg == "" {
		seg = in.Brand.Segment
	}
	m := 1.0
	if v, ok := p.Segment[seg]; ok {
		m *= v
	}
	// country only breaks ties when the segment says nothing
	if seg == "" || seg == domain.SegmentFamily {
		if v, ok := p.Country[normalizeCountry(in.Brand.Country)]; ok {
			m *= v
		}
	}
	if v, ok := p.Demand[in.Brand.Demand]; ok {
		m *= v
	}
	if v, ok := p.Reliability[in.Brand.Reliability]; ok {
		m *= v
	}
	switch {
	case in.FuelEfficiency <= 0:
	case p.EfficientKML > 0 && in.FuelEfficiency >= p.EfficientKML:
		m *= p.EfficientMult
	case p.ThirstyKML > 0 && in.FuelEfficiency <= p.ThirstyKML:
		m *= p.ThirstyMult
	}
	return m
}

// Estimate prices in. The result is deterministic, never below the floor,
// and never increases with age for otherwise equal inputs.
func (e *Estimator) Estimate(in Input) domain.PriceEstimate {
	age := e.Age(in.Year)
	v := in.BasePrice * e.Adjustment(in) * e.Depreciation(age)

	floored := false
	floor := e.Policy.Floor
	if floor <= 0 {
		floor = 1
	}
	if v < floor || math.IsNaN(v) {
		v, floored = floor, true
	}

	band := e.Policy.Band
	return domain.PriceEstimate{
		BasePrice: in.BasePrice,
		Estimate:  v,
		Low:       v * (1 - band),
		High:      v * (1 + band),
		Band:      band,
		Age:       age,
		Floored:   floored,
	}
}

var countryAliases = map[string]string{
	"יפן":         "japan",
	"קוריאה":      "korea",
	"south korea": "korea",
	"גרמניה":      "germany",
	"צרפת":        "france",
	"איטליה":      "italy",
	"סין":         "china",
}

func normalizeCountry(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if alias, ok := countryAliases[c]; ok {
		return alias
	}
	return c
}
