// Package domain defines the vehicle, query and pricing types shared by the
// advisor pipeline, together with the validation applied at its entry points.
package domain

import (
	"strconv"
	"strings"
)

// FuelCategory is the canonical fuel classification.
type FuelCategory string

const (
	FuelGasoline       FuelCategory = "gasoline"
	FuelDiesel         FuelCategory = "diesel"
	FuelHybridGasoline FuelCategory = "hybrid-gasoline"
	FuelHybridDiesel   FuelCategory = "hybrid-diesel"
	FuelElectric       FuelCategory = "electric"
	FuelUnknown        FuelCategory = "unknown"
)

// FuelCategories lists every category, unknown last.
var FuelCategories = []FuelCategory{
	FuelGasoline, FuelDiesel, FuelHybridGasoline, FuelHybridDiesel, FuelElectric, FuelUnknown,
}

// IsHybrid reports whether c is one of the hybrid categories.
func (c FuelCategory) IsHybrid() bool {
	return c == FuelHybridGasoline || c == FuelHybridDiesel
}

// Fuel is a classified fuel value. Raw keeps the source text so that
// unclassifiable values can still be shown to the user.
type Fuel struct {
	Category FuelCategory `json:"category"`
	Raw      string       `json:"raw,omitempty"`
}

func (f Fuel) String() string {
	if f.Category == FuelUnknown && strings.TrimSpace(f.Raw) != "" {
		return f.Raw
	}
	return string(f.Category)
}

// Transmission is the gearbox type of a registry record.
type Transmission string

const (
	Automatic Transmission = "automatic"
	Manual    Transmission = "manual"
)

// TransmissionFromFlag maps the registry's automatic column (1 or 0).
func TransmissionFromFlag(flag int) Transmission {
	if flag == 1 {
		return Automatic
	}
	return Manual
}

// VehicleRecord is one row of the official vehicle registry.
type VehicleRecord struct {
	Brand        string       `json:"brand"`
	Model        string       `json:"model"`
	Year         int          `json:"year"`
	EngineCC     *int         `json:"engine_cc,omitempty"`
	Fuel         Fuel         `json:"fuel"`
	Transmission Transmission `json:"transmission"`
	Turbo        bool         `json:"turbo,omitempty"`
	Source       string       `json:"source,omitempty"`
}

// Key is the canonical identity "brand model year".
func (r VehicleRecord) Key() string {
	return CanonicalKey(r.Brand, r.Model, strconv.Itoa(r.Year))
}

// ModelName is "brand model" without the year.
func (r VehicleRecord) ModelName() string {
	return CanonicalKey(r.Brand, r.Model)
}

// HasDisplacement reports whether the record carries an engine size.
func (r VehicleRecord) HasDisplacement() bool {
	return r.EngineCC != nil
}

// CC returns the displacement, or 0 when unknown.
func (r VehicleRecord) CC() int {
	if r.EngineCC == nil {
		return 0
	}
	return *r.EngineCC
}

// CanonicalKey lower-cases parts and joins them with single spaces.
func CanonicalKey(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		for _, f := range strings.Fields(strings.ToLower(p)) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(f)
		}
	}
	return b.String()
}

// IntPtr is a convenience for optional integer fields.
func IntPtr(v int) *int { return &v }

// Level is a coarse low/medium/high rating.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// ParseLevel accepts English and Hebrew ratings; anything else is medium.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "very high", "גבוה", "גבוהה":
		return LevelHigh
	case "low", "very low", "נמוך", "נמוכה":
		return LevelLow
	default:
		return LevelMedium
	}
}

// Segment is the market category of a model.
type Segment string

const (
	SegmentFamily    Segment = "family"
	SegmentLuxury    Segment = "luxury"
	SegmentExecutive Segment = "executive"
	SegmentSUV       Segment = "suv"
	SegmentMini      Segment = "mini"
	SegmentCompact   Segment = "compact"
	SegmentBudget    Segment = "budget"
)

// ParseSegment maps free text to a Segment; unrecognised text is family.
func ParseSegment(s string) Segment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "luxury", "יוקרה":
		return SegmentLuxury
	case "executive", "מנהלים":
		return SegmentExecutive
	case "suv", "crossover", "jeep", "ג'יפ", "פנאי", "קרוסאובר":
		return SegmentSUV
	case "mini", "city", "מיני", "עירוני":
		return SegmentMini
	case "compact", "קומפקטי":
		return SegmentCompact
	case "budget", "economy", "זול", "חסכוני":
		return SegmentBudget
	default:
		return SegmentFamily
	}
}

// BrandProfile holds brand-level attributes used as pricing tie-breakers.
type BrandProfile struct {
	Brand       string  `json:"brand"`
	Country     string  `json:"country,omitempty"`
	Reliability Level   `json:"reliability"`
	Demand      Level   `json:"demand"`
	Luxury      bool    `json:"luxury"`
	Popular     bool    `json:"popular"`
	Segment     Segment `json:"segment"`
}

// Enrichment is the generator-supplied data for one candidate. A nil
// BasePrice means no numeric price could be extracted.
type Enrichment struct {
	BasePrice      *float64 `json:"base_price,omitempty"`
	FuelEfficiency float64  `json:"fuel_efficiency"`
	Turbo          bool     `json:"turbo"`
	Segment        Segment  `json:"segment,omitempty"`
	Reliability    Level    `json:"reliability,omitempty"`
	Demand         Level    `json:"demand,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	Fallback       bool     `json:"fallback,omitempty"`
}

// PriceEstimate is a point estimate with its uncertainty band.
type PriceEstimate struct {
	BasePrice float64 `json:"base_price"`
	Estimate  float64 `json:"estimate"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	Band      float64 `json:"band"`
	Age       int     `json:"age"`
	Floored   bool    `json:"floored,omitempty"`
}

// UserQuery is the buyer's request. It is immutable for the life of a run.
type UserQuery struct {
	BudgetMin float64 `json:"budget_min" yaml:"budget_min" validate:"gte=0"`
	BudgetMax float64 `json:"budget_max" yaml:"budget_max" validate:"gt=0,gtefield=BudgetMin"`
	Fuel      string  `json:"fuel" yaml:"fuel"`
	Gearbox   string  `json:"gearbox" yaml:"gearbox"`
	CCMin     int     `json:"cc_min" yaml:"cc_min" validate:"gte=0"`
	CCMax     int     `json:"cc_max" yaml:"cc_max" validate:"gt=0,gtefield=CCMin"`
	YearMin   int     `json:"year_min" yaml:"year_min" validate:"gte=0"`
	YearMax   int     `json:"year_max" yaml:"year_max" validate:"gt=0,gtefield=YearMin"`
	BodyType  string  `json:"body_type,omitempty" yaml:"body_type"`
	Turbo     string  `json:"turbo,omitempty" yaml:"turbo"`

	Usage                string `json:"usage,omitempty" yaml:"usage"`
	DriverAge            string `json:"driver_age,omitempty" yaml:"driver_age"`
	LicenseYears         int    `json:"license_years,omitempty" yaml:"license_years" validate:"gte=0"`
	InsuranceHistory     string `json:"insurance_history,omitempty" yaml:"insurance_history"`
	MaintenanceBudget    string `json:"maintenance_budget,omitempty" yaml:"maintenance_budget"`
	ReliabilityVsComfort string `json:"reliability_vs_comfort,omitempty" yaml:"reliability_vs_comfort"`
	ResaleValue          string `json:"resale_value,omitempty" yaml:"resale_value"`
	EcoPref              string `json:"eco_pref,omitempty" yaml:"eco_pref"`
}

// Midpoint is the centre of the budget range.
func (q UserQuery) Midpoint() float64 {
	return (q.BudgetMin + q.BudgetMax) / 2
}
