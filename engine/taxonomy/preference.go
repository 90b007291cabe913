package taxonomy

import (
	"strings"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
)

var (
	anyWords      = []string{"", "לא משנה", "הכל", "any", "all", "don't care", "dont care", "no preference"}
	genericHybrid = []string{"היברידי", "היבריד", "hybrid", "any hybrid"}
)

type prefKind int

const (
	prefAny prefKind = iota
	prefAnyHybrid
	prefCategory
)

// FuelPreference is the fuel constraint a buyer asked for.
type FuelPreference struct {
	kind     prefKind
	category domain.FuelCategory
}

// AnyFuel accepts every record.
var AnyFuel = FuelPreference{kind: prefAny}

// AnyHybrid accepts both hybrid kinds.
var AnyHybrid = FuelPreference{kind: prefAnyHybrid}

// PreferCategory constrains to one canonical category. Unknown yields AnyFuel.
func PreferCategory(c domain.FuelCategory) FuelPreference {
	if c == domain.FuelUnknown || c == "" {
		return AnyFuel
	}
	return FuelPreference{kind: prefCategory, category: c}
}

// ParsePreference reads the buyer's fuel answer. A bare "hybrid" means
// either hybrid kind; unrecognised text does not constrain the search.
func ParsePreference(raw string) FuelPreference {
	f := fold(raw)
	switch {
	case equalsAny(f, anyWords):
		return AnyFuel
	case equalsAny(f, genericHybrid):
		return AnyHybrid
	default:
		return PreferCategory(classify(f))
	}
}

// Matches reports whether a registry fuel description satisfies p.
func (p FuelPreference) Matches(raw string) bool {
	switch p.kind {
	case prefAny:
		return true
	case prefAnyHybrid:
		return IsHybrid(raw)
	}
	switch p.category {
	case domain.FuelHybridGasoline:
		return IsHybridGasoline(raw)
	case domain.FuelHybridDiesel:
		return IsHybridDiesel(raw)
	case domain.FuelElectric:
		return IsElectric(raw)
	case domain.FuelGasoline, domain.FuelDiesel:
		return MatchConventional(raw, p.category)
	default:
		return true
	}
}

func (p FuelPreference) String() string {
	switch p.kind {
	case prefAny:
		return "any"
	case prefAnyHybrid:
		return "hybrid"
	default:
		return string(p.category)
	}
}

// GearboxPreference is the buyer's transmission constraint.
type GearboxPreference string

const (
	GearboxAny       GearboxPreference = "any"
	GearboxAutomatic GearboxPreference = "automatic"
	GearboxManual    GearboxPreference = "manual"
)

// ParseGearbox reads the buyer's gearbox answer; anything unrecognised,
// including "לא משנה", means no constraint.
func ParseGearbox(raw string) GearboxPreference {
	f := fold(raw)
	switch {
	case strings.Contains(f, "אוטומט") || strings.HasPrefix(f, "auto"):
		return GearboxAutomatic
	case strings.Contains(f, "ידני") || f == "manual" || f == "stick":
		return GearboxManual
	default:
		return GearboxAny
	}
}

// Allows reports whether a record's transmission passes the preference.
func (g GearboxPreference) Allows(t domain.Transmission) bool {
	switch g {
	case GearboxAutomatic:
		return t == domain.Automatic
	case GearboxManual:
		return t == domain.Manual
	default:
		return true
	}
}
