// Package taxonomy maps free-text fuel and gearbox descriptions, in Hebrew or
// English, onto the canonical categories used by the registry filter.
package taxonomy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
)

var (
	electricToken = []string{"חשמל", "חשמלי", "חשמלית", "electric", "ev", "bev", "battery"}
	electricMark  = []string{"חשמל", "electric"}
	hybridMark    = []string{"היברידי", "היבריד", "hybrid", "phev", "plug"}
	dieselMark    = []string{"דיזל", "סולר", "diesel"}
	gasolineMark  = []string{"בנזין", "petrol", "gasoline", "benzine", "benzin"}
)

// fold lower-cases s and strips combining marks (accents, niqqud).
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

func containsAny(s string, marks []string) bool {
	for _, m := range marks {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func equalsAny(s string, words []string) bool {
	for _, w := range words {
		if s == w {
			return true
		}
	}
	return false
}

func hasToken(s, token string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if f == token {
			return true
		}
	}
	return false
}

// electric matches a standalone electric token in text that names no other
// fuel; electric combined with a fuel is left to the hybrid rules.
func electric(f string) bool {
	if containsAny(f, hybridMark) || containsAny(f, gasolineMark) || containsAny(f, dieselMark) {
		return false
	}
	for _, t := range electricToken {
		if hasToken(f, t) {
			return true
		}
	}
	return false
}

func hybridGasoline(f string) bool {
	diesel := containsAny(f, dieselMark)
	if diesel {
		return false
	}
	return containsAny(f, hybridMark) || (containsAny(f, electricMark) && containsAny(f, gasolineMark))
}

func hybridDiesel(f string) bool {
	return containsAny(f, dieselMark) && (containsAny(f, hybridMark) || containsAny(f, electricMark))
}

func classify(f string) domain.FuelCategory {
	switch {
	case f == "":
		return domain.FuelUnknown
	case electric(f):
		return domain.FuelElectric
	case hybridGasoline(f):
		return domain.FuelHybridGasoline
	case hybridDiesel(f):
		return domain.FuelHybridDiesel
	case containsAny(f, gasolineMark):
		return domain.FuelGasoline
	case containsAny(f, dieselMark):
		return domain.FuelDiesel
	default:
		return domain.FuelUnknown
	}
}

// Normalize classifies a fuel description. The first matching rule wins:
// electric, hybrid-gasoline, hybrid-diesel, gasoline, diesel, unknown.
// Canonical labels normalize to themselves.
func Normalize(raw string) domain.FuelCategory {
	return classify(fold(raw))
}

// NormalizeAny classifies decoded values of arbitrary type; anything that
// is not a string is unknown.
func NormalizeAny(v any) domain.FuelCategory {
	switch s := v.(type) {
	case string:
		return Normalize(s)
	case *string:
		if s == nil {
			return domain.FuelUnknown
		}
		return Normalize(*s)
	default:
		return domain.FuelUnknown
	}
}

// Classify returns the category together with the trimmed source text.
func Classify(raw string) domain.Fuel {
	return domain.Fuel{Category: Normalize(raw), Raw: strings.TrimSpace(raw)}
}

// IsElectric reports a pure battery-electric description.
func IsElectric(raw string) bool { return Normalize(raw) == domain.FuelElectric }

// IsHybridGasoline reports a gasoline hybrid description.
func IsHybridGasoline(raw string) bool { return Normalize(raw) == domain.FuelHybridGasoline }

// IsHybridDiesel reports a diesel hybrid description.
func IsHybridDiesel(raw string) bool { return Normalize(raw) == domain.FuelHybridDiesel }

// IsHybrid reports either hybrid kind.
func IsHybrid(raw string) bool { return Normalize(raw).IsHybrid() }

// MatchConventional reports whether raw describes the conventional fuel
// wanted and is neither hybrid nor electric. wanted must be gasoline or
// diesel; any other category never matches.
func MatchConventional(raw string, wanted domain.FuelCategory) bool {
	if wanted != domain.FuelGasoline && wanted != domain.FuelDiesel {
		return false
	}
	c := Normalize(raw)
	if c.IsHybrid() || c == domain.FuelElectric {
		return false
	}
	return c == wanted
}
