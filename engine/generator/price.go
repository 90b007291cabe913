package generator

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ParsePrice extracts a positive shekel amount from a generator value.
// Numbers pass through; strings may carry currency marks, thousands
// separators, a "k" or "אלף" multiplier, or a range whose midpoint is used.
func ParsePrice(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return positive(x)
	case float32:
		return positive(float64(x))
	case int:
		return positive(float64(x))
	case int64:
		return positive(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return positive(f)
	case string:
		return parsePriceText(x)
	default:
		return 0, false
	}
}

func positive(f float64) (float64, bool) {
	if f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f, true
	}
	return 0, false
}

var priceNoise = strings.NewReplacer(
	"₪", "", "nis", "", "ils", "", "ש\"ח", "", "ש״ח", "", "שח", "",
	"שקלים", "", "שקל", "", "about", "", "approx", "", "כ-", "", "~", "",
	",", "", " ", "",
)

var rangeSeps = []string{"–", "—", " to ", "עד", "-"}

func parsePriceText(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	for _, sep := range rangeSeps {
		parts := strings.Split(s, sep)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			continue
		}
		lo, ok1 := parsePriceAmount(parts[0])
		hi, ok2 := parsePriceAmount(parts[1])
		if !ok1 || !ok2 {
			continue
		}
		// "70-80k" carries the multiplier on the upper bound only
		if lo < 1000 && hi >= 1000 {
			lo *= 1000
		}
		return (lo + hi) / 2, true
	}
	return parsePriceAmount(s)
}

func parsePriceAmount(s string) (float64, bool) {
	mult := 1.0
	if strings.Contains(s, "אלף") {
		mult = 1000
		s = strings.ReplaceAll(s, "אלף", "")
	}
	s = priceNoise.Replace(s)
	if mult == 1 && strings.HasSuffix(s, "k") {
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	}
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return positive(f * mult)
}

// number reads a numeric field that may be encoded as a string.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(x, ",", "")), 64)
		return f, err == nil
	}
	return 0, false
}

func boolean(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "1", "כן", "turbo", "טורבו":
			return true
		}
	}
	return false
}

func text(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func field(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
