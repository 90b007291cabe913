// Package budget decides whether a priced candidate fits the buyer's budget.
package budget

import (
	"fmt"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
)

// DefaultTolerance widens both ends of the budget by 13%.
const DefaultTolerance = 0.13

// Rejection reasons.
const (
	ReasonPriceUnavailable = "price unavailable"
	ReasonBelowBudget      = "below budget"
	ReasonAboveBudget      = "above budget"
)

// relative slack so that values computed from the window bounds themselves
// are not rejected by rounding
const eps = 1e-9

// Matcher compares price estimates with a widened budget window.
type Matcher struct {
	Lower float64
	Upper float64
}

// Default returns a Matcher with DefaultTolerance on both sides.
func Default() Matcher {
	return Matcher{Lower: DefaultTolerance, Upper: DefaultTolerance}
}

// Validate rejects negative tolerances and a lower tolerance of 100% or more.
func (m Matcher) Validate() error {
	if m.Lower < 0 || m.Lower >= 1 {
		return fmt.Errorf("budget: lower tolerance %.3f outside [0,1)", m.Lower)
	}
	if m.Upper < 0 {
		return fmt.Errorf("budget: negative upper tolerance %.3f", m.Upper)
	}
	return nil
}

// Window returns the widened budget [min·(1−Lower), max·(1+Upper)].
func (m Matcher) Window(min, max float64) (lo, hi float64) {
	return min * (1 - m.Lower), max * (1 + m.Upper)
}

func (m Matcher) bounds(min, max float64) (lo, hi float64) {
	lo, hi = m.Window(min, max)
	return lo - eps*lo, hi + eps*hi
}

// Matches reports whether the estimate's band overlaps the widened window.
// With a zero band the point estimate is tested.
func (m Matcher) Matches(est domain.PriceEstimate, min, max float64) bool {
	return m.check(est, min, max) == ""
}

// MatchesPrice is the point form of Matches.
func (m Matcher) MatchesPrice(price, min, max float64) bool {
	lo, hi := m.bounds(min, max)
	return price >= lo && price <= hi
}

func (m Matcher) check(est domain.PriceEstimate, min, max float64) string {
	low, high := est.Low, est.High
	if est.Band == 0 || (low == 0 && high == 0) {
		low, high = est.Estimate, est.Estimate
	}
	lo, hi := m.bounds(min, max)
	switch {
	case high < lo:
		return ReasonBelowBudget
	case low > hi:
		return ReasonAboveBudget
	default:
		return ""
	}
}

// Candidate is a registry record with its enrichment and, when a price was
// available, its estimate.
type Candidate struct {
	Record     domain.VehicleRecord  `json:"record"`
	Enrichment domain.Enrichment     `json:"enrichment"`
	Brand      domain.BrandProfile   `json:"brand"`
	Estimate   *domain.PriceEstimate `json:"estimate,omitempty"`
	Reason     string                `json:"reason,omitempty"`
}

// Partition splits candidates into those that fit [min, max] and the rest.
// Rejected candidates carry a Reason; candidates without an estimate are
// rejected as ReasonPriceUnavailable. Input order is preserved.
func (m Matcher) Partition(cands []Candidate, min, max float64) (matched, rejected []Candidate) {
	matched = []Candidate{}
	for _, c := range cands {
		reason := ReasonPriceUnavailable
		if c.Estimate != nil {
			reason = m.check(*c.Estimate, min, max)
		}
		if reason == "" {
			c.Reason = ""
			matched = append(matched, c)
			continue
		}
		c.Reason = reason
		rejected = append(rejected, c)
	}
	return matched, rejected
}
