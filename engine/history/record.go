// Package history keeps a log of recommendation runs. Runs are published
// on NATS by the advisor and persisted to SQLite by a consumer.
package history

import (
	"time"

	"github.com/WessleyAI/wessley-advisor/engine/advisor"
	"github.com/WessleyAI/wessley-advisor/engine/budget"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/pkg/fn"
)

// Subject is the NATS subject runs are published on.
const Subject = "advisor.runs"

// Entry is one priced candidate of a run.
type Entry struct {
	Key      string  `json:"key"`
	Brand    string  `json:"brand"`
	Model    string  `json:"model"`
	Year     int     `json:"year"`
	Estimate float64 `json:"estimate,omitempty"`
	Low      float64 `json:"low,omitempty"`
	High     float64 `json:"high,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	Fallback bool    `json:"fallback,omitempty"`
}

// Record is the persisted form of an advisor.Report.
type Record struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Query     domain.UserQuery `json:"query"`
	Filtered  int              `json:"filtered"`
	Matched   []Entry          `json:"matched"`
	Rejected  []Entry          `json:"rejected"`
	Summary   string           `json:"summary"`

	NoMatches          bool  `json:"no_matches"`
	DataUnavailable    bool  `json:"data_unavailable"`
	ProposalFallback   bool  `json:"proposal_fallback,omitempty"`
	EnrichmentFallback bool  `json:"enrichment_fallback,omitempty"`
	SummaryFallback    bool  `json:"summary_fallback,omitempty"`
	DurationMS         int64 `json:"duration_ms"`
}

// FromReport flattens r into a Record.
func FromReport(r *advisor.Report) Record {
	return Record{
		ID:                 r.ID,
		CreatedAt:          r.CreatedAt,
		Query:              r.Query,
		Filtered:           r.Filtered,
		Matched:            fn.Map(r.Matched, entry),
		Rejected:           fn.Map(r.Rejected, entry),
		Summary:            r.Summary,
		NoMatches:          r.NoMatches,
		DataUnavailable:    r.DataUnavailable,
		ProposalFallback:   r.ProposalFallback,
		EnrichmentFallback: r.EnrichmentFallback,
		SummaryFallback:    r.SummaryFallback,
		DurationMS:         r.Duration.Milliseconds(),
	}
}

func entry(c budget.Candidate) Entry {
	e := Entry{
		Key:      c.Record.Key(),
		Brand:    c.Record.Brand,
		Model:    c.Record.Model,
		Year:     c.Record.Year,
		Reason:   c.Reason,
		Fallback: c.Enrichment.Fallback,
	}
	if c.Estimate != nil {
		e.Estimate, e.Low, e.High = c.Estimate.Estimate, c.Estimate.Low, c.Estimate.High
	}
	return e
}
