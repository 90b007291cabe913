package advisor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/WessleyAI/wessley-advisor/engine/budget"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/pkg/fn"
	"github.com/WessleyAI/wessley-advisor/pkg/llm"
)

// Summarizer turns ranked matches into buyer-facing text.
type Summarizer interface {
	Summarize(ctx context.Context, q domain.UserQuery, ranked []budget.Candidate) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, q domain.UserQuery, ranked []budget.Candidate) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, q domain.UserQuery, ranked []budget.Candidate) (string, error) {
	return f(ctx, q, ranked)
}

var levelRank = map[domain.Level]int{domain.LevelHigh: 0, domain.LevelMedium: 1, domain.LevelLow: 2}

func reliabilityRank(l domain.Level) int {
	if r, ok := levelRank[l]; ok {
		return r
	}
	return levelRank[domain.LevelMedium]
}

// Rank orders candidates by brand reliability, then by how close the
// estimate is to the budget midpoint, then by age. The input is not
// modified.
func Rank(cands []budget.Candidate, q domain.UserQuery) []budget.Candidate {
	out := append([]budget.Candidate{}, cands...)
	mid := q.Midpoint()
	dist := func(c budget.Candidate) float64 {
		if c.Estimate == nil {
			return math.Inf(1)
		}
		return math.Abs(c.Estimate.Estimate - mid)
	}
	rel := func(c budget.Candidate) int { return reliabilityRank(c.Brand.Reliability) }
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := rel(a), rel(b); ra != rb {
			return ra < rb
		}
		if da, db := dist(a), dist(b); da != db {
			return da < db
		}
		if a.Record.Year != b.Record.Year {
			return a.Record.Year > b.Record.Year
		}
		return a.Record.Key() < b.Record.Key()
	})
	return out
}

// LLMSummarizer asks a generator to compare the top candidates.
type LLMSummarizer struct {
	Gen         llm.Generator
	TopN        int
	Temperature float64
	Language    string
}

// NewLLMSummarizer returns a summarizer over the top five candidates.
func NewLLMSummarizer(gen llm.Generator) *LLMSummarizer {
	return &LLMSummarizer{Gen: gen, TopN: 5, Temperature: 0.4, Language: "Hebrew"}
}

const summarySystem = `You are a friendly and honest used-car advisor in Israel. ` +
	`You explain trade-offs plainly and never invent vehicles that are not listed.`

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, q domain.UserQuery, ranked []budget.Candidate) (string, error) {
	top := fn.Take(ranked, s.TopN)
	if len(top) == 0 {
		return NoMatchesMessage, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The buyer's budget is %.0f-%.0f ILS.", q.BudgetMin, q.BudgetMax)
	if q.Usage != "" {
		fmt.Fprintf(&b, " Main usage: %s.", q.Usage)
	}
	if q.ReliabilityVsComfort != "" {
		fmt.Fprintf(&b, " Reliability vs comfort: %s.", q.ReliabilityVsComfort)
	}
	if q.EcoPref != "" {
		fmt.Fprintf(&b, " Eco preference: %s.", q.EcoPref)
	}
	b.WriteString("\n\nCandidates, best first:\n")
	for i, c := range top {
		fmt.Fprintf(&b, "%d. %s\n", i+1, describe(c))
	}
	fmt.Fprintf(&b, "\nWrite a short recommendation in %s: for each of these %d vehicles give two pros and two cons, "+
		"then say which one you would pick for this buyer and why.", s.language(), len(top))

	return s.Gen.Generate(ctx, llm.Request{
		System:      summarySystem,
		Prompt:      b.String(),
		Temperature: s.Temperature,
	})
}

func (s *LLMSummarizer) language() string {
	if s.Language == "" {
		return "Hebrew"
	}
	return s.Language
}

func describe(c budget.Candidate) string {
	r := c.Record
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %d, %dcc, %s, %s", r.Brand, r.Model, r.Year, r.CC(), r.Fuel, r.Transmission)
	if r.Turbo {
		b.WriteString(", turbo")
	}
	if c.Estimate != nil {
		fmt.Fprintf(&b, ", est. %.0f ILS (%.0f-%.0f)", c.Estimate.Estimate, c.Estimate.Low, c.Estimate.High)
	}
	fmt.Fprintf(&b, ", %.1f km/l, reliability %s", c.Enrichment.FuelEfficiency, c.Brand.Reliability)
	if c.Enrichment.Notes != "" {
		b.WriteString(", " + c.Enrichment.Notes)
	}
	return b.String()
}

// FallbackSummary is a deterministic plain-text list of the top five
// candidates.
func FallbackSummary(q domain.UserQuery, ranked []budget.Candidate) string {
	if len(ranked) == 0 {
		return NoMatchesMessage
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Top matches for a %.0f-%.0f ILS budget:\n", q.BudgetMin, q.BudgetMax)
	for i, c := range fn.Take(ranked, 5) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, describe(c))
	}
	return strings.TrimRight(b.String(), "\n")
}
