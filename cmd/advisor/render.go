package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-json"

	"github.com/WessleyAI/wessley-advisor/engine/advisor"
	"github.com/WessleyAI/wessley-advisor/engine/budget"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/history"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	matchColor  = color.New(color.FgGreen)
	rejectColor = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed, color.Bold)
	dimColor    = color.New(color.Faint)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shekels(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "₪" + b.String()
}

func label(brand, model string, year int) string {
	return fmt.Sprintf("%s %s %d", brand, model, year)
}

func candidateLine(c budget.Candidate) string {
	line := label(c.Record.Brand, c.Record.Model, c.Record.Year)
	if c.Record.EngineCC != nil {
		line += fmt.Sprintf(" %dcc", *c.Record.EngineCC)
	}
	if c.Estimate != nil {
		line += fmt.Sprintf("  %s (%s–%s)", shekels(c.Estimate.Estimate), shekels(c.Estimate.Low), shekels(c.Estimate.High))
	}
	if c.Enrichment.Fallback {
		line += " *"
	}
	return line
}

func renderReport(w io.Writer, rep *advisor.Report) {
	if rep.DataUnavailable {
		errorColor.Fprintln(w, rep.Message)
		return
	}
	headerColor.Fprintf(w, "%d registry records passed the filters, %d priced, %d in budget\n",
		rep.Filtered, len(rep.Candidates), len(rep.Matched))
	if rep.Truncated > 0 {
		dimColor.Fprintf(w, "%d more records were left out of pricing; narrow the query to see them\n", rep.Truncated)
	}

	if len(rep.Matched) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "Matches")
		for _, c := range advisor.Rank(rep.Matched, rep.Query) {
			matchColor.Fprintf(w, "  ✓ %s\n", candidateLine(c))
		}
	}
	if len(rep.Rejected) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "Outside budget")
		for _, c := range rep.Rejected {
			rejectColor.Fprintf(w, "  ✗ %s", candidateLine(c))
			dimColor.Fprintf(w, "  %s\n", c.Reason)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rep.Summary)
	if rep.EnrichmentFallback || rep.ProposalFallback || rep.SummaryFallback {
		dimColor.Fprintln(w, "* generator output was unusable for part of this run; defaults were used")
	}
}

func renderExplain(w io.Writer, total int, kept []domain.VehicleRecord, rejected map[string]int, limit int) {
	headerColor.Fprintf(w, "%d of %d records pass\n", len(kept), total)
	names := make([]string, 0, len(rejected))
	for n := range rejected {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		dimColor.Fprintf(w, "  %-14s rejects %d\n", n, rejected[n])
	}
	if len(kept) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i, r := range kept {
		if limit > 0 && i == limit {
			dimColor.Fprintf(w, "  … %d more\n", len(kept)-limit)
			break
		}
		cc := "?"
		if r.EngineCC != nil {
			cc = fmt.Sprint(*r.EngineCC)
		}
		fmt.Fprintf(w, "  %s  %scc  %s  %s\n", label(r.Brand, r.Model, r.Year), cc, r.Fuel, r.Transmission)
	}
}

func renderEstimate(w io.Writer, est domain.PriceEstimate, brand domain.BrandProfile) {
	headerColor.Fprintf(w, "%s\n", shekels(est.Estimate))
	fmt.Fprintf(w, "  range   %s – %s (±%.0f%%)\n", shekels(est.Low), shekels(est.High), est.Band*100)
	fmt.Fprintf(w, "  age     %d years\n", est.Age)
	fmt.Fprintf(w, "  brand   %s, reliability %s, demand %s\n", brand.Brand, brand.Reliability, brand.Demand)
	if est.Floored {
		rejectColor.Fprintln(w, "  estimate was raised to the price floor")
	}
}

func renderRuns(w io.Writer, recs []history.Record) {
	if len(recs) == 0 {
		dimColor.Fprintln(w, "no runs recorded")
		return
	}
	for _, r := range recs {
		status := matchColor.Sprintf("%d matched", len(r.Matched))
		switch {
		case r.DataUnavailable:
			status = errorColor.Sprint("no data")
		case r.NoMatches:
			status = rejectColor.Sprint("no matches")
		}
		fmt.Fprintf(w, "%s  %s  %s–%s  %s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"),
			shekels(r.Query.BudgetMin), shekels(r.Query.BudgetMax), status)
	}
}

func renderRun(w io.Writer, r history.Record) {
	headerColor.Fprintf(w, "Run %s\n", r.ID)
	fmt.Fprintf(w, "  at       %s (%dms)\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.DurationMS)
	fmt.Fprintf(w, "  budget   %s – %s\n", shekels(r.Query.BudgetMin), shekels(r.Query.BudgetMax))
	fmt.Fprintf(w, "  filtered %d\n", r.Filtered)
	for _, e := range r.Matched {
		matchColor.Fprintf(w, "  ✓ %s  %s\n", label(e.Brand, e.Model, e.Year), shekels(e.Estimate))
	}
	for _, e := range r.Rejected {
		rejectColor.Fprintf(w, "  ✗ %s  %s\n", label(e.Brand, e.Model, e.Year), e.Reason)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, r.Summary)
}
