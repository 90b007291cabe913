package advisor

import (
	"context"
	"fmt"
	"sort"

	"github.com/WessleyAI/wessley-advisor/engine/budget"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/pricing"
	"github.com/WessleyAI/wessley-advisor/pkg/fn"
	"github.com/WessleyAI/wessley-advisor/pkg/metrics"
)

// run carries the intermediate state of one recommendation.
type run struct {
	report     *Report
	shortlist  []domain.VehicleRecord
	candidates []domain.VehicleRecord
	enrichment map[string]domain.Enrichment
}

func (s *Service) pipeline() fn.Stage[*run, *run] {
	return fn.Pipeline(
		s.stage("filter", s.filterStage),
		s.stage("propose", s.proposeStage),
		s.stage("enrich", s.enrichStage),
		s.stage("price", s.priceStage),
		s.stage("match", s.matchStage),
		s.stage("summarize", s.summarizeStage),
	)
}

func (s *Service) filterStage(ctx context.Context, r *run) fn.Result[*run] {
	recs, err := s.registry.Filter(ctx, r.report.Query)
	if err != nil {
		return fn.Err[*run](fmt.Errorf("filter registry: %w", err))
	}
	r.shortlist = recs
	r.report.Filtered = len(recs)
	s.logger.Info("registry filtered", "id", r.report.ID, "matches", len(recs))
	return fn.Ok(r)
}

func (s *Service) proposeStage(ctx context.Context, r *run) fn.Result[*run] {
	if len(r.shortlist) == 0 {
		return fn.Ok(r)
	}
	if !s.opts.Propose {
		r.candidates = s.limit(r, s.byPreference(r.shortlist))
		return fn.Ok(r)
	}
	p := s.candidates.Propose(ctx, r.report.Query, r.shortlist)
	r.report.ProposalFallback = p.Fallback
	r.report.Dropped = p.Dropped
	cands := p.Candidates
	if p.Fallback {
		cands = s.byPreference(cands)
	}
	r.candidates = s.limit(r, cands)
	return fn.Ok(r)
}

// byPreference orders registry records before truncation: reliable brands
// first, then newer years. The input is not modified.
func (s *Service) byPreference(recs []domain.VehicleRecord) []domain.VehicleRecord {
	out := append([]domain.VehicleRecord(nil), recs...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ra := reliabilityRank(s.brands.Lookup(a.Brand).Reliability)
		rb := reliabilityRank(s.brands.Lookup(b.Brand).Reliability)
		if ra != rb {
			return ra < rb
		}
		return a.Year > b.Year
	})
	return out
}

// limit caps recs at MaxCandidates and records how many were cut.
func (s *Service) limit(r *run, recs []domain.VehicleRecord) []domain.VehicleRecord {
	if over := len(recs) - s.opts.MaxCandidates; over > 0 {
		r.report.Truncated = over
		s.logger.Info("candidates truncated", "id", r.report.ID, "kept", s.opts.MaxCandidates, "dropped", over)
	}
	return fn.Take(recs, s.opts.MaxCandidates)
}

func (s *Service) enrichStage(ctx context.Context, r *run) fn.Result[*run] {
	if len(r.candidates) == 0 {
		return fn.Ok(r)
	}
	res := s.candidates.Enrich(ctx, r.candidates, r.report.Query)
	r.enrichment = res.Items
	r.report.EnrichmentFallback = res.Fallback
	return fn.Ok(r)
}

func (s *Service) priceStage(_ context.Context, r *run) fn.Result[*run] {
	r.report.Candidates = fn.Map(r.candidates, func(rec domain.VehicleRecord) budget.Candidate {
		return s.price(rec, r.enrichment[rec.Key()])
	})
	return fn.Ok(r)
}

// price combines registry, brand and enrichment data into a candidate.
// Enrichment ratings refine the brand profile when present.
func (s *Service) price(rec domain.VehicleRecord, en domain.Enrichment) budget.Candidate {
	brand := s.brands.Lookup(rec.Brand)
	if en.Reliability != "" {
		brand.Reliability = en.Reliability
	}
	if en.Demand != "" {
		brand.Demand = en.Demand
	}
	if en.Turbo {
		rec.Turbo = true
	}
	c := budget.Candidate{Record: rec, Enrichment: en, Brand: brand}
	if en.BasePrice == nil {
		return c
	}
	est := s.estimator.Estimate(pricing.Input{
		BasePrice:      *en.BasePrice,
		Year:           rec.Year,
		Segment:        en.Segment,
		Brand:          brand,
		FuelEfficiency: en.FuelEfficiency,
	})
	c.Estimate = &est
	return c
}

func (s *Service) matchStage(_ context.Context, r *run) fn.Result[*run] {
	q := r.report.Query
	matched, rejected := s.matcher.Partition(r.report.Candidates, q.BudgetMin, q.BudgetMax)
	r.report.Matched = Rank(matched, q)
	if rejected != nil {
		r.report.Rejected = rejected
	}
	metrics.CandidatesMatched.Add(float64(len(matched)))
	for _, c := range rejected {
		metrics.CandidatesRejected.WithLabelValues(c.Reason).Inc()
	}
	r.report.NoMatches = len(matched) == 0
	return fn.Ok(r)
}

func (s *Service) summarizeStage(ctx context.Context, r *run) fn.Result[*run] {
	rep := r.report
	if rep.NoMatches {
		rep.Message = NoMatchesMessage
		rep.Summary = NoMatchesMessage
		return fn.Ok(r)
	}
	text, err := s.summarizer.Summarize(ctx, rep.Query, rep.Matched)
	if err != nil || text == "" {
		s.logger.Warn("summary failed, using plain list", "id", rep.ID, "err", err)
		text = FallbackSummary(rep.Query, rep.Matched)
		rep.SummaryFallback = true
	}
	rep.Summary = text
	return fn.Ok(r)
}
