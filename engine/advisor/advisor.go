// Package advisor runs the recommendation pipeline: registry filtering,
// candidate proposal, enrichment, pricing, budget matching and the final
// summary.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/wessley-advisor/engine/budget"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/generator"
	"github.com/WessleyAI/wessley-advisor/engine/pricing"
	"github.com/WessleyAI/wessley-advisor/pkg/fn"
	"github.com/WessleyAI/wessley-advisor/pkg/metrics"
)

// NoMatchesMessage is the summary of a run with no surviving candidates.
const NoMatchesMessage = "no matching vehicles found"

// DataUnavailableMessage is the summary of a run without registry data.
const DataUnavailableMessage = "vehicle registry data is unavailable"

// RegistryFilter returns the registry records that pass the query's hard
// filters.
type RegistryFilter interface {
	Filter(ctx context.Context, q domain.UserQuery) ([]domain.VehicleRecord, error)
}

// CandidateSource proposes and enriches candidates. *generator.Adapter
// implements it.
type CandidateSource interface {
	Propose(ctx context.Context, q domain.UserQuery, shortlist []domain.VehicleRecord) generator.Proposal
	Enrich(ctx context.Context, records []domain.VehicleRecord, q domain.UserQuery) generator.EnrichmentResult
}

// Publisher receives every finished report, e.g. for the run history.
type Publisher interface {
	Publish(ctx context.Context, r *Report) error
}

// Options configures the Service.
type Options struct {
	// Propose asks the generator to narrow the filtered registry before
	// enrichment. When false every filtered record is enriched.
	Propose bool
	// MaxCandidates caps how many records are enriched in one run.
	MaxCandidates int
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{Propose: true, MaxCandidates: 25}
}

// Service is the recommendation pipeline.
type Service struct {
	registry   RegistryFilter
	candidates CandidateSource
	estimator  *pricing.Estimator
	matcher    budget.Matcher
	brands     domain.BrandLookup
	summarizer Summarizer
	publisher  Publisher
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// Deps holds the collaborators of a Service. Summarizer, Publisher and
// Brands are optional.
type Deps struct {
	Registry   RegistryFilter
	Candidates CandidateSource
	Estimator  *pricing.Estimator
	Matcher    budget.Matcher
	Brands     domain.BrandLookup
	Summarizer Summarizer
	Publisher  Publisher
	Logger     *slog.Logger
}

// New creates a Service.
func New(deps Deps, opts Options) (*Service, error) {
	if deps.Registry == nil || deps.Candidates == nil || deps.Estimator == nil {
		return nil, errors.New("advisor: registry, candidates and estimator are required")
	}
	if err := deps.Matcher.Validate(); err != nil {
		return nil, err
	}
	if deps.Brands == nil {
		deps.Brands = domain.DefaultBrands()
	}
	if deps.Summarizer == nil {
		deps.Summarizer = SummarizerFunc(func(_ context.Context, q domain.UserQuery, c []budget.Candidate) (string, error) {
			return FallbackSummary(q, c), nil
		})
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultOptions().MaxCandidates
	}
	return &Service{
		registry:   deps.Registry,
		candidates: deps.Candidates,
		estimator:  deps.Estimator,
		matcher:    deps.Matcher,
		brands:     deps.Brands,
		summarizer: deps.Summarizer,
		publisher:  deps.Publisher,
		opts:       opts,
		logger:     deps.Logger,
		now:        time.Now,
	}, nil
}

// Report is the outcome of one recommendation run.
type Report struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Query     domain.UserQuery `json:"query"`

	// Filtered is the number of registry records that passed the hard filters.
	Filtered   int                 `json:"filtered"`
	Candidates []budget.Candidate  `json:"candidates"`
	Matched    []budget.Candidate  `json:"matched"`
	Rejected   []budget.Candidate  `json:"rejected"`
	Dropped    []generator.Dropped `json:"dropped,omitempty"`

	// Truncated counts candidates cut by MaxCandidates before enrichment.
	Truncated int `json:"truncated,omitempty"`

	Summary         string `json:"summary"`
	SummaryFallback bool   `json:"summary_fallback,omitempty"`

	ProposalFallback   bool `json:"proposal_fallback,omitempty"`
	EnrichmentFallback bool `json:"enrichment_fallback,omitempty"`

	NoMatches       bool          `json:"no_matches"`
	DataUnavailable bool          `json:"data_unavailable"`
	Message         string        `json:"message,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Recommend runs the pipeline for q. Invalid queries return an error
// wrapping domain.ErrInvalidQuery and no report. A missing registry returns
// a report with DataUnavailable set together with an error wrapping
// domain.ErrDataUnavailable. Generator failures never fail a run.
func (s *Service) Recommend(ctx context.Context, q domain.UserQuery) (*Report, error) {
	if err := domain.ValidateQuery(q); err != nil {
		return nil, err
	}

	start := s.now()
	r := &run{
		report: &Report{
			ID:         uuid.NewString(),
			CreatedAt:  start.UTC(),
			Query:      q,
			Candidates: []budget.Candidate{},
			Matched:    []budget.Candidate{},
			Rejected:   []budget.Candidate{},
		},
	}

	res := s.pipeline()(ctx, r)
	rep := r.report
	rep.Duration = time.Since(start)

	if err := res.Error(); err != nil {
		if !errors.Is(err, domain.ErrDataUnavailable) {
			return nil, fmt.Errorf("advisor: recommend: %w", err)
		}
		rep.DataUnavailable = true
		rep.Message = DataUnavailableMessage
		rep.Summary = DataUnavailableMessage
		metrics.Recommendations.WithLabelValues("data_unavailable").Inc()
		s.publish(ctx, rep)
		return rep, err
	}

	if rep.NoMatches {
		metrics.Recommendations.WithLabelValues("no_matches").Inc()
	} else {
		metrics.Recommendations.WithLabelValues("matched").Inc()
	}
	s.publish(ctx, rep)
	return rep, nil
}

func (s *Service) publish(ctx context.Context, rep *Report) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, rep); err != nil {
		s.logger.Warn("publish run report failed", "id", rep.ID, "err", err)
	}
}

// Estimate prices a single vehicle outside the pipeline.
func (s *Service) Estimate(in pricing.Input) domain.PriceEstimate {
	return s.estimator.Estimate(in)
}

// Brand returns the profile used for brand.
func (s *Service) Brand(brand string) domain.BrandProfile {
	return s.brands.Lookup(brand)
}

// stage wraps fn stages with tracing, timing and entry/exit logs.
func (s *Service) stage(name string, f fn.Stage[*run, *run]) fn.Stage[*run, *run] {
	return fn.TracedStage(name, func(ctx context.Context, r *run) fn.Result[*run] {
		s.logger.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			metrics.ObserveStage(name, start)
			s.logger.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return f(ctx, r)
	})
}
