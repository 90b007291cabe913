// Package app wires the advisor from configuration. The binaries share it
// so the API, the CLI and the history consumer build identical stacks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/wessley-advisor/engine/advisor"
	"github.com/WessleyAI/wessley-advisor/engine/budget"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/extract"
	"github.com/WessleyAI/wessley-advisor/engine/generator"
	"github.com/WessleyAI/wessley-advisor/engine/history"
	"github.com/WessleyAI/wessley-advisor/engine/pricing"
	"github.com/WessleyAI/wessley-advisor/engine/registry"
	"github.com/WessleyAI/wessley-advisor/engine/semantic"
	"github.com/WessleyAI/wessley-advisor/pkg/cache"
	"github.com/WessleyAI/wessley-advisor/pkg/config"
	"github.com/WessleyAI/wessley-advisor/pkg/llm"
	"github.com/WessleyAI/wessley-advisor/pkg/resilience"
)

// App holds the wired components. Optional parts are nil when disabled.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Registry  *registry.Registry
	Estimator *pricing.Estimator
	Adapter   *generator.Adapter
	Service   *advisor.Service

	Graph   *registry.GraphSource
	Vectors *semantic.VectorStore
	Index   *semantic.ModelIndex
	History *history.Store
	NATS    *nats.Conn

	closers []func() error
}

// Option adjusts what Build sets up.
type Option func(*buildOpts)

type buildOpts struct {
	localHistory bool
	generator    llm.Generator
}

// WithLocalHistory writes runs straight to the SQLite history when NATS is
// not configured.
func WithLocalHistory() Option { return func(o *buildOpts) { o.localHistory = true } }

// WithGenerator replaces the configured backend, mainly for tests.
func WithGenerator(g llm.Generator) Option { return func(o *buildOpts) { o.generator = g } }

// Build connects every configured backend and assembles the Service. On
// error, whatever was opened is closed again.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (_ *App, err error) {
	var bo buildOpts
	for _, o := range opts {
		o(&bo)
	}
	a := Open(cfg, logger)
	logger = a.Logger
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	policy, refYear := PricingPolicy(cfg)
	if a.Estimator, err = pricing.New(policy, refYear); err != nil {
		return nil, err
	}

	src, err := a.RegistrySource(ctx)
	if err != nil {
		return nil, err
	}
	a.Registry = registry.New(src, logger)

	gen := bo.generator
	if gen == nil {
		if gen, err = Generator(cfg.LLM, logger); err != nil {
			return nil, err
		}
	}
	summaryGen := gen
	if cfg.LLM.SummaryProvider != "" && bo.generator == nil {
		sc := cfg.LLM
		sc.Provider, sc.APIKey = cfg.LLM.SummaryProvider, cfg.LLM.SummaryAPIKey
		if cfg.LLM.SummaryModel != "" {
			sc.Model = cfg.LLM.SummaryModel
		}
		if summaryGen, err = Generator(sc, logger); err != nil {
			return nil, fmt.Errorf("summary generator: %w", err)
		}
	}

	c, err := a.cache(ctx)
	if err != nil {
		return nil, err
	}
	adapterOpts := []generator.Option{
		generator.WithCache(c, cfg.Redis.TTL),
		generator.WithLogger(logger),
		generator.WithExtractOptions(extract.Options{
			MaxAttempts:    cfg.LLM.MaxAttempts,
			AttemptTimeout: cfg.LLM.Timeout,
			Backoff:        cfg.LLM.Backoff,
			Logger:         logger,
		}),
	}
	if cfg.Qdrant.Addr != "" {
		if err := a.OpenIndex(c); err != nil {
			return nil, err
		}
		adapterOpts = append(adapterOpts, generator.WithResolver(a.Index))
	}
	a.Adapter = generator.New(gen, adapterOpts...)

	pub, err := a.publisher(ctx, bo.localHistory)
	if err != nil {
		return nil, err
	}

	a.Service, err = advisor.New(advisor.Deps{
		Registry:   a.Registry,
		Candidates: a.Adapter,
		Estimator:  a.Estimator,
		Matcher:    Matcher(cfg),
		Brands:     domain.DefaultBrands(),
		Summarizer: advisor.NewLLMSummarizer(summaryGen),
		Publisher:  pub,
		Logger:     logger,
	}, advisor.Options{Propose: cfg.LLM.Propose, MaxCandidates: cfg.LLM.MaxCandidates})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Open returns an App with nothing connected yet. Tools that need a single
// backend call OpenGraph, OpenIndex or OpenHistory on it directly.
func Open(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{Config: cfg, Logger: logger}
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RegistrySource returns the configured registry backend.
func (a *App) RegistrySource(ctx context.Context) (registry.Source, error) {
	cfg := a.Config
	if cfg.Registry.Source == "neo4j" {
		g, err := a.OpenGraph(ctx)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return &registry.CSVSource{Path: cfg.Registry.Path, Logger: a.Logger}, nil
}

// OpenGraph connects to Neo4j once and returns the graph registry.
func (a *App) OpenGraph(ctx context.Context) (*registry.GraphSource, error) {
	if a.Graph != nil {
		return a.Graph, nil
	}
	n := a.Config.Neo4j
	driver, err := neo4j.NewDriverWithContext(n.URI, neo4j.BasicAuth(n.User, n.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	a.closers = append(a.closers, func() error { return driver.Close(context.Background()) })
	if err := driver.VerifyConnectivity(ctx); err != nil {
		a.Logger.Warn("neo4j not reachable yet", "uri", n.URI, "err", err)
	}
	if a.Graph, err = registry.NewGraphSource(driver); err != nil {
		return nil, err
	}
	return a.Graph, nil
}

func (a *App) cache(ctx context.Context) (cache.Cache, error) {
	r := a.Config.Redis
	if r.Addr == "" {
		return cache.NewMemory(0), nil
	}
	rc, err := cache.NewRedis(ctx, cache.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rc.Close)
	return rc, nil
}

// OpenIndex connects to Qdrant and builds the model index over it.
func (a *App) OpenIndex(c cache.Cache) error {
	if a.Index != nil {
		return nil
	}
	q := a.Config.Qdrant
	vs, err := semantic.New(q.Addr, q.Collection)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, vs.Close)
	a.Vectors = vs
	embed := llm.NewOllama(llm.Options{BaseURL: a.Config.Embed.BaseURL, Model: a.Config.Embed.Model, Timeout: a.Config.LLM.Timeout})
	a.Index = semantic.NewModelIndex(vs, embed,
		semantic.WithMinScore(float32(q.MinScore)),
		semantic.WithCache(c, a.Config.Redis.TTL),
		semantic.WithLogger(a.Logger),
	)
	return nil
}

func (a *App) publisher(ctx context.Context, local bool) (advisor.Publisher, error) {
	cfg := a.Config
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("advisor"))
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		a.NATS = nc
		a.closers = append(a.closers, func() error { nc.Close(); return nil })
		return history.NewNATSPublisher(nc, cfg.NATS.Subject), nil
	}
	if !local || cfg.History.DBPath == "" {
		return nil, nil
	}
	st, err := a.OpenHistory(ctx)
	if err != nil {
		return nil, err
	}
	return history.StorePublisher{Store: st}, nil
}

// OpenHistory opens the SQLite run history once.
func (a *App) OpenHistory(ctx context.Context) (*history.Store, error) {
	if a.History != nil {
		return a.History, nil
	}
	st, err := history.Open(ctx, a.Config.History.DBPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)
	a.History = st
	return st, nil
}

// Generator builds the configured backend behind a circuit breaker.
func Generator(c config.LLMConfig, logger *slog.Logger) (llm.Generator, error) {
	gen, err := llm.New(c.Provider, llm.Options{
		BaseURL: c.BaseURL,
		Model:   c.Model,
		APIKey:  c.APIKey,
		Timeout: c.Timeout,
		RPS:     c.RPS,
		Burst:   c.Burst,
	})
	if err != nil {
		return nil, err
	}
	if c.BreakerThreshold <= 0 {
		return gen, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	breaker := resilience.NewBreaker(resilience.BreakerOpts{
		FailThreshold: c.BreakerThreshold,
		Cooldown:      c.BreakerCooldown,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn("generator breaker", "provider", c.Provider, "from", from.String(), "to", to.String())
		},
	})
	return llm.Guard(gen, breaker), nil
}

// PricingPolicy overlays configured values on the default policy. A zero
// reference year means the current year.
func PricingPolicy(cfg *config.Config) (pricing.Policy, int) {
	p := pricing.DefaultPolicy()
	pc := cfg.Pricing
	if len(pc.Brackets) > 0 {
		p.Brackets = make([]pricing.Bracket, len(pc.Brackets))
		for i, b := range pc.Brackets {
			p.Brackets[i] = pricing.Bracket{UpToYear: b.UpToYear, Rate: b.Rate}
		}
	}
	if pc.Floor > 0 {
		p.Floor = pc.Floor
	}
	if pc.Band > 0 {
		p.Band = pc.Band
	}
	ref := pc.RefYear
	if ref == 0 {
		ref = time.Now().Year()
	}
	return p, ref
}

// Matcher returns the configured budget matcher.
func Matcher(cfg *config.Config) budget.Matcher {
	return budget.Matcher{Lower: cfg.Budget.LowerTolerance, Upper: cfg.Budget.UpperTolerance}
}
