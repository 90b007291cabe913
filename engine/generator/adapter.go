// Package generator asks a text generator for candidate vehicles and for
// per-candidate pricing data, and turns whatever comes back into typed
// records. Generator failures never escape: exhausted retries produce
// deterministic fallback values.
package generator

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/extract"
	"github.com/WessleyAI/wessley-advisor/pkg/cache"
	"github.com/WessleyAI/wessley-advisor/pkg/llm"
)

// Fallback enrichment values used when the generator cannot supply them.
const (
	DefaultBasePrice      = 100000.0
	DefaultFuelEfficiency = 14.0
)

// ModelResolver maps a free-text model name to a registry model key
// ("brand model", canonical form). ok is false when nothing is close enough.
type ModelResolver interface {
	Resolve(ctx context.Context, name string) (key string, ok bool, err error)
}

// Adapter wraps a generator for the proposal and enrichment modes.
type Adapter struct {
	gen      llm.Generator
	cache    cache.Cache
	cacheTTL time.Duration
	resolver ModelResolver
	extract  extract.Options
	maxShort int
	logger   *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCache stores successful results in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(a *Adapter) { a.cache, a.cacheTTL = c, ttl }
}

// WithResolver enables semantic reconciliation of proposed model names.
func WithResolver(r ModelResolver) Option {
	return func(a *Adapter) { a.resolver = r }
}

// WithExtractOptions overrides attempts, per-attempt timeout and backoff.
func WithExtractOptions(o extract.Options) Option {
	return func(a *Adapter) { a.extract = o }
}

// WithShortlistLimit caps how many registry rows are quoted in the
// proposal prompt.
func WithShortlistLimit(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxShort = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New creates an Adapter over gen.
func New(gen llm.Generator, opts ...Option) *Adapter {
	a := &Adapter{
		gen:      gen,
		cacheTTL: 24 * time.Hour,
		maxShort: 80,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.extract.Logger = a.logger
	return a
}

func (a *Adapter) options(mode string) extract.Options {
	o := a.extract
	o.Mode = mode
	return o
}

func (a *Adapter) cacheGet(ctx context.Context, key string, out any) bool {
	raw, ok := cache.Lookup(ctx, a.cache, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		a.logger.Warn("discarding undecodable cache entry", "key", key, "err", err)
		return false
	}
	return true
}

func (a *Adapter) cachePut(ctx context.Context, key string, v any) {
	if a.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, raw, a.cacheTTL); err != nil {
		a.logger.Warn("cache write failed", "key", key, "err", err)
	}
}

// queryFingerprint is the stable part of a query that influences generator
// answers.
func queryFingerprint(q domain.UserQuery) string {
	raw, _ := json.Marshal(q)
	return string(raw)
}

func sortedKeys(records []domain.VehicleRecord) []string {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key()
	}
	sort.Strings(keys)
	return keys
}

// describeQuery renders the buyer's answers for a prompt. Soft preferences
// are passed through verbatim.
func describeQuery(q domain.UserQuery) string {
	var b strings.Builder
	line := func(label, v string) {
		if strings.TrimSpace(v) != "" {
			b.WriteString("- " + label + ": " + v + "\n")
		}
	}
	line("budget (ILS)", formatShekels(q.BudgetMin)+" - "+formatShekels(q.BudgetMax))
	line("model years", strconv.Itoa(q.YearMin)+" - "+strconv.Itoa(q.YearMax))
	line("engine size (cc)", strconv.Itoa(q.CCMin)+" - "+strconv.Itoa(q.CCMax))
	line("fuel", q.Fuel)
	line("gearbox", q.Gearbox)
	line("body type", q.BodyType)
	line("turbo", q.Turbo)
	line("usage", q.Usage)
	line("driver age", q.DriverAge)
	if q.LicenseYears > 0 {
		line("years licensed", strconv.Itoa(q.LicenseYears))
	}
	line("insurance history", q.InsuranceHistory)
	line("maintenance budget", q.MaintenanceBudget)
	line("reliability vs comfort", q.ReliabilityVsComfort)
	line("resale value importance", q.ResaleValue)
	line("eco preference", q.EcoPref)
	return b.String()
}

func formatShekels(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}
