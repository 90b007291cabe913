package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
)

// Source loads the full registry.
type Source interface {
	Load(ctx context.Context) ([]domain.VehicleRecord, error)
}

// StaticSource serves a fixed slice.
type StaticSource []domain.VehicleRecord

// Load implements Source.
func (s StaticSource) Load(context.Context) ([]domain.VehicleRecord, error) {
	return s, nil
}

// Registry caches a successful load of its source. Failed loads are not
// cached, so a registry that was missing at start-up is picked up later.
type Registry struct {
	src    Source
	logger *slog.Logger

	mu      sync.RWMutex
	records []domain.VehicleRecord
	loaded  bool
}

// New creates a Registry over src.
func New(src Source, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{src: src, logger: logger}
}

// Records returns the whole registry. Any load failure is reported as
// domain.ErrDataUnavailable.
func (r *Registry) Records(ctx context.Context) ([]domain.VehicleRecord, error) {
	r.mu.RLock()
	if r.loaded {
		recs := r.records
		r.mu.RUnlock()
		return recs, nil
	}
	r.mu.RUnlock()

	if r.src == nil {
		return nil, fmt.Errorf("registry: no source configured: %w", domain.ErrDataUnavailable)
	}
	recs, err := r.src.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrDataUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
		}
		return nil, fmt.Errorf("registry: load: %w", err)
	}

	r.mu.Lock()
	r.records, r.loaded = recs, true
	r.mu.Unlock()
	r.logger.Info("registry loaded", "records", len(recs))
	return recs, nil
}

// Reload drops the cached snapshot.
func (r *Registry) Reload() {
	r.mu.Lock()
	r.records, r.loaded = nil, false
	r.mu.Unlock()
}

// Filter returns the records compatible with q. When the registry cannot be
// loaded it returns an empty slice and an error wrapping
// domain.ErrDataUnavailable.
func (r *Registry) Filter(ctx context.Context, q domain.UserQuery) ([]domain.VehicleRecord, error) {
	recs, err := r.Records(ctx)
	if err != nil {
		return []domain.VehicleRecord{}, err
	}
	out := Filter(recs, q)
	if r.logger.Enabled(ctx, slog.LevelDebug) {
		r.logger.DebugContext(ctx, "registry filtered", "total", len(recs), "kept", len(out), "rejected_by", Explain(recs, q))
	}
	return out, nil
}
