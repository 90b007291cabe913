package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/pkg/cache"
	"github.com/WessleyAI/wessley-advisor/pkg/fn"
	"github.com/WessleyAI/wessley-advisor/pkg/llm"
)

// DefaultMinScore is the cosine similarity below which a hit is ignored.
const DefaultMinScore = 0.82

const embedWorkers = 4

// modelNamespace seeds deterministic point IDs so re-indexing overwrites.
var modelNamespace = uuid.MustParse("6f1c2b7e-3a52-4f0e-9d87-52a1c0de4b11")

// Store is the vector store the index writes to and searches.
type Store interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Search(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]SearchResult, error)
}

// ModelIndex maps "brand model" names to registry models. It implements
// generator.ModelResolver.
type ModelIndex struct {
	store    Store
	embed    llm.Embedder
	minScore float32
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// IndexOption configures a ModelIndex.
type IndexOption func(*ModelIndex)

// WithMinScore sets the similarity threshold.
func WithMinScore(s float32) IndexOption { return func(ix *ModelIndex) { ix.minScore = s } }

// WithCache remembers resolutions for ttl.
func WithCache(c cache.Cache, ttl time.Duration) IndexOption {
	return func(ix *ModelIndex) { ix.cache, ix.cacheTTL = c, ttl }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) IndexOption { return func(ix *ModelIndex) { ix.logger = l } }

// NewModelIndex creates an index over store using embed for vectors.
func NewModelIndex(store Store, embed llm.Embedder, opts ...IndexOption) *ModelIndex {
	ix := &ModelIndex{store: store, embed: embed, minScore: DefaultMinScore, cacheTTL: 24 * time.Hour, logger: slog.Default()}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// PointID is the deterministic point ID of a canonical model name.
func PointID(name string) string {
	return uuid.NewSHA1(modelNamespace, []byte(name)).String()
}

// Index embeds every distinct model of records and upserts it in batches.
// Each batch is embedded with up to embedWorkers concurrent calls. It
// returns the number of models written.
func (ix *ModelIndex) Index(ctx context.Context, records []domain.VehicleRecord, batch int) (int, error) {
	if batch <= 0 {
		batch = 64
	}
	named := fn.Filter(records, func(r domain.VehicleRecord) bool { return r.ModelName() != "" })
	models := fn.UniqueBy(named, domain.VehicleRecord.ModelName)

	written := 0
	for start := 0; start < len(models); start += batch {
		chunk := models[start:min(start+batch, len(models))]
		points := fn.Collect(fn.ParMapResult(chunk, embedWorkers, func(r domain.VehicleRecord) fn.Result[VectorRecord] {
			return ix.point(ctx, r)
		}))
		pending, err := points.Unwrap()
		if err != nil {
			return written, err
		}
		if err := ix.store.Upsert(ctx, pending); err != nil {
			return written, err
		}
		written += len(pending)
	}
	ix.logger.Info("model index updated", "models", written)
	return written, nil
}

func (ix *ModelIndex) point(ctx context.Context, r domain.VehicleRecord) fn.Result[VectorRecord] {
	name := r.ModelName()
	vec, err := ix.embed.Embed(ctx, name)
	if err != nil {
		return fn.Err[VectorRecord](fmt.Errorf("semantic: embed %q: %w", name, err))
	}
	return fn.Ok(VectorRecord{
		ID:        PointID(name),
		Embedding: vec,
		Payload:   map[string]any{FieldName: name, FieldBrand: domain.CanonicalKey(r.Brand), FieldModel: r.Model},
	})
}

// Resolve returns the canonical "brand model" closest to name. ok is false
// when no hit reaches the similarity threshold.
func (ix *ModelIndex) Resolve(ctx context.Context, name string) (string, bool, error) {
	q := domain.CanonicalKey(name)
	if q == "" {
		return "", false, nil
	}
	key := cache.Key("resolve", q)
	if v, ok := cache.Lookup(ctx, ix.cache, key); ok {
		return string(v), true, nil
	}

	vec, err := ix.embed.Embed(ctx, q)
	if err != nil {
		return "", false, fmt.Errorf("semantic: embed %q: %w", q, err)
	}
	hits, err := ix.store.Search(ctx, vec, 1, nil)
	if err != nil {
		return "", false, err
	}
	if len(hits) == 0 || hits[0].Score < ix.minScore || hits[0].Name == "" {
		return "", false, nil
	}

	best := hits[0]
	ix.logger.Debug("model resolved", "query", q, "name", best.Name, "score", best.Score)
	if ix.cache != nil {
		if err := ix.cache.Set(ctx, key, []byte(best.Name), ix.cacheTTL); err != nil {
			ix.logger.Warn("cache resolution failed", "err", err)
		}
	}
	return best.Name, true, nil
}
