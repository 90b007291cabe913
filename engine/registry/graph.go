package registry

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/pkg/fn"
	"github.com/WessleyAI/wessley-advisor/pkg/repo"
)

const loadCypher = `MATCH (:Make)-[:HAS_MODEL]->(:VehicleModel)-[:HAS_YEAR]->(n:ModelYear) RETURN n`

const saveCypher = `UNWIND $rows AS row
MERGE (mk:Make {name: row.brand})
MERGE (m:VehicleModel {key: row.model_key})
  ON CREATE SET m.name = row.model, m.make = row.brand
MERGE (mk)-[:HAS_MODEL]->(m)
MERGE (n:ModelYear {key: row.key})
SET n += row.props
MERGE (m)-[:HAS_YEAR]->(n)`

const saveBatch = 500

// GraphSource keeps the registry in Neo4j as
// (:Make)-[:HAS_MODEL]->(:VehicleModel)-[:HAS_YEAR]->(:ModelYear).
type GraphSource struct {
	years *repo.Neo4jRepo[domain.VehicleRecord, string]
}

// NewGraphSource creates a GraphSource on driver.
func NewGraphSource(driver neo4j.DriverWithContext, opts ...repo.Neo4jOption[domain.VehicleRecord, string]) (*GraphSource, error) {
	opts = append([]repo.Neo4jOption[domain.VehicleRecord, string]{repo.WithIDKey[domain.VehicleRecord, string]("key")}, opts...)
	years, err := repo.NewNeo4jRepo[domain.VehicleRecord, string](driver, "ModelYear", recordToProps, propsToRecord, opts...)
	if err != nil {
		return nil, err
	}
	return &GraphSource{years: years}, nil
}

// Load implements Source.
func (g *GraphSource) Load(ctx context.Context) ([]domain.VehicleRecord, error) {
	recs, err := g.years.Query(ctx, loadCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("graph registry: %w: %v", domain.ErrDataUnavailable, err)
	}
	return recs, nil
}

// Get returns one model year by its canonical key.
func (g *GraphSource) Get(ctx context.Context, key string) (domain.VehicleRecord, error) {
	return g.years.Get(ctx, key)
}

// Save merges records into the graph in batches and returns how many were
// written.
func (g *GraphSource) Save(ctx context.Context, records []domain.VehicleRecord) (int, error) {
	written := 0
	for start := 0; start < len(records); start += saveBatch {
		end := min(start+saveBatch, len(records))
		rows := fn.Map(records[start:end], func(r domain.VehicleRecord) map[string]any {
			return map[string]any{
				"brand":     r.Brand,
				"model":     r.Model,
				"model_key": r.ModelName(),
				"key":       r.Key(),
				"props":     recordToProps(r),
			}
		})
		if err := g.years.Exec(ctx, saveCypher, map[string]any{"rows": rows}); err != nil {
			return written, fmt.Errorf("graph registry: save batch at %d: %w", start, err)
		}
		written += len(rows)
	}
	return written, nil
}

func recordToProps(r domain.VehicleRecord) map[string]any {
	props := map[string]any{
		"key":           r.Key(),
		"brand":         r.Brand,
		"model":         r.Model,
		"year":          r.Year,
		"fuel":          string(r.Fuel.Category),
		"fuel_raw":      r.Fuel.Raw,
		"automatic":     r.Transmission == domain.Automatic,
		"turbo":         r.Turbo,
		"registry_from": r.Source,
	}
	if r.EngineCC != nil {
		props["engine_cc"] = *r.EngineCC
	}
	return props
}

func propsToRecord(p map[string]any) (domain.VehicleRecord, error) {
	brand, _ := p["brand"].(string)
	model, _ := p["model"].(string)
	year, ok := asInt(p["year"])
	if !ok {
		return domain.VehicleRecord{}, fmt.Errorf("model year %v: %w", p["key"], domain.ErrInvalidRecord)
	}
	rec := domain.VehicleRecord{
		Brand:        brand,
		Model:        model,
		Year:         year,
		Transmission: domain.Manual,
		Source:       "graph",
	}
	if cc, ok := asInt(p["engine_cc"]); ok {
		rec.EngineCC = &cc
	}
	raw, _ := p["fuel_raw"].(string)
	cat, _ := p["fuel"].(string)
	rec.Fuel = domain.Fuel{Category: domain.FuelCategory(cat), Raw: raw}
	if rec.Fuel.Category == "" {
		rec.Fuel.Category = domain.FuelUnknown
	}
	if auto, _ := p["automatic"].(bool); auto {
		rec.Transmission = domain.Automatic
	}
	rec.Turbo, _ = p["turbo"].(bool)
	return rec, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	default:
		return 0, false
	}
}
