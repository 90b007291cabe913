// Package registry loads the official vehicle registry and narrows it to the
// records compatible with a buyer's hard constraints.
package registry

import (
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/taxonomy"
	"github.com/WessleyAI/wessley-advisor/pkg/fn"
)

// Mask is one named predicate of the filter.
type Mask struct {
	Name string
	Keep func(domain.VehicleRecord) bool
}

// Masks builds the year, displacement, fuel and gearbox predicates for q.
// Year and displacement bounds are inclusive; a record without a
// displacement never passes the displacement mask.
func Masks(q domain.UserQuery) []Mask {
	fuel := taxonomy.ParsePreference(q.Fuel)
	gear := taxonomy.ParseGearbox(q.Gearbox)
	return []Mask{
		{Name: "year", Keep: func(r domain.VehicleRecord) bool {
			return r.Year >= q.YearMin && r.Year <= q.YearMax
		}},
		{Name: "engine_cc", Keep: func(r domain.VehicleRecord) bool {
			return r.HasDisplacement() && *r.EngineCC >= q.CCMin && *r.EngineCC <= q.CCMax
		}},
		{Name: "fuel", Keep: func(r domain.VehicleRecord) bool {
			return fuel.Matches(fuelText(r))
		}},
		{Name: "gearbox", Keep: func(r domain.VehicleRecord) bool {
			return gear.Allows(r.Transmission)
		}},
	}
}

// Filter returns every record passing all masks, in input order.
func Filter(records []domain.VehicleRecord, q domain.UserQuery) []domain.VehicleRecord {
	masks := Masks(q)
	return fn.Filter(records, func(r domain.VehicleRecord) bool {
		for _, m := range masks {
			if !m.Keep(r) {
				return false
			}
		}
		return true
	})
}

// Explain counts, per mask, how many records it rejected on its own.
func Explain(records []domain.VehicleRecord, q domain.UserQuery) map[string]int {
	out := make(map[string]int, 4)
	for _, m := range Masks(q) {
		out[m.Name] = len(records) - len(fn.Filter(records, m.Keep))
	}
	return out
}

func fuelText(r domain.VehicleRecord) string {
	if r.Fuel.Raw != "" {
		return r.Fuel.Raw
	}
	return string(r.Fuel.Category)
}
