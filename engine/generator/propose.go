package generator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/extract"
	"github.com/WessleyAI/wessley-advisor/engine/taxonomy"
	"github.com/WessleyAI/wessley-advisor/pkg/cache"
	"github.com/WessleyAI/wessley-advisor/pkg/llm"
)

// Suggestion is one vehicle as proposed by the generator, before it is
// checked against the registry.
type Suggestion struct {
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Year     int    `json:"year,omitempty"`
	EngineCC int    `json:"engine_cc,omitempty"`
	Fuel     string `json:"fuel,omitempty"`
	Gearbox  string `json:"gearbox,omitempty"`
	Turbo    bool   `json:"turbo,omitempty"`
}

// Dropped is a suggestion that could not be tied to a registry record.
type Dropped struct {
	Suggestion Suggestion `json:"suggestion"`
	Reason     string     `json:"reason"`
}

// Proposal is the result of Propose. Candidates are always registry
// records.
type Proposal struct {
	Candidates []domain.VehicleRecord `json:"candidates"`
	Dropped    []Dropped              `json:"dropped,omitempty"`
	Fallback   bool                   `json:"fallback,omitempty"`
	Attempts   int                    `json:"attempts"`
}

const proposeSystem = `You are an expert on the Israeli used-car market. ` +
	`You only recommend vehicles that appear in the provided registry list.`

var errNoSuggestions = errors.New("no usable suggestions")

// Propose asks the generator to pick candidates for q out of shortlist and
// reconciles its answer against shortlist. If the generator cannot produce a
// usable list the shortlist itself is returned with Fallback set.
func (a *Adapter) Propose(ctx context.Context, q domain.UserQuery, shortlist []domain.VehicleRecord) Proposal {
	if len(shortlist) == 0 {
		return Proposal{Candidates: []domain.VehicleRecord{}}
	}

	key := cache.Key("propose", append([]string{queryFingerprint(q)}, sortedKeys(shortlist)...)...)
	var suggestions []Suggestion
	attempts := 0
	if !a.cacheGet(ctx, key, &suggestions) {
		out := extract.Run(ctx, a.gen, llm.Request{
			System:      proposeSystem,
			Prompt:      a.proposePrompt(q, shortlist),
			Temperature: 0.2,
		}, a.options("propose"), decodeSuggestions, func() []Suggestion { return nil })
		attempts = out.Attempts
		if out.Exhausted {
			return Proposal{Candidates: append([]domain.VehicleRecord(nil), shortlist...), Fallback: true, Attempts: attempts}
		}
		suggestions = out.Value
		a.cachePut(ctx, key, suggestions)
	}

	cands, dropped := a.Reconcile(ctx, suggestions, shortlist)
	for _, d := range dropped {
		a.logger.Debug("proposal dropped", "brand", d.Suggestion.Brand, "model", d.Suggestion.Model, "reason", d.Reason)
	}
	if len(cands) == 0 {
		// nothing reconciled; the filtered registry is still a valid answer
		return Proposal{Candidates: append([]domain.VehicleRecord(nil), shortlist...), Dropped: dropped, Fallback: true, Attempts: attempts}
	}
	return Proposal{Candidates: cands, Dropped: dropped, Attempts: attempts}
}

func (a *Adapter) proposePrompt(q domain.UserQuery, shortlist []domain.VehicleRecord) string {
	var b strings.Builder
	b.WriteString("A buyer answered a questionnaire:\n")
	b.WriteString(describeQuery(q))
	b.WriteString("\nRegistry vehicles that pass the buyer's hard filters:\n")
	for i, r := range shortlist {
		if i == a.maxShort {
			fmt.Fprintf(&b, "... and %d more\n", len(shortlist)-a.maxShort)
			break
		}
		fmt.Fprintf(&b, "- %s %s %d, %dcc, %s, %s\n", r.Brand, r.Model, r.Year, r.CC(), r.Fuel, r.Transmission)
	}
	b.WriteString("\nChoose up to 10 of these vehicles that best fit the buyer. ")
	b.WriteString(`Answer with a JSON array of objects with the fields ` +
		`"brand", "model", "year", "engine_cc", "fuel", "gearbox", "turbo".`)
	return b.String()
}

func decodeSuggestions(p extract.Payload) ([]Suggestion, error) {
	var out []Suggestion
	for _, e := range extract.Entries(p) {
		s := Suggestion{
			Brand:   text(e, "brand", "make", "manufacturer", "יצרן"),
			Model:   text(e, "model", "name", "דגם"),
			Fuel:    text(e, "fuel", "fuel_type", "דלק"),
			Gearbox: text(e, "gearbox", "transmission", "תיבת הילוכים"),
		}
		if s.Model == "" {
			// keyed form: {"toyota corolla 2016": {...}}
			s.Model, _ = e["_key"].(string)
		}
		if v, ok := field(e, "year", "שנה"); ok {
			if f, ok := number(v); ok {
				s.Year = int(f)
			}
		}
		if v, ok := field(e, "engine_cc", "cc", "engine", "נפח מנוע"); ok {
			if f, ok := number(v); ok {
				s.EngineCC = int(f)
			}
		}
		if v, ok := field(e, "turbo"); ok {
			s.Turbo = boolean(v)
		}
		if s.Model != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, errNoSuggestions
	}
	return out, nil
}

// Reconcile ties suggestions to registry records. A suggestion matches by
// exact brand-model-year key, then by brand and model at the closest
// available year, then through the resolver when one is configured.
// Registry attributes always win; only the turbo flag is taken from the
// suggestion when the registry does not set it. Each registry record is
// returned at most once.
func (a *Adapter) Reconcile(ctx context.Context, suggestions []Suggestion, registry []domain.VehicleRecord) ([]domain.VehicleRecord, []Dropped) {
	byKey := make(map[string]domain.VehicleRecord, len(registry))
	byModel := make(map[string][]domain.VehicleRecord)
	byName := make(map[string][]domain.VehicleRecord)
	for _, r := range registry {
		byKey[r.Key()] = r
		mk := domain.CanonicalKey(r.Brand, r.Model)
		byModel[mk] = append(byModel[mk], r)
		name := domain.CanonicalKey(r.Model)
		byName[name] = append(byName[name], r)
	}

	seen := map[string]bool{}
	var out []domain.VehicleRecord
	var dropped []Dropped
	for _, s := range suggestions {
		rec, reason := a.match(ctx, s, byKey, byModel, byName)
		if reason != "" {
			dropped = append(dropped, Dropped{Suggestion: s, Reason: reason})
			continue
		}
		if seen[rec.Key()] {
			continue
		}
		seen[rec.Key()] = true
		if s.Fuel != "" && suggestedFuel(s) != rec.Fuel.Category {
			a.logger.Debug("registry fuel overrides suggestion", "key", rec.Key(), "suggested", s.Fuel, "registry", rec.Fuel)
		}
		if !rec.Turbo && s.Turbo {
			rec.Turbo = true
		}
		out = append(out, rec)
	}
	return out, dropped
}

func (a *Adapter) match(ctx context.Context, s Suggestion, byKey map[string]domain.VehicleRecord,
	byModel, byName map[string][]domain.VehicleRecord) (domain.VehicleRecord, string) {

	if s.Year > 0 {
		if r, ok := byKey[domain.CanonicalKey(s.Brand, s.Model, strconv.Itoa(s.Year))]; ok {
			return r, ""
		}
	}
	// keyed answers carry the full "brand model year" in the model text
	if r, ok := byKey[domain.CanonicalKey(s.Brand, s.Model)]; ok {
		return r, ""
	}
	if s.Brand != "" {
		if rs, ok := byModel[domain.CanonicalKey(s.Brand, s.Model)]; ok {
			return closestYear(rs, s.Year), ""
		}
	}
	// model text may already include the brand ("Toyota Corolla")
	if rs, ok := byModel[domain.CanonicalKey(s.Model)]; ok {
		return closestYear(rs, s.Year), ""
	}
	if rs, ok := byName[domain.CanonicalKey(s.Model)]; ok && sameBrand(rs) {
		return closestYear(rs, s.Year), ""
	}

	if a.resolver != nil {
		key, ok, err := a.resolver.Resolve(ctx, strings.TrimSpace(s.Brand+" "+s.Model))
		switch {
		case err != nil:
			a.logger.Warn("model resolver failed", "model", s.Model, "err", err)
		case ok:
			if rs, found := byModel[key]; found {
				return closestYear(rs, s.Year), ""
			}
		}
	}
	return domain.VehicleRecord{}, "not in registry"
}

// closestYear picks the record whose year is nearest to year, preferring the
// newer one on ties. year 0 picks the newest.
func closestYear(rs []domain.VehicleRecord, year int) domain.VehicleRecord {
	best := rs[0]
	for _, r := range rs[1:] {
		if year == 0 {
			if r.Year > best.Year {
				best = r
			}
			continue
		}
		d, bd := abs(r.Year-year), abs(best.Year-year)
		if d < bd || (d == bd && r.Year > best.Year) {
			best = r
		}
	}
	return best
}

func sameBrand(rs []domain.VehicleRecord) bool {
	for _, r := range rs[1:] {
		if !strings.EqualFold(r.Brand, rs[0].Brand) {
			return false
		}
	}
	return true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func suggestedFuel(s Suggestion) domain.FuelCategory {
	return taxonomy.Normalize(s.Fuel)
}
