package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/extract"
	"github.com/WessleyAI/wessley-advisor/pkg/cache"
	"github.com/WessleyAI/wessley-advisor/pkg/llm"
)

type fakeGen struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
	prompts []string
}

func (f *fakeGen) Generate(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r, nil
}

type fakeResolver map[string]string

func (f fakeResolver) Resolve(_ context.Context, name string) (string, bool, error) {
	k, ok := f[strings.ToLower(name)]
	return k, ok, nil
}

func rec(brand, model string, year, cc int, fuel domain.FuelCategory) domain.VehicleRecord {
	return domain.VehicleRecord{
		Brand: brand, Model: model, Year: year, EngineCC: domain.IntPtr(cc),
		Fuel: domain.Fuel{Category: fuel}, Transmission: domain.Automatic, Source: "csv",
	}
}

var registry = []domain.VehicleRecord{
	rec("Toyota", "Corolla", 2016, 1600, domain.FuelGasoline),
	rec("Toyota", "Corolla", 2019, 1600, domain.FuelGasoline),
	rec("Mazda", "3", 2017, 2000, domain.FuelGasoline),
	rec("Hyundai", "Ioniq", 2018, 1600, domain.FuelHybridGasoline),
}

var query = domain.UserQuery{BudgetMin: 20000, BudgetMax: 40000, YearMin: 2010, YearMax: 2020, CCMin: 1200, CCMax: 2000, Fuel: "בנזין"}

func fastOpts() Option {
	return WithExtractOptions(extract.Options{MaxAttempts: 5})
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{85000.0, 85000, true},
		{"₪85,000", 85000, true},
		{"85k", 85000, true},
		{"85K ₪", 85000, true},
		{"85 אלף", 85000, true},
		{"70,000-80,000", 75000, true},
		{"70-80k", 75000, true},
		{"120,000 ש\"ח", 120000, true},
		{"unknown", 0, false},
		{"", 0, false},
		{-5.0, 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, c := range cases {
		got, ok := ParsePrice(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParsePrice(%v) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestEnrichKeyedObject(t *testing.T) {
	gen := &fakeGen{replies: []string{"```json\n" + `{
		"toyota corolla 2016": {"base_price": "₪110,000", "fuel_efficiency": 15.5, "turbo": false, "segment": "family", "reliability": "high", "demand": "high"},
		"Toyota Corolla 2019": {"base_price": 125000, "fuel_efficiency": "16"},
		"mazda 3 2017": {"base_price": "N/A", "notes": "rare"},
		"hyundai ioniq 2018": {"price": "140k", "fuel_efficiency": 22}
	}` + "\n```"}}
	a := New(gen, fastOpts())
	res := a.Enrich(context.Background(), registry, query)

	if res.Fallback || len(res.Missing) != 0 || len(res.Items) != len(registry) {
		t.Fatalf("result = %+v", res)
	}
	c := res.Items["toyota corolla 2016"]
	if c.BasePrice == nil || *c.BasePrice != 110000 || c.FuelEfficiency != 15.5 || c.Reliability != domain.LevelHigh || c.Fallback {
		t.Fatalf("corolla = %+v", c)
	}
	if res.Items["toyota corolla 2019"].FuelEfficiency != 16 {
		t.Fatalf("corolla 2019 = %+v", res.Items["toyota corolla 2019"])
	}
	m := res.Items["mazda 3 2017"]
	if m.BasePrice != nil || m.Notes != "rare" {
		t.Fatalf("mazda should have no price: %+v", m)
	}
	if p := res.Items["hyundai ioniq 2018"].BasePrice; p == nil || *p != 140000 {
		t.Fatalf("ioniq price = %v", p)
	}
}

func TestEnrichArrayAndMissingEntries(t *testing.T) {
	gen := &fakeGen{replies: []string{`[
		{"brand":"Toyota","model":"Corolla","year":2016,"base_price":100000},
		{"model":"Mazda 3","year":2017,"base_price":"95000"},
		{"brand":"Toyota","model":"Corolla","year":2016,"fuel_efficiency":17}
	]`}}
	res := New(gen, fastOpts()).Enrich(context.Background(), registry, query)

	if res.Fallback {
		t.Fatal("valid payload must not be a fallback")
	}
	c := res.Items["toyota corolla 2016"]
	if *c.BasePrice != 100000 || c.FuelEfficiency != 17 {
		t.Fatalf("merged corolla = %+v", c)
	}
	if len(res.Missing) != 2 {
		t.Fatalf("missing = %v", res.Missing)
	}
	for _, k := range res.Missing {
		e := res.Items[k]
		if !e.Fallback || *e.BasePrice != DefaultBasePrice || e.FuelEfficiency != DefaultFuelEfficiency || e.Turbo {
			t.Fatalf("%s = %+v", k, e)
		}
	}
}

func TestEnrichIgnoresMetadataAndCitations(t *testing.T) {
	replies := map[string]string{
		"metadata": `{"toyota corolla 2016": {"base_price": 120000, "fuel_efficiency": 16}, "currency": "ILS"}`,
		"citation": `Prices per [1]: {"toyota corolla 2016": {"base_price": 120000, "fuel_efficiency": 16}}`,
	}
	for name, reply := range replies {
		gen := &fakeGen{replies: []string{reply}}
		res := New(gen, fastOpts()).Enrich(context.Background(), registry[:1], query)
		c := res.Items["toyota corolla 2016"]
		if gen.calls != 1 || res.Fallback || c.Fallback || c.BasePrice == nil || *c.BasePrice != 120000 || c.FuelEfficiency != 16 {
			t.Fatalf("%s: calls=%d result=%+v", name, gen.calls, res)
		}
	}
}

func TestProposeKeyedAnswerWithMetadata(t *testing.T) {
	gen := &fakeGen{replies: []string{`{"note": "prices in ILS", "mazda 3 2017": {"brand": "Mazda", "model": "3", "year": 2017}}`}}
	p := New(gen, fastOpts()).Propose(context.Background(), query, registry)
	if p.Fallback || gen.calls != 1 || len(p.Candidates) != 1 || p.Candidates[0].Key() != "mazda 3 2017" {
		t.Fatalf("proposal = %+v", p)
	}
}

func TestEnrichFiveMalformedResponsesUseFallback(t *testing.T) {
	gen := &fakeGen{replies: []string{"sorry", "{oops", "```json\n```", "<b>no</b>", "[{]"}}
	res := New(gen, fastOpts()).Enrich(context.Background(), registry, query)

	if gen.calls != 5 {
		t.Fatalf("generator called %d times", gen.calls)
	}
	if !res.Fallback || res.Attempts != 5 || len(res.Items) != len(registry) {
		t.Fatalf("result = %+v", res)
	}
	for _, r := range registry {
		e := res.Items[r.Key()]
		if e.BasePrice == nil || *e.BasePrice != 100000 || e.FuelEfficiency != 14 || e.Turbo || !e.Fallback {
			t.Fatalf("%s = %+v", r.Key(), e)
		}
	}
	if len(res.Missing) != 0 {
		t.Fatal("exhaustion is reported through Fallback, not Missing")
	}
}

func TestEnrichTransportErrorsNeverEscape(t *testing.T) {
	gen := &fakeGen{err: errors.New("connection refused")}
	res := New(gen, WithExtractOptions(extract.Options{MaxAttempts: 3})).Enrich(context.Background(), registry[:1], query)
	if !res.Fallback || res.Items["toyota corolla 2016"].BasePrice == nil {
		t.Fatalf("result = %+v", res)
	}
}

func TestEnrichCachesOnlyCompleteAnswers(t *testing.T) {
	c := cache.NewMemory(10)
	ctx := context.Background()
	recs := registry[:1]

	failing := &fakeGen{err: errors.New("down")}
	New(failing, WithCache(c, 0), WithExtractOptions(extract.Options{MaxAttempts: 1})).Enrich(ctx, recs, query)
	if c.Len() != 0 {
		t.Fatal("fallback result must not be cached")
	}

	gen := &fakeGen{replies: []string{`{"toyota corolla 2016":{"base_price":90000}}`}}
	a := New(gen, WithCache(c, 0), fastOpts())
	first := a.Enrich(ctx, recs, query)
	second := a.Enrich(ctx, recs, query)
	if gen.calls != 1 || first.Cached || !second.Cached {
		t.Fatalf("calls=%d first=%+v second=%+v", gen.calls, first, second)
	}
	if *second.Items["toyota corolla 2016"].BasePrice != 90000 {
		t.Fatalf("cached = %+v", second.Items)
	}
}

func TestProposeReconcilesAgainstRegistry(t *testing.T) {
	gen := &fakeGen{replies: []string{`[
		{"brand":"Toyota","model":"Corolla","year":2018,"engine_cc":1800,"fuel":"hybrid","turbo":true},
		{"brand":"Mazda","model":"3","year":2017},
		{"brand":"Toyota","model":"Corolla","year":2019},
		{"brand":"Ferrari","model":"F40","year":1990},
		{"model":"Ioniq Hybrid"}
	]`}}
	a := New(gen, fastOpts(), WithResolver(fakeResolver{"ioniq hybrid": "hyundai ioniq"}))
	p := a.Propose(context.Background(), query, registry)

	if p.Fallback || p.Attempts != 1 {
		t.Fatalf("proposal = %+v", p)
	}
	keys := make([]string, len(p.Candidates))
	for i, c := range p.Candidates {
		keys[i] = c.Key()
	}
	want := []string{"toyota corolla 2019", "mazda 3 2017", "hyundai ioniq 2018"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("candidates = %v", keys)
	}
	// registry wins on cc and fuel; turbo comes from the suggestion
	corolla := p.Candidates[0]
	if corolla.CC() != 1600 || corolla.Fuel.Category != domain.FuelGasoline || !corolla.Turbo {
		t.Fatalf("corolla = %+v", corolla)
	}
	if len(p.Dropped) != 1 || p.Dropped[0].Suggestion.Model != "F40" || p.Dropped[0].Reason != "not in registry" {
		t.Fatalf("dropped = %+v", p.Dropped)
	}
	if !strings.Contains(gen.prompts[0], "Corolla 2016") {
		t.Fatalf("prompt lacks the shortlist: %s", gen.prompts[0])
	}
}

func TestProposeFallsBackToShortlist(t *testing.T) {
	gen := &fakeGen{replies: []string{"nope"}}
	p := New(gen, WithExtractOptions(extract.Options{MaxAttempts: 2})).Propose(context.Background(), query, registry)
	if !p.Fallback || len(p.Candidates) != len(registry) || p.Attempts != 2 {
		t.Fatalf("proposal = %+v", p)
	}

	empty := New(gen).Propose(context.Background(), query, nil)
	if empty.Candidates == nil || len(empty.Candidates) != 0 {
		t.Fatalf("empty shortlist = %+v", empty)
	}
}

func TestClosestYear(t *testing.T) {
	rs := []domain.VehicleRecord{rec("A", "B", 2014, 1, ""), rec("A", "B", 2018, 1, ""), rec("A", "B", 2016, 1, "")}
	if closestYear(rs, 2017).Year != 2018 {
		t.Fatal("ties prefer the newer year")
	}
	if closestYear(rs, 2015).Year != 2016 {
		t.Fatal("tie between 2014 and 2016")
	}
	if closestYear(rs, 0).Year != 2018 {
		t.Fatal("no year picks the newest")
	}
}
