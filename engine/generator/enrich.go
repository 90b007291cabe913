package generator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/extract"
	"github.com/WessleyAI/wessley-advisor/pkg/cache"
	"github.com/WessleyAI/wessley-advisor/pkg/llm"
)

// EnrichmentResult maps every requested record key to its enrichment.
type EnrichmentResult struct {
	Items map[string]domain.Enrichment `json:"items"`
	// Missing lists keys the generator answer did not cover; they carry the
	// fallback enrichment.
	Missing []string `json:"missing,omitempty"`
	// Fallback is set when the generator was exhausted and every item is a
	// fallback.
	Fallback bool `json:"fallback,omitempty"`
	Attempts int  `json:"attempts"`
	Cached   bool `json:"cached,omitempty"`
}

// FallbackEnrichment is the deterministic enrichment used when the generator
// gives nothing usable for a record.
func FallbackEnrichment() domain.Enrichment {
	price := DefaultBasePrice
	return domain.Enrichment{
		BasePrice:      &price,
		FuelEfficiency: DefaultFuelEfficiency,
		Turbo:          false,
		Fallback:       true,
	}
}

const enrichSystem = `You are a pricing analyst for the Israeli used-car market. ` +
	`Prices are in new Israeli shekels (ILS) for the vehicle when it was new.`

var errNoEntries = errors.New("answer covers none of the requested vehicles")

// Enrich asks the generator for pricing data on records. The result covers
// every record: missing entries get FallbackEnrichment, entries without a
// numeric price keep a nil BasePrice.
func (a *Adapter) Enrich(ctx context.Context, records []domain.VehicleRecord, q domain.UserQuery) EnrichmentResult {
	if len(records) == 0 {
		return EnrichmentResult{Items: map[string]domain.Enrichment{}}
	}

	key := cache.Key("enrich", append([]string{queryFingerprint(q)}, sortedKeys(records)...)...)
	var cached map[string]domain.Enrichment
	if a.cacheGet(ctx, key, &cached) && covers(cached, records) {
		return EnrichmentResult{Items: cached, Cached: true}
	}

	decode := func(p extract.Payload) (map[string]domain.Enrichment, error) {
		return decodeEnrichment(p, records)
	}
	out := extract.Run(ctx, a.gen, llm.Request{
		System:      enrichSystem,
		Prompt:      enrichPrompt(q, records),
		Temperature: 0.1,
	}, a.options("enrich"), decode, func() map[string]domain.Enrichment { return nil })

	res := EnrichmentResult{Items: make(map[string]domain.Enrichment, len(records)), Attempts: out.Attempts, Fallback: out.Exhausted}
	for _, r := range records {
		k := r.Key()
		if e, ok := out.Value[k]; ok {
			res.Items[k] = e
			continue
		}
		res.Items[k] = FallbackEnrichment()
		if !out.Exhausted {
			res.Missing = append(res.Missing, k)
		}
	}
	if !res.Fallback && len(res.Missing) == 0 {
		a.cachePut(ctx, key, res.Items)
	}
	if len(res.Missing) > 0 {
		a.logger.Warn("enrichment missing entries", "missing", len(res.Missing), "requested", len(records))
	}
	return res
}

func covers(items map[string]domain.Enrichment, records []domain.VehicleRecord) bool {
	for _, r := range records {
		if _, ok := items[r.Key()]; !ok {
			return false
		}
	}
	return true
}

func enrichPrompt(q domain.UserQuery, records []domain.VehicleRecord) string {
	var b strings.Builder
	b.WriteString("Buyer context:\n")
	b.WriteString(describeQuery(q))
	b.WriteString("\nFor each vehicle below give its approximate price when new in Israel and its characteristics:\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- %s (%dcc, %s, %s)\n", r.Key(), r.CC(), r.Fuel, r.Transmission)
	}
	b.WriteString("\nAnswer with a single JSON object keyed by the exact vehicle text before the parenthesis. ")
	b.WriteString(`Each value is an object with "base_price" (number, ILS), "fuel_efficiency" (km per litre), ` +
		`"turbo" (boolean), "segment" (family, luxury, executive, suv, mini, compact or budget), ` +
		`"reliability" (low, medium or high), "demand" (low, medium or high) and "notes".`)
	return b.String()
}

// entryKey derives a key for array-form answers.
func entryKey(e map[string]any) string {
	if k := text(e, "key", "vehicle", "id"); k != "" {
		return domain.CanonicalKey(k)
	}
	return domain.CanonicalKey(text(e, "brand", "make"), text(e, "model"), text(e, "year"))
}

// aliases lists the keys under which a generator may have answered for r,
// most specific first.
func aliases(r domain.VehicleRecord) []string {
	year := strconv.Itoa(r.Year)
	return []string{
		r.Key(),
		domain.CanonicalKey(r.Brand, r.Model),
		domain.CanonicalKey(r.Model, year),
		domain.CanonicalKey(r.Model),
	}
}

func decodeEnrichment(p extract.Payload, records []domain.VehicleRecord) (map[string]domain.Enrichment, error) {
	keyed := extract.Keyed(p, entryKey)
	entries := make(map[string]map[string]any, len(keyed))
	for k, v := range keyed {
		entries[domain.CanonicalKey(k)] = v
	}

	out := make(map[string]domain.Enrichment, len(records))
	for _, r := range records {
		for _, alias := range aliases(r) {
			if e, ok := entries[alias]; ok {
				out[r.Key()] = enrichmentFrom(e)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, errNoEntries
	}
	return out, nil
}

func enrichmentFrom(e map[string]any) domain.Enrichment {
	en := domain.Enrichment{
		FuelEfficiency: DefaultFuelEfficiency,
		Notes:          text(e, "notes", "note", "comments"),
	}
	if v, ok := field(e, "base_price", "price", "price_new", "new_price", "מחיר"); ok {
		if price, ok := ParsePrice(v); ok {
			en.BasePrice = &price
		}
	}
	if v, ok := field(e, "fuel_efficiency", "km_per_liter", "kml", "consumption"); ok {
		if f, ok := number(v); ok && f > 0 {
			en.FuelEfficiency = f
		}
	}
	if v, ok := field(e, "turbo"); ok {
		en.Turbo = boolean(v)
	}
	if s := text(e, "segment", "category"); s != "" {
		en.Segment = domain.ParseSegment(s)
	}
	if s := text(e, "reliability"); s != "" {
		en.Reliability = domain.ParseLevel(s)
	}
	if s := text(e, "demand"); s != "" {
		en.Demand = domain.ParseLevel(s)
	}
	return en
}
