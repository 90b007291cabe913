package pricing

import (
	"math"
	"testing"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6*math.Max(1, math.Abs(b)) }

func neutralBrand() domain.BrandProfile { return domain.DefaultBrandProfile("Generic") }

func newEstimator(t *testing.T, p Policy) *Estimator {
	t.Helper()
	e, err := New(p, 2025)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestAgeZeroIsBaseTimesAdjustments(t *testing.T) {
	e := newEstimator(t, DefaultPolicy())
	toyota := domain.BrandProfile{Brand: "Toyota", Country: "Japan", Reliability: domain.LevelHigh, Demand: domain.LevelHigh, Segment: domain.SegmentFamily}

	in := Input{BasePrice: 120000, Year: 2025, Brand: toyota, FuelEfficiency: 19}
	got := e.Estimate(in)
	want := 120000 * 1.02 * 1.03 * 1.03 * 1.02
	if got.Age != 0 || !near(got.Estimate, want) {
		t.Fatalf("estimate = %+v, want %.2f", got, want)
	}
	if !near(got.Low, want*0.9) || !near(got.High, want*1.1) || got.Band != 0.10 {
		t.Fatalf("band = %+v", got)
	}

	// future model years clamp to age 0
	future := e.Estimate(Input{BasePrice: 120000, Year: 2027, Brand: toyota, FuelEfficiency: 19})
	if future.Age != 0 || !near(future.Estimate, want) {
		t.Fatalf("future = %+v", future)
	}
}

func TestNeutralInputsHaveNoAdjustment(t *testing.T) {
	e := newEstimator(t, DefaultPolicy())
	if got := e.Adjustment(Input{Brand: neutralBrand(), FuelEfficiency: 14}); got != 1 {
		t.Fatalf("adjustment = %v", got)
	}
}

func TestBracketedDepreciation(t *testing.T) {
	e := newEstimator(t, DefaultPolicy())
	cases := map[int]float64{
		1:  0.9,
		5:  math.Pow(0.9, 5),
		6:  math.Pow(0.9, 5) * 0.85,
		10: math.Pow(0.9, 5) * math.Pow(0.85, 5),
		12: math.Pow(0.9, 5) * math.Pow(0.85, 5) * 0.78 * 0.78,
	}
	for age, want := range cases {
		if got := e.Depreciation(age); !near(got, want) {
			t.Errorf("Depreciation(%d) = %v, want %v", age, got, want)
		}
	}
}

func TestEstimateNeverIncreasesWithAgeAndRespectsFloor(t *testing.T) {
	e := newEstimator(t, DefaultPolicy())
	prev := math.Inf(1)
	for year := 2026; year >= 1960; year-- {
		est := e.Estimate(Input{BasePrice: 90000, Year: year, Brand: neutralBrand(), FuelEfficiency: 14})
		if est.Estimate > prev {
			t.Fatalf("estimate rose at year %d: %v > %v", year, est.Estimate, prev)
		}
		if est.Estimate < 5000 {
			t.Fatalf("below floor at year %d: %v", year, est.Estimate)
		}
		prev = est.Estimate
	}
	old := e.Estimate(Input{BasePrice: 90000, Year: 1970, Brand: neutralBrand()})
	if !old.Floored || old.Estimate != 5000 {
		t.Fatalf("old = %+v", old)
	}
}

func TestSegmentOverridesCountry(t *testing.T) {
	e := newEstimator(t, DefaultPolicy())
	bmw := domain.BrandProfile{Brand: "BMW", Country: "Germany", Reliability: domain.LevelMedium, Demand: domain.LevelMedium, Segment: domain.SegmentLuxury}

	if got := e.Adjustment(Input{Brand: bmw}); !near(got, 0.95) {
		t.Fatalf("luxury adjustment = %v", got)
	}
	// an explicit family segment from enrichment lets the country apply
	if got := e.Adjustment(Input{Brand: bmw, Segment: domain.SegmentFamily}); !near(got, 0.99) {
		t.Fatalf("family adjustment = %v", got)
	}
	kia := domain.BrandProfile{Brand: "Kia", Country: "קוריאה", Segment: domain.SegmentFamily}
	if got := e.Adjustment(Input{Brand: kia}); !near(got, 1.02) {
		t.Fatalf("hebrew country = %v", got)
	}
}

func TestFuelEfficiencyMultipliers(t *testing.T) {
	e := newEstimator(t, DefaultPolicy())
	b := neutralBrand()
	if got := e.Adjustment(Input{Brand: b, FuelEfficiency: 18}); !near(got, 1.02) {
		t.Fatalf("efficient = %v", got)
	}
	if got := e.Adjustment(Input{Brand: b, FuelEfficiency: 9}); !near(got, 0.97) {
		t.Fatalf("thirsty = %v", got)
	}
}

func TestFlatPolicy(t *testing.T) {
	e := newEstimator(t, FlatPolicy(0.12))
	if got := e.Depreciation(3); !near(got, math.Pow(0.88, 3)) {
		t.Fatalf("flat = %v", got)
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	e := newEstimator(t, DefaultPolicy())
	in := Input{BasePrice: 100000, Year: 2016, Segment: domain.SegmentCompact, Brand: neutralBrand(), FuelEfficiency: 16}
	if e.Estimate(in) != e.Estimate(in) {
		t.Fatal("estimate is not deterministic")
	}
}

func TestPolicyValidate(t *testing.T) {
	bad := []func(*Policy){
		func(p *Policy) { p.Brackets = nil },
		func(p *Policy) { p.Brackets[0].Rate = 0 },
		func(p *Policy) { p.Brackets[1].Rate = 1 },
		func(p *Policy) { p.Brackets[1].UpToYear = 3 },
		func(p *Policy) { p.Floor = -1 },
		func(p *Policy) { p.Band = 0.6 },
		func(p *Policy) { p.Demand[domain.LevelHigh] = 0 },
	}
	for i, mutate := range bad {
		p := DefaultPolicy()
		mutate(&p)
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatal(err)
	}
	if _, err := New(DefaultPolicy(), 0); err == nil {
		t.Fatal("reference year 0 should be rejected")
	}
}
