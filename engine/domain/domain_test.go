package domain

import (
	"errors"
	"testing"
	"time"
)

var refNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestValidateRecord_Valid(t *testing.T) {
	cases := []VehicleRecord{
		{Brand: "Toyota", Model: "Corolla", Year: 2016, EngineCC: IntPtr(1600)},
		{Brand: "טויוטה", Model: "קורולה", Year: 1950},
		{Brand: "Tesla", Model: "Model 3", Year: 2027},
	}
	for _, r := range cases {
		if err := ValidateRecord(r, refNow); err != nil {
			t.Errorf("expected valid for %+v, got %v", r, err)
		}
	}
}

func TestValidateRecord_Invalid(t *testing.T) {
	cases := []struct {
		name string
		rec  VehicleRecord
		want error
	}{
		{"empty brand", VehicleRecord{Model: "Corolla", Year: 2016}, ErrEmptyField},
		{"blank model", VehicleRecord{Brand: "Toyota", Model: "  ", Year: 2016}, ErrEmptyField},
		{"too old", VehicleRecord{Brand: "Toyota", Model: "Corolla", Year: 1949}, ErrYearOutOfRange},
		{"future", VehicleRecord{Brand: "Toyota", Model: "Corolla", Year: 2028}, ErrYearOutOfRange},
		{"zero cc", VehicleRecord{Brand: "Toyota", Model: "Corolla", Year: 2016, EngineCC: IntPtr(0)}, ErrInvalidDisplacement},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRecord(tc.rec, refNow)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field == "" {
				t.Fatalf("expected ValidationError with field, got %v", err)
			}
		})
	}
}

func validQuery() UserQuery {
	return UserQuery{
		BudgetMin: 20000, BudgetMax: 40000,
		Fuel: "בנזין", Gearbox: "אוטומט",
		CCMin: 1200, CCMax: 2000,
		YearMin: 2010, YearMax: 2020,
	}
}

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery(validQuery()); err != nil {
		t.Fatalf("valid query rejected: %v", err)
	}

	bad := validQuery()
	bad.BudgetMax = 10000
	err := ValidateQuery(bad)
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("inverted budget: got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "BudgetMax" {
		t.Fatalf("expected BudgetMax field, got %v", err)
	}

	bad = validQuery()
	bad.YearMin, bad.YearMax = 2020, 2010
	if !errors.Is(ValidateQuery(bad), ErrInvalidQuery) {
		t.Fatal("inverted years should be rejected")
	}

	bad = validQuery()
	bad.CCMin = -1
	if !errors.Is(ValidateQuery(bad), ErrInvalidQuery) {
		t.Fatal("negative cc should be rejected")
	}
}

func TestRecordKeys(t *testing.T) {
	r := VehicleRecord{Brand: " Toyota ", Model: "Corolla  Cross", Year: 2021}
	if got := r.Key(); got != "toyota corolla cross 2021" {
		t.Fatalf("Key = %q", got)
	}
	if got := r.ModelName(); got != "toyota corolla cross" {
		t.Fatalf("ModelName = %q", got)
	}
	if r.HasDisplacement() || r.CC() != 0 {
		t.Fatal("record without cc")
	}
}

func TestFuelString(t *testing.T) {
	if got := (Fuel{Category: FuelUnknown, Raw: "גז"}).String(); got != "גז" {
		t.Fatalf("unknown fuel should show raw text, got %q", got)
	}
	if got := (Fuel{Category: FuelDiesel, Raw: "דיזל"}).String(); got != "diesel" {
		t.Fatalf("got %q", got)
	}
}

func TestBrandLookupDefaults(t *testing.T) {
	brands := DefaultBrands()
	p := brands.Lookup("Toyota")
	if p.Reliability != LevelHigh || p.Country != "Japan" {
		t.Fatalf("Toyota = %+v", p)
	}
	if brands.Lookup("טויוטה").Country != "Japan" {
		t.Fatal("Hebrew alias missing")
	}

	miss := brands.Lookup("Trabant")
	want := DefaultBrandProfile("Trabant")
	if miss != want {
		t.Fatalf("miss = %+v", miss)
	}
	if miss.Reliability != LevelMedium || miss.Demand != LevelMedium || miss.Luxury || miss.Segment != SegmentFamily {
		t.Fatalf("default profile wrong: %+v", miss)
	}
	// Case-sensitive exact match.
	if brands.Lookup("toyota").Country != "" {
		t.Fatal("lookup should be case-sensitive")
	}
}

func TestBrandOverridesCopy(t *testing.T) {
	base := NewStaticBrands(BrandProfile{Brand: "A", Reliability: LevelLow})
	ext := base.WithOverrides(BrandProfile{Brand: "A", Reliability: LevelHigh}, BrandProfile{Brand: "B"})
	if base.Lookup("A").Reliability != LevelLow || base.Len() != 1 {
		t.Fatal("base table mutated")
	}
	if ext.Lookup("A").Reliability != LevelHigh || ext.Len() != 2 {
		t.Fatal("override not applied")
	}
}

func TestParseHelpers(t *testing.T) {
	if ParseLevel("גבוהה") != LevelHigh || ParseLevel("Low") != LevelLow || ParseLevel("?") != LevelMedium {
		t.Fatal("ParseLevel")
	}
	if ParseSegment("SUV") != SegmentSUV || ParseSegment("יוקרה") != SegmentLuxury || ParseSegment("") != SegmentFamily {
		t.Fatal("ParseSegment")
	}
	if TransmissionFromFlag(1) != Automatic || TransmissionFromFlag(0) != Manual {
		t.Fatal("TransmissionFromFlag")
	}
}
