package domain

// BrandLookup resolves a brand name to its profile. Implementations must be
// safe for concurrent use and return a default profile for unknown brands.
type BrandLookup interface {
	Lookup(brand string) BrandProfile
}

// DefaultBrandProfile is used for brands missing from the table.
func DefaultBrandProfile(brand string) BrandProfile {
	return BrandProfile{
		Brand:       brand,
		Reliability: LevelMedium,
		Demand:      LevelMedium,
		Segment:     SegmentFamily,
	}
}

// StaticBrands is an immutable brand table. Lookups are exact and
// case-sensitive.
type StaticBrands struct {
	profiles map[string]BrandProfile
}

// NewStaticBrands copies profiles into a new table keyed by Brand.
func NewStaticBrands(profiles ...BrandProfile) *StaticBrands {
	m := make(map[string]BrandProfile, len(profiles))
	for _, p := range profiles {
		m[p.Brand] = p
	}
	return &StaticBrands{profiles: m}
}

// Lookup implements BrandLookup.
func (s *StaticBrands) Lookup(brand string) BrandProfile {
	if p, ok := s.profiles[brand]; ok {
		return p
	}
	return DefaultBrandProfile(brand)
}

// Len returns the number of known brands.
func (s *StaticBrands) Len() int { return len(s.profiles) }

// WithOverrides returns a new table with extra profiles layered on top. The
// receiver is left untouched.
func (s *StaticBrands) WithOverrides(profiles ...BrandProfile) *StaticBrands {
	m := make(map[string]BrandProfile, len(s.profiles)+len(profiles))
	for k, v := range s.profiles {
		m[k] = v
	}
	for _, p := range profiles {
		m[p.Brand] = p
	}
	return &StaticBrands{profiles: m}
}

// DefaultBrands covers the makes most common on the Israeli used market.
// Both the Latin and the Hebrew registry spellings are listed.
func DefaultBrands() *StaticBrands {
	var out []BrandProfile
	add := func(p BrandProfile, aliases ...string) {
		out = append(out, p)
		for _, a := range aliases {
			alias := p
			alias.Brand = a
			out = append(out, alias)
		}
	}
	add(BrandProfile{Brand: "Toyota", Country: "Japan", Reliability: LevelHigh, Demand: LevelHigh, Popular: true, Segment: SegmentFamily}, "טויוטה")
	add(BrandProfile{Brand: "Mazda", Country: "Japan", Reliability: LevelHigh, Demand: LevelHigh, Popular: true, Segment: SegmentFamily}, "מאזדה")
	add(BrandProfile{Brand: "Honda", Country: "Japan", Reliability: LevelHigh, Demand: LevelMedium, Popular: true, Segment: SegmentFamily}, "הונדה")
	add(BrandProfile{Brand: "Suzuki", Country: "Japan", Reliability: LevelHigh, Demand: LevelHigh, Popular: true, Segment: SegmentMini}, "סוזוקי")
	add(BrandProfile{Brand: "Mitsubishi", Country: "Japan", Reliability: LevelMedium, Demand: LevelMedium, Popular: true, Segment: SegmentFamily}, "מיצובישי")
	add(BrandProfile{Brand: "Nissan", Country: "Japan", Reliability: LevelMedium, Demand: LevelMedium, Segment: SegmentFamily}, "ניסאן")
	add(BrandProfile{Brand: "Subaru", Country: "Japan", Reliability: LevelMedium, Demand: LevelMedium, Segment: SegmentFamily}, "סובארו")
	add(BrandProfile{Brand: "Lexus", Country: "Japan", Reliability: LevelHigh, Demand: LevelMedium, Luxury: true, Segment: SegmentLuxury}, "לקסוס")
	add(BrandProfile{Brand: "Hyundai", Country: "Korea", Reliability: LevelHigh, Demand: LevelHigh, Popular: true, Segment: SegmentFamily}, "יונדאי")
	add(BrandProfile{Brand: "Kia", Country: "Korea", Reliability: LevelHigh, Demand: LevelHigh, Popular: true, Segment: SegmentFamily}, "קיה")
	add(BrandProfile{Brand: "Skoda", Country: "Czech Republic", Reliability: LevelMedium, Demand: LevelHigh, Popular: true, Segment: SegmentFamily}, "סקודה")
	add(BrandProfile{Brand: "Volkswagen", Country: "Germany", Reliability: LevelMedium, Demand: LevelMedium, Segment: SegmentFamily}, "פולקסווגן")
	add(BrandProfile{Brand: "Seat", Country: "Spain", Reliability: LevelMedium, Demand: LevelMedium, Segment: SegmentCompact}, "סיאט")
	add(BrandProfile{Brand: "BMW", Country: "Germany", Reliability: LevelMedium, Demand: LevelMedium, Luxury: true, Segment: SegmentLuxury}, "ב.מ.וו")
	add(BrandProfile{Brand: "Mercedes", Country: "Germany", Reliability: LevelMedium, Demand: LevelMedium, Luxury: true, Segment: SegmentLuxury}, "מרצדס")
	add(BrandProfile{Brand: "Audi", Country: "Germany", Reliability: LevelMedium, Demand: LevelMedium, Luxury: true, Segment: SegmentExecutive}, "אאודי")
	add(BrandProfile{Brand: "Peugeot", Country: "France", Reliability: LevelLow, Demand: LevelMedium, Segment: SegmentCompact}, "פיג'ו")
	add(BrandProfile{Brand: "Citroen", Country: "France", Reliability: LevelLow, Demand: LevelLow, Segment: SegmentCompact}, "סיטרואן")
	add(BrandProfile{Brand: "Renault", Country: "France", Reliability: LevelLow, Demand: LevelMedium, Segment: SegmentCompact}, "רנו")
	add(BrandProfile{Brand: "Fiat", Country: "Italy", Reliability: LevelLow, Demand: LevelLow, Segment: SegmentMini}, "פיאט")
	add(BrandProfile{Brand: "Alfa Romeo", Country: "Italy", Reliability: LevelLow, Demand: LevelLow, Luxury: true, Segment: SegmentExecutive}, "אלפא רומיאו")
	add(BrandProfile{Brand: "Chevrolet", Country: "USA", Reliability: LevelMedium, Demand: LevelLow, Segment: SegmentFamily}, "שברולט")
	add(BrandProfile{Brand: "Ford", Country: "USA", Reliability: LevelMedium, Demand: LevelMedium, Segment: SegmentFamily}, "פורד")
	add(BrandProfile{Brand: "Jeep", Country: "USA", Reliability: LevelLow, Demand: LevelMedium, Segment: SegmentSUV}, "ג'יפ")
	add(BrandProfile{Brand: "Tesla", Country: "USA", Reliability: LevelMedium, Demand: LevelHigh, Luxury: true, Segment: SegmentExecutive}, "טסלה")
	add(BrandProfile{Brand: "Chery", Country: "China", Reliability: LevelLow, Demand: LevelLow, Segment: SegmentBudget}, "צ'רי")
	add(BrandProfile{Brand: "Geely", Country: "China", Reliability: LevelMedium, Demand: LevelMedium, Segment: SegmentFamily}, "ג'ילי")
	add(BrandProfile{Brand: "BYD", Country: "China", Reliability: LevelMedium, Demand: LevelHigh, Segment: SegmentFamily}, "בי.ווי.די")
	add(BrandProfile{Brand: "MG", Country: "China", Reliability: LevelMedium, Demand: LevelMedium, Popular: true, Segment: SegmentBudget}, "אם.ג'י")
	add(BrandProfile{Brand: "Volvo", Country: "Sweden", Reliability: LevelHigh, Demand: LevelMedium, Luxury: true, Segment: SegmentExecutive}, "וולוו")
	add(BrandProfile{Brand: "Dacia", Country: "Romania", Reliability: LevelMedium, Demand: LevelMedium, Segment: SegmentBudget}, "דאצ'יה")
	return NewStaticBrands(out...)
}
