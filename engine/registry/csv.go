package registry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/taxonomy"
	"github.com/WessleyAI/wessley-advisor/pkg/metrics"
)

// Header aliases, lower-cased. The first column found for a field wins.
var columnAliases = map[string][]string{
	"brand":     {"brand", "make", "manufacturer", "tozeret_nm", "יצרן"},
	"model":     {"model", "kinuy_mishari", "degem_nm", "דגם"},
	"year":      {"year", "shnat_yitzur", "שנת ייצור"},
	"engine_cc": {"engine_cc", "nefah_manoa", "נפח מנוע"},
	"fuel":      {"fuel", "sug_delek_nm", "סוג דלק"},
	"automatic": {"automatic", "automatic_ind", "תיבת הילוכים"},
	"turbo":     {"turbo"},
}

var requiredColumns = []string{"brand", "model", "year", "engine_cc", "fuel", "automatic"}

// LoadReport summarises a CSV load.
type LoadReport struct {
	Rows    int
	Kept    int
	Skipped int
	Reasons map[string]int
}

func (r *LoadReport) skip(reason string) {
	r.Skipped++
	r.Reasons[reason]++
}

// CSVSource reads the registry export published by the Ministry of
// Transport, with columns brand, model, year, engine_cc, fuel, automatic.
type CSVSource struct {
	Path   string
	Now    func() time.Time
	Logger *slog.Logger
}

// Load implements Source.
func (s *CSVSource) Load(ctx context.Context) ([]domain.VehicleRecord, error) {
	recs, rep, err := s.LoadWithReport(ctx)
	if err != nil {
		return nil, err
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if rep.Skipped > 0 {
		logger.Warn("registry rows skipped", "path", s.Path, "skipped", rep.Skipped, "reasons", rep.Reasons)
	}
	return recs, nil
}

// LoadWithReport loads the file and reports skipped rows by reason.
func (s *CSVSource) LoadWithReport(ctx context.Context) ([]domain.VehicleRecord, LoadReport, error) {
	rep := LoadReport{Reasons: map[string]int{}}
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, rep, fmt.Errorf("registry file %q: %w", s.Path, domain.ErrDataUnavailable)
		}
		return nil, rep, fmt.Errorf("registry: open %q: %w", s.Path, err)
	}
	defer f.Close()

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	recs, err := parseCSV(ctx, f, now(), &rep)
	if err != nil {
		return nil, rep, fmt.Errorf("registry: %s: %w", s.Path, err)
	}
	for reason, n := range rep.Reasons {
		metrics.RegistryRowsSkipped.WithLabelValues(reason).Add(float64(n))
	}
	return recs, rep, nil
}

func parseCSV(ctx context.Context, r io.Reader, now time.Time, rep *LoadReport) ([]domain.VehicleRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := indexHeader(header)
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q: %w", col, domain.ErrDataUnavailable)
		}
	}

	var out []domain.VehicleRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rep.Rows++
			rep.skip("malformed")
			continue
		}
		if line%1000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rep.Rows++
		rec, reason := rowToRecord(row, idx, now)
		if reason != "" {
			rep.skip(reason)
			continue
		}
		out = append(out, rec)
	}
	rep.Kept = len(out)
	return out, nil
}

func indexHeader(header []string) map[string]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	idx := make(map[string]int, len(columnAliases))
	for field, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := pos[a]; ok {
				idx[field] = i
				break
			}
		}
	}
	return idx
}

// rowToRecord returns a non-empty reason when the row must be skipped.
func rowToRecord(row []string, idx map[string]int, now time.Time) (domain.VehicleRecord, string) {
	get := func(field string) string {
		if i, ok := idx[field]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	year, ok := parseWhole(get("year"))
	if !ok {
		return domain.VehicleRecord{}, "year_not_numeric"
	}

	var cc *int
	if raw := get("engine_cc"); raw != "" && !strings.EqualFold(raw, "nan") {
		v, ok := parseWhole(raw)
		if !ok {
			return domain.VehicleRecord{}, "engine_cc_not_numeric"
		}
		cc = &v
	}

	rec := domain.VehicleRecord{
		Brand:        get("brand"),
		Model:        get("model"),
		Year:         year,
		EngineCC:     cc,
		Fuel:         taxonomy.Classify(get("fuel")),
		Transmission: parseGearboxColumn(get("automatic")),
		Turbo:        parseBool(get("turbo")),
		Source:       "registry",
	}
	if err := domain.ValidateRecord(rec, now); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return domain.VehicleRecord{}, "invalid_" + ve.Field
		}
		return domain.VehicleRecord{}, "invalid"
	}
	return rec, ""
}

// parseWhole accepts integers and integral floats such as "2016.0".
func parseWhole(s string) (int, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func parseGearboxColumn(s string) domain.Transmission {
	if v, ok := parseWhole(s); ok {
		return domain.TransmissionFromFlag(v)
	}
	if taxonomy.ParseGearbox(s) == taxonomy.GearboxAutomatic {
		return domain.Automatic
	}
	return domain.Manual
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "כן":
		return true
	}
	return false
}
