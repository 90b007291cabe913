package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/WessleyAI/wessley-advisor/engine/advisor"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/history"
	"github.com/WessleyAI/wessley-advisor/engine/pricing"
	"github.com/WessleyAI/wessley-advisor/pkg/mid"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeService struct {
	rep   *advisor.Report
	err   error
	gotIn pricing.Input
	gotQ  domain.UserQuery
	calls int
}

func (f *fakeService) Recommend(_ context.Context, q domain.UserQuery) (*advisor.Report, error) {
	f.calls++
	f.gotQ = q
	return f.rep, f.err
}

func (f *fakeService) Estimate(in pricing.Input) domain.PriceEstimate {
	f.gotIn = in
	return domain.PriceEstimate{BasePrice: in.BasePrice, Estimate: in.BasePrice / 2, Age: 9}
}

func (f *fakeService) Brand(brand string) domain.BrandProfile {
	return domain.BrandProfile{Brand: brand, Segment: domain.SegmentFamily}
}

type fakeRuns struct {
	recs  []history.Record
	err   error
	limit int
}

func (f *fakeRuns) List(_ context.Context, limit int) ([]history.Record, error) {
	f.limit = limit
	return f.recs, f.err
}

func (f *fakeRuns) Get(_ context.Context, id string) (history.Record, error) {
	if f.err != nil {
		return history.Record{}, f.err
	}
	for _, r := range f.recs {
		if r.ID == id {
			return r, nil
		}
	}
	return history.Record{}, history.ErrNotFound
}

const corollaQuery = `{"budget_min":20000,"budget_max":40000,"fuel":"בנזין","gearbox":"אוטומט","cc_min":1200,"cc_max":2000,"year_min":2010,"year_max":2020}`

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/health", nil)
	handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
}

func TestRecommendEndpoint_OK(t *testing.T) {
	svc := &fakeService{rep: &advisor.Report{ID: "r1", Summary: "Corolla it is."}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/recommend", strings.NewReader(corollaQuery))
	handleRecommend(svc, quiet)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if svc.gotQ.BudgetMax != 40000 || svc.gotQ.Fuel != "בנזין" || svc.gotQ.CCMin != 1200 {
		t.Fatalf("query not decoded: %+v", svc.gotQ)
	}
	var rep advisor.Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if rep.ID != "r1" || rep.Summary != "Corolla it is." {
		t.Fatalf("report = %+v", rep)
	}
}

func TestRecommendEndpoint_InvalidJSON(t *testing.T) {
	svc := &fakeService{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/recommend", bytes.NewBufferString("not json"))
	handleRecommend(svc, quiet)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatal("service should not be called")
	}
}

func TestRecommendEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name   string
		rep    *advisor.Report
		err    error
		status int
	}{
		{"invalid query", nil, domain.NewValidationError("BudgetMax", "0", fmt.Errorf("%w: failed %q", domain.ErrInvalidQuery, "gt")), http.StatusBadRequest},
		{"registry missing", &advisor.Report{DataUnavailable: true, Message: advisor.DataUnavailableMessage}, fmt.Errorf("filter: %w", domain.ErrDataUnavailable), http.StatusServiceUnavailable},
		{"unexpected", nil, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/recommend", strings.NewReader(corollaQuery))
			handleRecommend(&fakeService{rep: tt.rep, err: tt.err}, quiet)(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestRecommendEndpoint_DataUnavailableCarriesReport(t *testing.T) {
	svc := &fakeService{
		rep: &advisor.Report{DataUnavailable: true, Message: advisor.DataUnavailableMessage},
		err: domain.ErrDataUnavailable,
	}
	rec := httptest.NewRecorder()
	handleRecommend(svc, quiet)(rec, httptest.NewRequest("POST", "/api/recommend", strings.NewReader(corollaQuery)))

	var rep advisor.Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if !rep.DataUnavailable || rep.Message != advisor.DataUnavailableMessage {
		t.Fatalf("report = %+v", rep)
	}
}

func TestEstimateEndpoint(t *testing.T) {
	svc := &fakeService{}
	body := `{"brand":"Toyota","year":2016,"base_price":100000,"segment":"suv","fuel_efficiency":16}`
	rec := httptest.NewRecorder()
	handleEstimate(svc)(rec, httptest.NewRequest("POST", "/api/estimate", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if svc.gotIn.Segment != domain.SegmentSUV || svc.gotIn.Brand.Brand != "Toyota" || svc.gotIn.FuelEfficiency != 16 {
		t.Fatalf("input = %+v", svc.gotIn)
	}
	var resp EstimateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Estimate.Estimate != 50000 || resp.Brand.Brand != "Toyota" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestEstimateEndpoint_BadInput(t *testing.T) {
	for _, body := range []string{"{", `{"brand":"Kia","year":2016}`, `{"brand":"Kia","base_price":90000}`} {
		rec := httptest.NewRecorder()
		handleEstimate(&fakeService{})(rec, httptest.NewRequest("POST", "/api/estimate", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestEstimateEndpoint_EmptySegmentLeftToBrand(t *testing.T) {
	svc := &fakeService{}
	rec := httptest.NewRecorder()
	handleEstimate(svc)(rec, httptest.NewRequest("POST", "/api/estimate", strings.NewReader(`{"brand":"Kia","year":2016,"base_price":90000}`)))
	if rec.Code != http.StatusOK || svc.gotIn.Segment != "" {
		t.Fatalf("code = %d, segment = %q", rec.Code, svc.gotIn.Segment)
	}
}

func TestRunsEndpoints(t *testing.T) {
	runs := &fakeRuns{recs: []history.Record{{ID: "a", Summary: "one"}, {ID: "b", NoMatches: true}}}
	h := newHandler(&fakeService{}, runs, quiet)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs?limit=5", nil))
	if rec.Code != http.StatusOK || runs.limit != 5 {
		t.Fatalf("list: code %d limit %d", rec.Code, runs.limit)
	}
	var got []history.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || len(got) != 2 {
		t.Fatalf("list = %+v, %v", got, err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/b", nil))
	var one history.Record
	if err := json.NewDecoder(rec.Body).Decode(&one); err != nil || !one.NoMatches {
		t.Fatalf("get = %+v, %v", one, err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/zzz", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing run: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs?limit=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: got %d", rec.Code)
	}
}

func TestRunsEndpoints_StoreError(t *testing.T) {
	h := newHandler(&fakeService{}, &fakeRuns{err: errors.New("disk")}, quiet)
	for _, path := range []string{"/api/runs", "/api/runs/a"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: got %d", path, rec.Code)
		}
	}
}

func TestNewHandler_WithoutHistory(t *testing.T) {
	h := newHandler(&fakeService{}, nil, quiet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without history, got %d", rec.Code)
	}
}

func TestNewHandler_Middleware(t *testing.T) {
	h := newHandler(&fakeService{}, nil, quiet)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set(mid.RequestIDHeader, "req-7")
	h.ServeHTTP(rec, req)
	if rec.Header().Get(mid.RequestIDHeader) != "req-7" {
		t.Fatal("request id not echoed")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/recommend", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics: got %d", rec.Code)
	}
}

func TestNewHandler_BodyTooLarge(t *testing.T) {
	svc := &fakeService{}
	h := newHandler(svc, nil, quiet)
	big := `{"fuel":"` + strings.Repeat("x", 2<<20) + `"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/recommend", strings.NewReader(big)))
	if rec.Code != http.StatusBadRequest || svc.calls != 0 {
		t.Fatalf("got %d, calls %d", rec.Code, svc.calls)
	}
}
