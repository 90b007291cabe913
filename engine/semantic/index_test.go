package semantic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/pkg/cache"
)

type tableEmbedder map[string][]float32

func (e tableEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e[text]; ok {
		return v, nil
	}
	return nil, errors.New("no vector for " + text)
}

type fakeStore struct {
	batches  [][]VectorRecord
	hits     []SearchResult
	err      error
	searches int
}

func (f *fakeStore) Upsert(_ context.Context, recs []VectorRecord) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, append([]VectorRecord(nil), recs...))
	return nil
}

func (f *fakeStore) Search(context.Context, []float32, int, map[string]string) ([]SearchResult, error) {
	f.searches++
	return f.hits, f.err
}

var vectors = tableEmbedder{
	"toyota corolla": {1, 0},
	"mazda 3":        {0, 1},
	"corola":         {0.9, 0.1},
}

func TestIndexDeduplicatesModelsAndBatches(t *testing.T) {
	st := &fakeStore{}
	ix := NewModelIndex(st, vectors)
	recs := []domain.VehicleRecord{
		{Brand: "Toyota", Model: "Corolla", Year: 2016},
		{Brand: "TOYOTA", Model: "corolla", Year: 2019},
		{Brand: "Mazda", Model: "3", Year: 2018},
	}
	n, err := ix.Index(context.Background(), recs, 1)
	if err != nil || n != 2 {
		t.Fatalf("Index = %d, %v", n, err)
	}
	if len(st.batches) != 2 {
		t.Fatalf("batches = %d", len(st.batches))
	}
	first := st.batches[0][0]
	if first.ID != PointID("toyota corolla") || first.Payload[FieldBrand] != "toyota" || first.Payload[FieldName] != "toyota corolla" {
		t.Fatalf("record = %+v", first)
	}
}

func TestIndexEmbedFailure(t *testing.T) {
	ix := NewModelIndex(&fakeStore{}, tableEmbedder{})
	_, err := ix.Index(context.Background(), []domain.VehicleRecord{{Brand: "Kia", Model: "Rio"}}, 0)
	if err == nil {
		t.Fatal("expected embed error")
	}
}

func TestPointIDIsDeterministic(t *testing.T) {
	if PointID("mazda 3") != PointID("mazda 3") || PointID("mazda 3") == PointID("mazda 6") {
		t.Fatal("point IDs must be stable and distinct")
	}
}

func TestResolve(t *testing.T) {
	st := &fakeStore{hits: []SearchResult{{Name: "toyota corolla", Score: 0.93}}}
	ix := NewModelIndex(st, vectors)
	name, ok, err := ix.Resolve(context.Background(), "  Corola ")
	if err != nil || !ok || name != "toyota corolla" {
		t.Fatalf("Resolve = %q %v %v", name, ok, err)
	}
}

func TestResolveBelowThreshold(t *testing.T) {
	st := &fakeStore{hits: []SearchResult{{Name: "toyota corolla", Score: 0.5}}}
	ix := NewModelIndex(st, vectors)
	if _, ok, err := ix.Resolve(context.Background(), "corola"); ok || err != nil {
		t.Fatalf("weak hit accepted: %v %v", ok, err)
	}
	ix = NewModelIndex(st, vectors, WithMinScore(0.4))
	if _, ok, _ := ix.Resolve(context.Background(), "corola"); !ok {
		t.Fatal("threshold option ignored")
	}
}

func TestResolveErrorsAndEmpty(t *testing.T) {
	ix := NewModelIndex(&fakeStore{err: errors.New("qdrant down")}, vectors)
	if _, _, err := ix.Resolve(context.Background(), "corola"); err == nil {
		t.Fatal("expected search error")
	}
	if _, ok, err := ix.Resolve(context.Background(), "   "); ok || err != nil {
		t.Fatal("blank name should resolve to nothing")
	}
	if _, _, err := NewModelIndex(&fakeStore{}, tableEmbedder{}).Resolve(context.Background(), "x"); err == nil {
		t.Fatal("expected embed error")
	}
}

func TestResolveUsesCache(t *testing.T) {
	st := &fakeStore{hits: []SearchResult{{Name: "toyota corolla", Score: 0.99}}}
	ix := NewModelIndex(st, vectors, WithCache(cache.NewMemory(0), time.Hour))
	for range 3 {
		if name, ok, _ := ix.Resolve(context.Background(), "corola"); !ok || name != "toyota corolla" {
			t.Fatal("resolve failed")
		}
	}
	if st.searches != 1 {
		t.Fatalf("searches = %d, want 1", st.searches)
	}
}
