package listing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hospital/staffportal/pkg/pagination"
)

type invoiceRow struct {
	ID   int
	Code string
}

type fakeBackend struct {
	total   int
	queries []pagination.Query
	fail    error
}

func (f *fakeBackend) fetch(_ context.Context, q pagination.Query) (*pagination.Page[invoiceRow], error) {
	f.queries = append(f.queries, q)
	if f.fail != nil {
		return nil, f.fail
	}
	var rows []invoiceRow
	start := q.Page * q.Size
	for i := start; i < start+q.Size && i < f.total; i++ {
		rows = append(rows, invoiceRow{ID: i + 1, Code: fmt.Sprintf("HD%04d", i+1)})
	}
	return pagination.NewPage(rows, f.total, q.Page, q.Size), nil
}

func TestLoad_MirrorsResponse(t *testing.T) {
	be := &fakeBackend{total: 57}
	v := New(be.fetch, pagination.NewQuery(20))

	if err := v.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := v.State()
	if len(s.Items) != 20 {
		t.Errorf("expected 20 items, got %d", len(s.Items))
	}
	if s.Page != 0 || s.TotalPages != 3 || s.TotalElements != 57 {
		t.Errorf("pagination not mirrored: %+v", s)
	}
	if s.Label() != "Trang 1 / 3" {
		t.Errorf("expected 'Trang 1 / 3', got %q", s.Label())
	}
	if s.HasPrevious() {
		t.Error("'Trước' must be disabled on the first page")
	}
	if !s.HasNext() {
		t.Error("'Sau' must be enabled on the first of three pages")
	}
}

func TestSetFilter_SingleFetchMergesFilters(t *testing.T) {
	be := &fakeBackend{total: 5}
	v := New(be.fetch, pagination.NewQuery(10))
	ctx := context.Background()

	v.Load(ctx)
	v.SetFilter(ctx, pagination.KeyStatus, "ISSUED")
	v.Search(ctx, "Nguyễn")

	if len(be.queries) != 3 {
		t.Fatalf("expected one fetch per change, got %d", len(be.queries))
	}
	last := be.queries[2]
	if last.Filter(pagination.KeyStatus) != "ISSUED" {
		t.Error("status filter must survive a keyword change")
	}
	if last.Filter(pagination.KeyKeyword) != "Nguyễn" {
		t.Error("expected keyword filter")
	}
}

func TestSetFilters_OneFetch(t *testing.T) {
	be := &fakeBackend{total: 5}
	v := New(be.fetch, pagination.NewQuery(10))

	v.SetFilters(context.Background(), map[string]string{
		pagination.KeyFromDate: "2026-10-01",
		pagination.KeyToDate:   "2026-10-15",
	})
	if len(be.queries) != 1 {
		t.Fatalf("expected 1 fetch, got %d", len(be.queries))
	}
	if be.queries[0].Filter(pagination.KeyFromDate) != "2026-10-01" {
		t.Error("expected fromDate")
	}
}

func TestFilterChangeReturnsToFirstPage(t *testing.T) {
	be := &fakeBackend{total: 57}
	v := New(be.fetch, pagination.NewQuery(20))
	ctx := context.Background()

	v.Load(ctx)
	v.Next(ctx)
	if v.State().Page != 1 {
		t.Fatalf("expected page 1, got %d", v.State().Page)
	}
	v.QuickFilter(ctx, "PAID")
	if got := be.queries[len(be.queries)-1].Page; got != 0 {
		t.Errorf("expected filter change to request page 0, got %d", got)
	}
}

func TestNavigationBounds(t *testing.T) {
	be := &fakeBackend{total: 57}
	v := New(be.fetch, pagination.NewQuery(20))
	ctx := context.Background()
	v.Load(ctx)

	if err := v.Previous(ctx); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("expected ErrPageOutOfRange on first page, got %v", err)
	}
	v.Next(ctx)
	v.Next(ctx)
	if v.State().Page != 2 {
		t.Fatalf("expected last page, got %d", v.State().Page)
	}
	fetches := len(be.queries)
	if err := v.Next(ctx); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("expected ErrPageOutOfRange on last page, got %v", err)
	}
	if err := v.GoTo(ctx, 3); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("expected ErrPageOutOfRange for page 3, got %v", err)
	}
	if len(be.queries) != fetches {
		t.Error("out-of-range navigation must not fetch")
	}
	for _, q := range be.queries {
		if q.Page >= 3 {
			t.Errorf("requested page %d >= totalPages", q.Page)
		}
	}

	if err := v.GoTo(ctx, 0); err != nil {
		t.Errorf("GoTo(0): %v", err)
	}
}

func TestLoad_ErrorKeepsItems(t *testing.T) {
	be := &fakeBackend{total: 3}
	v := New(be.fetch, pagination.NewQuery(10))
	ctx := context.Background()
	v.Load(ctx)

	be.fail = errors.New("HTTP error! status: 503")
	if err := v.Load(ctx); err == nil {
		t.Fatal("expected error")
	}
	s := v.State()
	if s.Err == nil || len(s.Items) != 3 {
		t.Errorf("expected error set and items kept, got %+v", s)
	}
	if len(be.queries) != 2 {
		t.Errorf("no automatic retry expected, got %d fetches", len(be.queries))
	}

	be.fail = nil
	if err := v.Retry(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if v.State().Err != nil {
		t.Error("expected error cleared after successful retry")
	}
}

func TestLoad_Idempotent(t *testing.T) {
	be := &fakeBackend{total: 12}
	v := New(be.fetch, pagination.NewQuery(5))
	ctx := context.Background()

	v.Load(ctx)
	first := v.State()
	v.Load(ctx)
	second := v.State()

	if len(first.Items) != len(second.Items) {
		t.Fatal("re-fetch changed item count")
	}
	for i := range first.Items {
		if first.Items[i] != second.Items[i] {
			t.Errorf("item %d differs after re-fetch", i)
		}
	}
}

func TestResetFilters(t *testing.T) {
	be := &fakeBackend{total: 3}
	v := New(be.fetch, pagination.NewQuery(10))
	ctx := context.Background()
	v.SetFilter(ctx, pagination.KeyType, "CYCLE_COUNT")
	v.ResetFilters(ctx)

	if n := len(be.queries[len(be.queries)-1].Filters); n != 0 {
		t.Errorf("expected no filters after reset, got %d", n)
	}
}

func TestSetSort(t *testing.T) {
	be := &fakeBackend{total: 3}
	v := New(be.fetch, pagination.NewQuery(10))
	v.SetSort(context.Background(), "createdAt,desc")
	if be.queries[0].Sort != "createdAt,desc" {
		t.Errorf("expected sort param, got %q", be.queries[0].Sort)
	}
}
