// Package listing implements the list/search screen shared by every portal
// page: one query, one fetch, the returned page mirrored verbatim.
package listing

import (
	"context"
	"errors"
	"sync"

	"github.com/hospital/staffportal/pkg/pagination"
)

// ErrPageOutOfRange is returned by navigation that would leave
// [0, totalPages-1]. No request is made.
var ErrPageOutOfRange = errors.New("page out of range")

// Fetcher loads one page for a query.
type Fetcher[T any] func(ctx context.Context, q pagination.Query) (*pagination.Page[T], error)

// State is a snapshot of a View.
type State[T any] struct {
	Items         []T
	Page          int
	TotalPages    int
	TotalElements int
	Query         pagination.Query
	Err           error
	Loading       bool
}

// HasPrevious mirrors the "Trước" button: disabled on page 0.
func (s State[T]) HasPrevious() bool {
	return s.Page > 0
}

// HasNext mirrors the "Sau" button: disabled on the last page.
func (s State[T]) HasNext() bool {
	return s.Page < s.TotalPages-1
}

// Label renders the page indicator.
func (s State[T]) Label() string {
	return pagination.Label(s.Page, s.TotalPages)
}

// View holds one list screen's state. Concurrent loads are not serialized;
// whichever response lands last is what the view shows.
type View[T any] struct {
	fetch Fetcher[T]

	mu    sync.Mutex
	state State[T]
}

func New[T any](fetch Fetcher[T], initial pagination.Query) *View[T] {
	if initial.Filters == nil {
		initial.Filters = map[string]string{}
	}
	return &View[T]{fetch: fetch, state: State[T]{Query: initial}}
}

// State returns a snapshot.
func (v *View[T]) State() State[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	s.Items = append([]T(nil), v.state.Items...)
	return s
}

// Query returns the current query.
func (v *View[T]) Query() pagination.Query {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Query
}

// Load fetches the current query.
func (v *View[T]) Load(ctx context.Context) error {
	return v.load(ctx, v.Query())
}

// Retry re-issues the last query once. It is the explicit counterpart of the
// retry button; nothing retries automatically.
func (v *View[T]) Retry(ctx context.Context) error {
	return v.Load(ctx)
}

func (v *View[T]) load(ctx context.Context, q pagination.Query) error {
	v.mu.Lock()
	v.state.Query = q
	v.state.Loading = true
	v.mu.Unlock()

	page, err := v.fetch(ctx, q)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Loading = false
	if err != nil {
		v.state.Err = err
		return err
	}
	v.state.Err = nil
	v.state.Items = page.Content
	if v.state.Items == nil {
		v.state.Items = []T{}
	}
	v.state.Page = page.Number
	v.state.TotalPages = page.TotalPages
	v.state.TotalElements = page.TotalElements
	return nil
}

// SetFilter merges one filter into the query, returns to the first page and
// fetches once. An empty value removes the filter.
func (v *View[T]) SetFilter(ctx context.Context, key, value string) error {
	return v.SetFilters(ctx, map[string]string{key: value})
}

// SetFilters merges several filters at once with a single fetch.
func (v *View[T]) SetFilters(ctx context.Context, updates map[string]string) error {
	q := v.Query().Merge(updates).WithPage(0)
	return v.load(ctx, q)
}

// Search sets the free-text keyword.
func (v *View[T]) Search(ctx context.Context, keyword string) error {
	return v.SetFilter(ctx, pagination.KeyKeyword, keyword)
}

// QuickFilter is the tab shortcut: it sets the status filter only.
func (v *View[T]) QuickFilter(ctx context.Context, status string) error {
	return v.SetFilter(ctx, pagination.KeyStatus, status)
}

// SetSort changes the sort order and fetches the first page.
func (v *View[T]) SetSort(ctx context.Context, sort string) error {
	q := v.Query().WithPage(0)
	q.Sort = sort
	return v.load(ctx, q)
}

// ResetFilters drops every filter and fetches the first page.
func (v *View[T]) ResetFilters(ctx context.Context) error {
	q := v.Query().WithPage(0)
	q.Filters = map[string]string{}
	return v.load(ctx, q)
}

// Next fetches the following page, unless already on the last one.
func (v *View[T]) Next(ctx context.Context) error {
	s := v.State()
	if !s.HasNext() {
		return ErrPageOutOfRange
	}
	return v.load(ctx, s.Query.WithPage(s.Page+1))
}

// Previous fetches the preceding page, unless on page 0.
func (v *View[T]) Previous(ctx context.Context) error {
	s := v.State()
	if !s.HasPrevious() {
		return ErrPageOutOfRange
	}
	return v.load(ctx, s.Query.WithPage(s.Page-1))
}

// GoTo fetches a specific zero-based page within bounds.
func (v *View[T]) GoTo(ctx context.Context, page int) error {
	s := v.State()
	last := s.TotalPages - 1
	if last < 0 {
		last = 0
	}
	if page < 0 || page > last {
		return ErrPageOutOfRange
	}
	return v.load(ctx, s.Query.WithPage(page))
}
