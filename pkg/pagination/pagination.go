package pagination

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// Well-known filter keys shared by every list endpoint.
const (
	KeyKeyword  = "keyword"
	KeyStatus   = "status"
	KeyType     = "type"
	KeyFromDate = "fromDate"
	KeyToDate   = "toDate"
)

// Query holds the parameters of one list request. Page is zero-based.
type Query struct {
	Page    int
	Size    int
	Sort    string
	Filters map[string]string
}

// NewQuery returns a first-page query with the given page size.
func NewQuery(size int) Query {
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return Query{Size: size, Filters: map[string]string{}}
}

// Filter returns the value of a filter, or "" when unset.
func (q Query) Filter(key string) string {
	return q.Filters[key]
}

// Merge returns a copy of q with the given filters overlaid. Existing filters
// not named in updates are kept; an empty value removes the filter.
func (q Query) Merge(updates map[string]string) Query {
	out := q.clone()
	for k, v := range updates {
		if v == "" {
			delete(out.Filters, k)
			continue
		}
		out.Filters[k] = v
	}
	return out
}

// WithPage returns a copy of q pointing at page.
func (q Query) WithPage(page int) Query {
	out := q.clone()
	if page < 0 {
		page = 0
	}
	out.Page = page
	return out
}

func (q Query) clone() Query {
	out := q
	out.Filters = make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		out.Filters[k] = v
	}
	return out
}

// Values renders the query as URL parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	size := q.Size
	if size <= 0 {
		size = DefaultSize
	}
	v.Set("size", strconv.Itoa(size))
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if q.Filters[k] != "" {
			v.Set(k, q.Filters[k])
		}
	}
	return v
}

// Page is the paginated collection payload returned by list endpoints.
type Page[T any] struct {
	Content       []T `json:"content"`
	Number        int `json:"number"`
	Size          int `json:"size"`
	TotalPages    int `json:"totalPages"`
	TotalElements int `json:"totalElements"`
}

// NewPage builds a page of items out of total matches.
func NewPage[T any](items []T, total, page, size int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return &Page[T]{
		Content:       items,
		Number:        page,
		Size:          size,
		TotalPages:    pages,
		TotalElements: total,
	}
}

// HasPrevious returns false on the first page.
func (p *Page[T]) HasPrevious() bool {
	return p.Number > 0
}

// HasNext returns false on the last page, or when there are no pages.
func (p *Page[T]) HasNext() bool {
	return p.Number < p.TotalPages-1
}

// Label renders the page indicator shown under every table.
func (p *Page[T]) Label() string {
	return Label(p.Number, p.TotalPages)
}

// Label renders "Trang <current> / <total>" for a zero-based page.
func Label(page, totalPages int) string {
	if totalPages < 1 {
		totalPages = 1
	}
	return fmt.Sprintf("Trang %d / %d", page+1, totalPages)
}

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page int
	Size int
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 0 {
		page = 0
	}
	// Offset must not overflow.
	if page > math.MaxInt/size {
		page = math.MaxInt / size
	}

	return Params{Page: page, Size: size}
}

// Offset returns the index of the first item on the page.
func (p Params) Offset() int {
	return p.Page * p.Size
}

// Slice returns the window of items selected by p.
func Slice[T any](items []T, p Params) []T {
	if p.Page < 0 || p.Size <= 0 || p.Page > len(items)/p.Size {
		return []T{}
	}
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
