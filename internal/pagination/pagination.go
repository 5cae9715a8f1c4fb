// Package pagination windows ordered series into fixed-size pages.
package pagination

import (
	"math"

	"github.com/pkg/errors"
)

// ErrInvalidPage is returned for a page number below 1 or a non-positive page size.
var ErrInvalidPage = errors.New("page must be >= 1 and page size must be > 0")

// Page is one fixed-size window over an ordered series
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	TotalItems int `json:"total_items"`
}

// TotalPages is ceil(n/size), never less than 1
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// Bounds returns the offset and limit for a page, for stores that page server side.
// An offset that would overflow is clamped to math.MaxInt, which is past the end
// of any series.
func Bounds(page, size int) (offset, limit int, err error) {
	if page < 1 || size <= 0 {
		return 0, 0, ErrInvalidPage
	}
	if page-1 > math.MaxInt/size {
		return math.MaxInt, size, nil
	}
	return (page - 1) * size, size, nil
}

// Paginate slices series into the requested page. Pages past the end are
// empty, not an error. Items is a copy; the series is never modified.
func Paginate[T any](series []T, page, size int) (Page[T], error) {
	offset, _, err := Bounds(page, size)
	if err != nil {
		return Page[T]{}, err
	}

	items := []T{}
	if offset < len(series) {
		end := len(series)
		if size < end-offset {
			end = offset + size
		}
		items = append(items, series[offset:end]...)
	}

	return Page[T]{
		Items:      items,
		Page:       page,
		PerPage:    size,
		TotalPages: TotalPages(len(series), size),
		TotalItems: len(series),
	}, nil
}

// ChartPage is Paginate with the selected items reversed, so a newest-first
// series yields an oldest-first page for plotting.
func ChartPage[T any](series []T, page, size int) (Page[T], error) {
	p, err := Paginate(series, page, size)
	if err != nil {
		return p, err
	}
	for i, j := 0, len(p.Items)-1; i < j; i, j = i+1, j-1 {
		p.Items[i], p.Items[j] = p.Items[j], p.Items[i]
	}
	return p, nil
}

// FromTotal wraps items already fetched for a page with its page counts
func FromTotal[T any](items []T, total, page, size int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PerPage:    size,
		TotalPages: TotalPages(total, size),
		TotalItems: total,
	}
}
