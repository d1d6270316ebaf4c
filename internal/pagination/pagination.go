// Package pagination turns a total item count and a requested page into a bounded page window.
package pagination

import (
	"strconv"
	"strings"
)

// Page describes one page of an ordered collection.
type Page struct {
	// Number is 1-based and always within [1, NumPages].
	Number   int
	PerPage  int
	Count    int64
	NumPages int
}

// New resolves the requested page number against total items. A missing or
// non-numeric request yields the first page; out-of-range requests are clamped.
// An empty collection has exactly one (empty) page.
func New(total int64, perPage int, requested string) Page {
	if perPage <= 0 {
		perPage = 1
	}
	if total < 0 {
		total = 0
	}

	numPages := int((total + int64(perPage) - 1) / int64(perPage))
	if numPages < 1 {
		numPages = 1
	}

	number, err := strconv.Atoi(strings.TrimSpace(requested))
	if err != nil || number < 1 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}

	return Page{
		Number:   number,
		PerPage:  perPage,
		Count:    total,
		NumPages: numPages,
	}
}

// Offset is the number of items before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

// Limit is the maximum number of items on this page.
func (p Page) Limit() int {
	return p.PerPage
}

func (p Page) HasPrevious() bool { return p.Number > 1 }

func (p Page) HasNext() bool { return p.Number < p.NumPages }

func (p Page) HasOtherPages() bool { return p.NumPages > 1 }

// PreviousPageNumber returns 0 on the first page.
func (p Page) PreviousPageNumber() int {
	if !p.HasPrevious() {
		return 0
	}
	return p.Number - 1
}

// NextPageNumber returns 0 on the last page.
func (p Page) NextPageNumber() int {
	if !p.HasNext() {
		return 0
	}
	return p.Number + 1
}

// StartIndex is the 1-based index of the first item on the page, or 0 for an empty collection.
func (p Page) StartIndex() int64 {
	if p.Count == 0 {
		return 0
	}
	return int64(p.Offset()) + 1
}

// EndIndex is the 1-based index of the last item on the page.
func (p Page) EndIndex() int64 {
	end := int64(p.Number * p.PerPage)
	if end > p.Count {
		end = p.Count
	}
	return end
}

// PageRange lists every page number, for rendering a paginator.
func (p Page) PageRange() []int {
	pages := make([]int, p.NumPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
