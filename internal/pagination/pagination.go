// Package pagination turns a 1-based page number into LIMIT/OFFSET values and
// describes the resulting page for templates.
//
// OFFSET pagination is fine at blog scale: a user with a few hundred posts
// costs SQLite nothing to skip through.
package pagination

import (
	"strconv"
	"strings"
)

// DefaultPerPage is the number of posts shown on every listing page.
const DefaultPerPage = 5

// ParsePage reads a ?page= value. Missing, non-numeric, zero or negative
// input all fall back to page 1; a bad query string never fails the request.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Params selects one page of a result set.
type Params struct {
	Page    int // 1-based
	PerPage int
}

// Normalize clamps Page to >= 1 and falls back to DefaultPerPage.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	return p
}

// Offset is the number of rows to skip: (page-1) * perPage.
func (p Params) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PerPage
}

// Page is one page of items plus the metadata a template needs to render
// "newer / older" links.
type Page[T any] struct {
	Items   []T
	Number  int // current page, 1-based
	PerPage int
	Total   int // items across all pages
}

// New builds a Page from normalized params.
func New[T any](items []T, p Params, total int) Page[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Number: p.Page, PerPage: p.PerPage, Total: total}
}

// TotalPages is ceil(Total / PerPage); zero when there are no items.
func (p Page[T]) TotalPages() int {
	if p.Total <= 0 || p.PerPage <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p Page[T]) HasNext() bool { return p.Number < p.TotalPages() }
func (p Page[T]) HasPrev() bool { return p.Number > 1 }
func (p Page[T]) NextNum() int  { return p.Number + 1 }
func (p Page[T]) PrevNum() int  { return p.Number - 1 }

// OutOfRange reports a page past the end. Page 1 is never out of range, so an
// empty listing still renders.
func (p Page[T]) OutOfRange() bool {
	return p.Number > 1 && p.Number > p.TotalPages()
}

// Numbers lists every page number, for the numbered links under a listing.
func (p Page[T]) Numbers() []int {
	n := p.TotalPages()
	nums := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		nums = append(nums, i)
	}
	return nums
}
