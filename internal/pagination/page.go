// Package pagination builds offset-paginated responses with the
// meta/links envelope the API returns for list endpoints.
package pagination

import (
	"math"
	"net/url"
	"strconv"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Meta describes where a page sits in the full result set. From and To
// are 1-based item positions and are nil for an empty page.
type Meta struct {
	CurrentPage int  `json:"current_page"`
	LastPage    int  `json:"last_page"`
	PerPage     int  `json:"per_page"`
	Total       int  `json:"total"`
	From        *int `json:"from"`
	To          *int `json:"to"`
}

// Links holds navigation URLs. Prev and Next are nil at the edges.
type Links struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

// Page is one page of T plus its metadata and links.
type Page[T any] struct {
	Data  []T   `json:"data"`
	Meta  Meta  `json:"meta"`
	Links Links `json:"links"`
}

// Request is a normalised page request.
type Request struct {
	PerPage int
	Page    int
}

// NewRequest clamps perPage to 1..MaxPerPage (DefaultPerPage when
// unset) and page to 1..math.MaxInt/perPage so Offset cannot overflow.
func NewRequest(perPage, page int) Request {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	return Request{PerPage: perPage, Page: page}
}

// Limit is the SQL LIMIT for the request.
func (r Request) Limit() int { return r.PerPage }

// Offset is the SQL OFFSET for the request.
func (r Request) Offset() int { return (r.Page - 1) * r.PerPage }

// New assembles a page from the items fetched for req and the total
// row count. Links are built against base.
func New[T any](items []T, total int, req Request, base string) *Page[T] {
	if items == nil {
		items = []T{}
	}
	last := 1
	if total > 0 {
		last = (total + req.PerPage - 1) / req.PerPage
	}
	p := &Page[T]{
		Data: items,
		Meta: Meta{
			CurrentPage: req.Page,
			LastPage:    last,
			PerPage:     req.PerPage,
			Total:       total,
		},
	}
	if len(items) > 0 {
		from := req.Offset() + 1
		to := req.Offset() + len(items)
		p.Meta.From, p.Meta.To = &from, &to
	}
	p.SetLinks(base)
	return p
}

// SetLinks rebuilds the navigation links against base, which may be a
// path or an absolute URL. Existing query parameters on base other
// than page and per_page are kept.
func (p *Page[T]) SetLinks(base string) {
	m := p.Meta
	p.Links = Links{
		First: pageURL(base, 1, m.PerPage),
		Last:  pageURL(base, m.LastPage, m.PerPage),
	}
	if m.CurrentPage > 1 {
		prev := pageURL(base, min(m.CurrentPage-1, m.LastPage), m.PerPage)
		p.Links.Prev = &prev
	}
	if m.CurrentPage < m.LastPage {
		next := pageURL(base, m.CurrentPage+1, m.PerPage)
		p.Links.Next = &next
	}
}

func pageURL(base string, page, perPage int) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()
	return u.String()
}
