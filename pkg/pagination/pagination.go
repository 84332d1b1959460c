package pagination

import (
	"net/url"
	"strconv"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds limit/offset pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Offset int
}

// Normalize clamps the limit and floors the offset at zero.
func (p Params) Normalize() Params {
	out := Params{Limit: NormalizeLimit(p.Limit), Offset: p.Offset}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}

// Page is the list envelope returned by paginated endpoints.
type Page[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NewPage assembles a page. When base is set, next/previous links reuse its
// path and query with limit/offset replaced.
func NewPage[T any](results []T, count int64, params Params, base *url.URL) Page[T] {
	params = params.Normalize()
	if results == nil {
		results = []T{}
	}
	page := Page[T]{Count: count, Results: results}
	if base == nil {
		return page
	}
	if int64(params.Offset+params.Limit) < count {
		page.Next = link(base, params.Limit, params.Offset+params.Limit)
	}
	if params.Offset > 0 {
		prev := params.Offset - params.Limit
		if prev < 0 {
			prev = 0
		}
		page.Previous = link(base, params.Limit, prev)
	}
	return page
}

func link(base *url.URL, limit, offset int) *string {
	u := *base
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	} else {
		q.Del("offset")
	}
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}
