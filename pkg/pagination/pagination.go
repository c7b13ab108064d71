package pagination

import (
	"github.com/farmarket/farmarket-backend/pkg/types"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many rows any page query can request.
	MaxLimit = 100
)

// Params holds page/limit pagination inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Normalize enforces sane defaults and caps.
func (p Params) Normalize() Params {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the row offset for the normalized page window.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Meta builds the response page metadata for a total row count.
func (p Params) Meta(totalItems int64) types.PageMeta {
	n := p.Normalize()
	totalPages := int(totalItems / int64(n.Limit))
	if totalItems%int64(n.Limit) != 0 {
		totalPages++
	}
	if totalPages == 0 {
		totalPages = 1
	}
	return types.PageMeta{
		CurrentPage:  n.Page,
		TotalPages:   totalPages,
		TotalItems:   totalItems,
		ItemsPerPage: n.Limit,
	}
}
