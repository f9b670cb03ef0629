// Package query contains the read side of the ledger. Reads run outside
// transactions against the store's root repositories.
package query

import (
	"context"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/logger"
)

// Page is the pagination envelope every list query returns.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasNext    bool `json:"hasNext"`
	NextOffset *int `json:"next_offset"`
}

// NewPage wraps one page of items. NextOffset is nil on the last page.
func NewPage[T any](items []T, total int, req shared.PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	p := Page[T]{
		Items:  items,
		Total:  total,
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if next := req.Offset + len(items); next < total {
		p.HasNext = true
		p.NextOffset = &next
	}
	return p
}

// OutlineCache keeps assembled course outlines. A miss is (nil, false, nil).
type OutlineCache interface {
	GetOutline(ctx context.Context, courseID string) (*catalog.Outline, bool, error)
	SetOutline(ctx context.Context, outline *catalog.Outline) error
}

// Flags answers feature-flag questions.
type Flags interface {
	IsEnabled(name string) bool
}

const flagOutlineCache = "catalog.outline_cache"

// Deps are the collaborators of Reader.
type Deps struct {
	Store    store.Store
	Outlines OutlineCache
	Flags    Flags
	Logger   *logger.Logger
}

// Reader answers every read query.
type Reader struct {
	repos    store.Repositories
	outlines OutlineCache
	flags    Flags
	log      *logger.Logger
}

// NewReader creates a Reader over the store's root repositories.
func NewReader(deps Deps) *Reader {
	r := &Reader{
		repos:    deps.Store.Repositories(),
		outlines: deps.Outlines,
		flags:    deps.Flags,
		log:      deps.Logger,
	}
	if r.log == nil {
		r.log = logger.Discard()
	}
	return r
}

func (r *Reader) cacheEnabled() bool {
	if r.outlines == nil {
		return false
	}
	return r.flags == nil || r.flags.IsEnabled(flagOutlineCache)
}
