// Package source defines the provider adapter contract and the shared
// paginated collection loop.
package source

import (
	"context"

	"content_syncer/internal/domain"
)

// Page is one page of transformed records plus continuation state. All
// pagination state lives in the cursor so a retried page can resume from the
// last consumed position.
type Page struct {
	Items      []domain.ContentRecord
	NextCursor string // empty when this is the last page
	Skipped    int    // malformed provider items dropped during transform
}

// Source is implemented once per provider. FetchPage must be stateless with
// respect to pagination: the empty cursor means the first page, and the same
// cursor always addresses the same page.
type Source interface {
	ID() string
	Name() string
	FetchPage(ctx context.Context, cursor string) (Page, error)
}

// Result accumulates a full collection run over one source.
type Result struct {
	Records []domain.ContentRecord
	Pages   int
	Skipped int
}
