package search

import "context"

// Adapter translates between the uniform Query/Response model and one
// provider's protocol. Search issues exactly one backend request.
type Adapter interface {
	Search(ctx context.Context, q *Query) (*Response, error)

	// PageSize is the most results one Search call can return.
	// Zero disables auto-pagination for the adapter.
	PageSize() int
}

// ResultLimiter is implemented by adapters whose backend caps the total
// number of results reachable through paging.
type ResultLimiter interface {
	MaxResults() int
}

// Searcher is anything that answers queries, an Engine included.
type Searcher interface {
	Search(ctx context.Context, q *Query) (*Response, error)
}

// AdapterConstructor builds an adapter from its backend-specific config.
// Missing credentials are reported as ClassAuth errors.
type AdapterConstructor func(params Params) (Adapter, error)
