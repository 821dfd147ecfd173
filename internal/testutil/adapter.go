package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/search-client/pkg/clock"
	"github.com/Sternrassler/search-client/pkg/search"
)

// Invocation records one call to StubAdapter.Search.
type Invocation struct {
	Query *search.Query
	At    time.Time
}

// StubAdapter is an in-memory search.Adapter that synthesizes results and
// records every invocation.
type StubAdapter struct {
	// PageLimit is reported by PageSize. Zero disables auto-pagination.
	PageLimit int

	// Limit is reported by MaxResults when non-zero.
	Limit int

	// Total caps the synthetic corpus; zero means unlimited.
	Total int

	// Err, when set, is returned by every call.
	Err error

	// Clock stamps invocations; defaults to the real clock.
	Clock clock.Clock

	mu    sync.Mutex
	calls []Invocation
}

// PageSize implements search.Adapter.
func (a *StubAdapter) PageSize() int { return a.PageLimit }

// MaxResults implements search.ResultLimiter.
func (a *StubAdapter) MaxResults() int { return a.Limit }

// Search returns q.Top results starting at q.Skip, titled "<terms> #<n>".
func (a *StubAdapter) Search(ctx context.Context, q *search.Query) (*search.Response, error) {
	a.mu.Lock()
	a.calls = append(a.calls, Invocation{Query: q.Clone(), At: clock.Or(a.Clock).Now()})
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.Err != nil {
		return nil, a.Err
	}

	resp := search.NewResponse(q.Terms, q)
	end := q.Skip + q.Top
	if a.Total > 0 && end >= a.Total {
		end = a.Total
		resp.NoMoreResults = true
	}
	for i := q.Skip; i < end; i++ {
		resp.Add(
			fmt.Sprintf("%s #%d", q.Terms, i+1),
			fmt.Sprintf("https://stub.example/%d", i+1),
			"synthetic result",
			search.WithRank(i-q.Skip+1),
		)
	}
	resp.ResultsOnPage = resp.ResultTotal
	if a.PageLimit > 0 {
		resp.ActualPage = q.Skip/a.PageLimit + 1
	}
	return resp, nil
}

// Calls returns the number of invocations so far.
func (a *StubAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

// Invocations returns a copy of the invocation log.
func (a *StubAdapter) Invocations() []Invocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Invocation(nil), a.calls...)
}
