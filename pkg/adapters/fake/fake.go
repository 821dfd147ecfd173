// Package fake implements an offline adapter producing deterministic
// synthetic results with gofakeit. The same terms always yield the same
// corpus, so paging and caching behave as against a real provider.
package fake

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/cespare/xxhash/v2"
)

// Name is the registry name of the adapter.
const Name = "fake"

const (
	// DefaultPageSize is the largest page one call returns.
	DefaultPageSize = 50

	// DefaultTotal is the corpus size per query.
	DefaultTotal = 1000
)

// Adapter serves a synthetic corpus of Total results per query.
type Adapter struct {
	pageSize int
	total    int
}

// New implements search.AdapterConstructor. Params: page_size, total.
func New(params search.Params) (search.Adapter, error) {
	a := &Adapter{
		pageSize: params.Int("page_size", DefaultPageSize),
		total:    params.Int("total", DefaultTotal),
	}
	if a.pageSize < 0 {
		return nil, search.NewParamError("Fake", "page_size must be >= 0 (got %d)", a.pageSize)
	}
	if a.total < 0 {
		return nil, search.NewParamError("Fake", "total must be >= 0 (got %d)", a.total)
	}
	return a, nil
}

// PageSize implements search.Adapter.
func (a *Adapter) PageSize() int { return a.pageSize }

// Search implements search.Adapter.
func (a *Adapter) Search(ctx context.Context, q *search.Query) (*search.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	top := q.Top
	if a.pageSize > 0 && top > a.pageSize {
		top = a.pageSize
	}
	end := q.Skip + top

	resp := search.NewResponse(q.Terms, q)
	if end >= a.total {
		end = a.total
		resp.NoMoreResults = true
	}

	seed := xxhash.Sum64String(strings.ToLower(q.Terms) + "\x00" + q.ResultType)
	for i := q.Skip; i < end; i++ {
		faker := gofakeit.New(int64(seed + uint64(i)))
		title := strings.TrimSuffix(faker.Sentence(4), ".")
		opts := []search.ResultOption{
			search.WithRank(i - q.Skip + 1),
			search.WithExtra("author", search.String(faker.Name())),
		}
		if q.ResultType == "image" {
			opts = append(opts, search.WithImageURL(faker.ImageURL(640, 480)))
		}
		resp.Add(
			fmt.Sprintf("%s %s", q.Terms, title),
			faker.URL(),
			faker.Sentence(12),
			opts...,
		)
	}

	resp.ResultsOnPage = resp.ResultTotal
	if a.pageSize > 0 {
		resp.ActualPage = q.Skip/a.pageSize + 1
		resp.TotalPages = (a.total + a.pageSize - 1) / a.pageSize
	}
	return resp, nil
}
