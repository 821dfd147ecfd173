// Package dummy implements an adapter that never touches the network. It
// serves fixed results for testing the layers above adapters.
package dummy

import (
	"context"
	"slices"

	"github.com/Sternrassler/search-client/pkg/search"
)

// Name is the registry name of the adapter.
const Name = "dummy"

var numbers = []string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten"}

// Adapter answers every query with ten results. When the terms are one of
// the words "one" to "ten" the results are titled "one".."ten", otherwise
// they are all titled "rand".
type Adapter struct{}

// New implements search.AdapterConstructor. Params are ignored.
func New(search.Params) (search.Adapter, error) {
	return &Adapter{}, nil
}

// PageSize implements search.Adapter; the dummy adapter never paginates.
func (a *Adapter) PageSize() int { return 0 }

// Search implements search.Adapter.
func (a *Adapter) Search(ctx context.Context, q *search.Query) (*search.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	titles := slices.Repeat([]string{"rand"}, len(numbers))
	if slices.Contains(numbers, q.Terms) {
		titles = numbers
	}

	resp := search.NewResponse(q.Terms, q)
	for i, title := range titles {
		resp.Add(title, "www."+title+".com", title+"  "+title, search.WithRank(i+1))
	}
	resp.ResultsOnPage = resp.ResultTotal
	resp.ActualPage = 1
	resp.TotalPages = 1
	resp.NoMoreResults = true
	return resp, nil
}
