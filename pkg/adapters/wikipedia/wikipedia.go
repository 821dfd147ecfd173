// Package wikipedia implements an adapter for the MediaWiki opensearch API.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/search-client/pkg/httpclient"
	"github.com/Sternrassler/search-client/pkg/search"
)

// Name is the registry name of the adapter.
const Name = "wikipedia"

const source = "Wikipedia"

// DefaultEndpoint is the English Wikipedia API. Queries with a language set
// go to that language's wiki instead unless an endpoint param is given.
const DefaultEndpoint = "https://en.wikipedia.org/w/api.php"

// Adapter queries Wikipedia. Opensearch has no offset, so the adapter does
// not paginate.
type Adapter struct {
	client   *httpclient.Client
	endpoint string
	fixed    bool
}

// New implements search.AdapterConstructor.
func New(params search.Params) (search.Adapter, error) {
	client, err := httpclient.New(httpclient.ConfigFromParams(source, params))
	if err != nil {
		return nil, search.NewParamError(source, "%v", err)
	}
	a := &Adapter{client: client, endpoint: DefaultEndpoint}
	if ep := params.String("endpoint"); ep != "" {
		a.endpoint = ep
		a.fixed = true
	}
	return a, nil
}

// PageSize implements search.Adapter.
func (a *Adapter) PageSize() int { return 0 }

// Client returns the underlying HTTP client.
func (a *Adapter) Client() *httpclient.Client { return a.client }

func (a *Adapter) endpointFor(q *search.Query) string {
	if a.fixed || q.Lang == "" {
		return a.endpoint
	}
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", url.PathEscape(q.Lang))
}

// Search implements search.Adapter.
func (a *Adapter) Search(ctx context.Context, q *search.Query) (*search.Response, error) {
	if q.Top <= 0 {
		return nil, search.NewParamError(source, "Total result amount (query.top) not specified")
	}

	params := url.Values{
		"action":    {"opensearch"},
		"format":    {"json"},
		"namespace": {"0"},
		"search":    {q.Terms},
		"limit":     {strconv.Itoa(q.Top)},
	}

	var raw []json.RawMessage
	if err := a.client.GetJSON(ctx, a.endpointFor(q), params, nil, &raw); err != nil {
		return nil, err
	}
	return parseOpenSearch(q, raw)
}

// parseOpenSearch reads the [terms, titles, descriptions, urls] array.
func parseOpenSearch(q *search.Query, raw []json.RawMessage) (*search.Response, error) {
	resp := search.NewResponse(q.Terms, q)
	if len(raw) < 4 {
		return nil, search.NewConnectionError(source, 0, "Unexpected opensearch response", nil)
	}

	var titles, summaries, urls []string
	for i, dst := range []*[]string{&titles, &summaries, &urls} {
		if err := json.Unmarshal(raw[i+1], dst); err != nil {
			return nil, search.NewConnectionError(source, 0, "Unexpected opensearch response", err)
		}
	}

	for i, title := range titles {
		var summary, link string
		if i < len(summaries) {
			summary = summaries[i]
		}
		if i < len(urls) {
			link = urls[i]
		}
		resp.Add(title, link, summary, search.WithRank(i+1))
	}

	resp.ResultsOnPage = resp.ResultTotal
	resp.ActualPage = 1
	resp.NoMoreResults = resp.ResultTotal < q.Top
	return resp, nil
}
