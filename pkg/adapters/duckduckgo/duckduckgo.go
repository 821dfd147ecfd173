// Package duckduckgo implements an adapter that scrapes the DuckDuckGo HTML
// results page.
package duckduckgo

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/search-client/pkg/httpclient"
	"github.com/Sternrassler/search-client/pkg/search"
)

// Name is the registry name of the adapter.
const Name = "duckduckgo"

const source = "DuckDuckGo"

const (
	// DefaultEndpoint is the JavaScript-free results page.
	DefaultEndpoint = "https://html.duckduckgo.com/html/"

	// PageSize is the number of organic results per HTML page.
	PageSize = 30
)

// Adapter queries DuckDuckGo.
type Adapter struct {
	client   *httpclient.Client
	endpoint string
}

// New implements search.AdapterConstructor. DuckDuckGo needs no credentials.
func New(params search.Params) (search.Adapter, error) {
	client, err := httpclient.New(httpclient.ConfigFromParams(source, params))
	if err != nil {
		return nil, search.NewParamError(source, "%v", err)
	}
	endpoint := params.String("endpoint")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Adapter{client: client, endpoint: endpoint}, nil
}

// PageSize implements search.Adapter.
func (a *Adapter) PageSize() int { return PageSize }

// Search implements search.Adapter. The page starting at q.Skip is fetched
// and cut to q.Top results.
func (a *Adapter) Search(ctx context.Context, q *search.Query) (*search.Response, error) {
	if q.Top <= 0 {
		return nil, search.NewParamError(source, "Total result amount (query.top) not specified")
	}

	params := url.Values{"q": {q.Terms}}
	if q.Skip > 0 {
		params.Set("s", strconv.Itoa(q.Skip))
		params.Set("dc", strconv.Itoa(q.Skip+1))
	}
	if region := q.Params.String("region"); region != "" {
		params.Set("kl", region)
	}

	doc, err := a.client.GetDocument(ctx, a.endpoint, params, nil)
	if err != nil {
		return nil, err
	}
	return parseResults(q, doc), nil
}

func parseResults(q *search.Query, doc *goquery.Document) *search.Response {
	resp := search.NewResponse(q.Terms, q)

	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if resp.ResultTotal >= q.Top {
			return false
		}
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		resp.Add(
			strings.TrimSpace(link.Text()),
			resolveLink(href),
			strings.TrimSpace(s.Find(".result__snippet").First().Text()),
			search.WithRank(resp.ResultTotal+1),
		)
		return true
	})

	resp.ResultsOnPage = resp.ResultTotal
	resp.ActualPage = q.Skip/PageSize + 1
	resp.NoMoreResults = resp.ResultTotal == 0 || !hasNextPage(doc)
	return resp
}

// hasNextPage looks for the "Next" form at the bottom of the page.
func hasNextPage(doc *goquery.Document) bool {
	return doc.Find(`div.nav-link form input[type="submit"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("value")
		return strings.EqualFold(strings.TrimSpace(v), "next")
	}).Length() > 0
}

// resolveLink unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...).
func resolveLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasPrefix(u.Path, "/l/") {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
