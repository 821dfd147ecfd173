package search

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
)

// Result is one normalized search hit.
type Result struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Summary  string `json:"summary"`
	ImageURL string `json:"image_url,omitempty"`
	// Rank is 1-based; zero or negative means unranked.
	Rank  int    `json:"rank"`
	Extra Params `json:"extra,omitempty"`
}

// ResultOption sets optional Result fields in Response.Add.
type ResultOption func(*Result)

// WithImageURL sets the result image URL.
func WithImageURL(u string) ResultOption { return func(r *Result) { r.ImageURL = u } }

// WithRank sets the 1-based result rank.
func WithRank(rank int) ResultOption { return func(r *Result) { r.Rank = rank } }

// WithExtra sets a provider-specific field on the result.
func WithExtra(key string, v Value) ResultOption {
	return func(r *Result) {
		if r.Extra == nil {
			r.Extra = Params{}
		}
		r.Extra[key] = v
	}
}

// Ranked reports whether the result carries a rank.
func (r Result) Ranked() bool {
	return r.Rank > 0
}

// Equal compares every field.
func (r Result) Equal(o Result) bool {
	return r.Title == o.Title &&
		r.URL == o.URL &&
		r.Summary == o.Summary &&
		r.ImageURL == o.ImageURL &&
		r.Rank == o.Rank &&
		r.Extra.Equal(o.Extra)
}

// String renders the result one field per line.
func (r Result) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "title: %s\nurl: %s\nsummary: %s\nrank: %d", r.Title, r.URL, r.Summary, r.Rank)
	if r.ImageURL != "" {
		fmt.Fprintf(&sb, "\nimage_url: %s", r.ImageURL)
	}
	for _, k := range r.Extra.Keys() {
		fmt.Fprintf(&sb, "\n%s: %s", k, r.Extra[k])
	}
	return sb.String()
}

// Response is one provider's answer to a Query. Results are held in rank
// order and ResultTotal always equals len(Results).
type Response struct {
	QueryTerms  string   `json:"query_terms"`
	Query       *Query   `json:"query,omitempty"`
	Results     []Result `json:"results"`
	ResultTotal int      `json:"result_total"`

	TotalPages    int    `json:"total_pages"`
	ResultsOnPage int    `json:"results_on_page"`
	ActualPage    int    `json:"actual_page"`
	NextPageToken string `json:"next_page_token,omitempty"`
	// NoMoreResults is set by the adapter when the backend has nothing
	// beyond this page.
	NoMoreResults bool `json:"no_more_results"`
}

// NewResponse returns an empty response for q. q may be nil.
func NewResponse(terms string, q *Query) *Response {
	return &Response{QueryTerms: terms, Query: q, Results: []Result{}}
}

// AddResult appends a result.
func (r *Response) AddResult(res Result) {
	r.Results = append(r.Results, res)
	r.ResultTotal = len(r.Results)
}

// Add appends a result built from its fields. Rank defaults to unranked (-1).
func (r *Response) Add(title, url, summary string, opts ...ResultOption) {
	res := Result{Title: title, URL: url, Summary: summary, Rank: -1}
	for _, opt := range opts {
		opt(&res)
	}
	r.AddResult(res)
}

// Merge appends other's results after r's. Pagination metadata is taken
// from other, the later page.
func (r *Response) Merge(other *Response) {
	if other == nil {
		return
	}
	r.Results = append(r.Results, other.Results...)
	r.ResultTotal += other.ResultTotal
	r.TotalPages = other.TotalPages
	r.ResultsOnPage = other.ResultsOnPage
	r.ActualPage = other.ActualPage
	r.NextPageToken = other.NextPageToken
	r.NoMoreResults = other.NoMoreResults
}

// All iterates results in rank order.
func (r *Response) All() iter.Seq2[int, Result] {
	return func(yield func(int, Result) bool) {
		for i, res := range r.Results {
			if !yield(i, res) {
				return
			}
		}
	}
}

// Len returns the number of results.
func (r *Response) Len() int {
	return r.ResultTotal
}

// Equal compares responses structurally.
func (r *Response) Equal(o *Response) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.QueryTerms != o.QueryTerms ||
		r.ResultTotal != o.ResultTotal ||
		r.TotalPages != o.TotalPages ||
		r.ResultsOnPage != o.ResultsOnPage ||
		r.ActualPage != o.ActualPage ||
		r.NextPageToken != o.NextPageToken ||
		r.NoMoreResults != o.NoMoreResults ||
		!r.Query.Equal(o.Query) ||
		len(r.Results) != len(o.Results) {
		return false
	}
	for i := range r.Results {
		if !r.Results[i].Equal(o.Results[i]) {
			return false
		}
	}
	return true
}

// String renders the response header followed by every result.
func (r *Response) String() string {
	parts := make([]string, len(r.Results))
	for i, res := range r.Results {
		parts[i] = res.String()
	}
	return fmt.Sprintf("Result_total: %d\nQuery_terms: %s\nResults:\n\n%s", r.ResultTotal, r.QueryTerms, strings.Join(parts, "\n\n"))
}

// EncodingVersion tags encoded responses so old cache entries can be told apart.
const EncodingVersion = 1

type responseEnvelope struct {
	Version  int       `json:"v"`
	Response *Response `json:"response"`
}

// Encode serializes the response for storage.
func (r *Response) Encode() ([]byte, error) {
	data, err := json.Marshal(responseEnvelope{Version: EncodingVersion, Response: r})
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// DecodeResponse reverses Encode.
func DecodeResponse(data []byte) (*Response, error) {
	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Version != EncodingVersion {
		return nil, fmt.Errorf("decode response: unsupported version %d", env.Version)
	}
	if env.Response == nil {
		return nil, fmt.Errorf("decode response: empty payload")
	}
	if env.Response.Results == nil {
		env.Response.Results = []Result{}
	}
	env.Response.ResultTotal = len(env.Response.Results)
	return env.Response, nil
}
