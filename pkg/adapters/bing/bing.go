// Package bing implements an adapter for the Bing Web Search API v7,
// covering web, image and video results.
package bing

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/search-client/pkg/httpclient"
	"github.com/Sternrassler/search-client/pkg/search"
)

// Name is the registry name of the adapter.
const Name = "bing"

const source = "Bing"

const (
	// DefaultEndpoint is the API base URL.
	DefaultEndpoint = "https://api.bing.microsoft.com/v7.0"

	// MaxPageSize is the largest count Bing accepts per request.
	MaxPageSize = 50

	// MaxResults is the deepest offset Bing serves.
	MaxResults = 1000

	// DefaultResultType is used when neither the query nor the
	// default_result_type param name one.
	DefaultResultType = "web"
)

// ResultTypes lists the supported result types.
var ResultTypes = []string{"web", "image", "video"}

var resultPaths = map[string]string{
	"web":   "/search",
	"image": "/images/search",
	"video": "/videos/search",
}

// Adapter queries Bing.
type Adapter struct {
	client            *httpclient.Client
	apiKey            string
	endpoint          string
	defaultResultType string
}

// New implements search.AdapterConstructor. The api_key param is required.
func New(params search.Params) (search.Adapter, error) {
	apiKey := params.String("api_key")
	if apiKey == "" {
		return nil, search.NewAuthError(source, "'api_key' param not specified")
	}

	resultType := strings.ToLower(params.String("default_result_type"))
	if resultType == "" {
		resultType = DefaultResultType
	}
	if !slices.Contains(ResultTypes, resultType) {
		return nil, search.NewParamError(source, "Engine doesn't support result type '%s'", resultType)
	}

	client, err := httpclient.New(httpclient.ConfigFromParams(source, params))
	if err != nil {
		return nil, search.NewParamError(source, "%v", err)
	}

	endpoint := params.String("endpoint")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &Adapter{
		client:            client,
		apiKey:            apiKey,
		endpoint:          strings.TrimSuffix(endpoint, "/"),
		defaultResultType: resultType,
	}, nil
}

// PageSize implements search.Adapter.
func (a *Adapter) PageSize() int { return MaxPageSize }

// MaxResults implements search.ResultLimiter.
func (a *Adapter) MaxResults() int { return MaxResults }

func (a *Adapter) resultType(q *search.Query) (string, error) {
	if q.ResultType == "" {
		return a.defaultResultType, nil
	}
	if !slices.Contains(ResultTypes, q.ResultType) {
		return "", search.NewParamError(source, "Engine doesn't support query result type '%s'", q.ResultType)
	}
	return q.ResultType, nil
}

// Search implements search.Adapter. One call returns at most MaxPageSize
// results starting at q.Skip.
func (a *Adapter) Search(ctx context.Context, q *search.Query) (*search.Response, error) {
	if q.Top <= 0 {
		return nil, search.NewParamError(source, "Total result amount (query.top) not specified")
	}
	if q.Top > MaxResults {
		return nil, search.NewParamError(source, "Requested result amount (query.top) exceeds max of %d", MaxResults)
	}
	resultType, err := a.resultType(q)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"q":      {q.Terms},
		"count":  {strconv.Itoa(min(q.Top, MaxPageSize))},
		"offset": {strconv.Itoa(q.Skip)},
	}
	if q.Lang != "" {
		params.Set("setLang", q.Lang)
	}
	if mkt := q.Params.String("market"); mkt != "" {
		params.Set("mkt", mkt)
	}
	headers := map[string]string{"Ocp-Apim-Subscription-Key": a.apiKey}

	resp := search.NewResponse(q.Terms, q)
	endpoint := a.endpoint + resultPaths[resultType]

	var total int
	switch resultType {
	case "image":
		var body imageAnswer
		if err := a.client.GetJSON(ctx, endpoint, params, headers, &body); err != nil {
			return nil, err
		}
		addImages(resp, body)
		total = body.TotalEstimatedMatches
	case "video":
		var body videoAnswer
		if err := a.client.GetJSON(ctx, endpoint, params, headers, &body); err != nil {
			return nil, err
		}
		addVideos(resp, body)
		total = body.TotalEstimatedMatches
	default:
		var body webAnswer
		if err := a.client.GetJSON(ctx, endpoint, params, headers, &body); err != nil {
			return nil, err
		}
		addWebPages(resp, body)
		total = body.WebPages.TotalEstimatedMatches
	}

	resp.ResultsOnPage = resp.ResultTotal
	resp.ActualPage = q.Skip/MaxPageSize + 1
	if total > 0 {
		resp.TotalPages = (min(total, MaxResults) + MaxPageSize - 1) / MaxPageSize
	}
	resp.NoMoreResults = resp.ResultTotal == 0 ||
		(total > 0 && q.Skip+resp.ResultTotal >= total) ||
		q.Skip+resp.ResultTotal >= MaxResults
	return resp, nil
}

type webAnswer struct {
	WebPages struct {
		TotalEstimatedMatches int `json:"totalEstimatedMatches"`
		Value                 []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

type imageAnswer struct {
	TotalEstimatedMatches int `json:"totalEstimatedMatches"`
	Value                 []struct {
		Name         string `json:"name"`
		ContentURL   string `json:"contentUrl"`
		ThumbnailURL string `json:"thumbnailUrl"`
		HostPageURL  string `json:"hostPageUrl"`
		ContentSize  string `json:"contentSize"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
	} `json:"value"`
}

type videoAnswer struct {
	TotalEstimatedMatches int `json:"totalEstimatedMatches"`
	Value                 []struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		ContentURL   string `json:"contentUrl"`
		ThumbnailURL string `json:"thumbnailUrl"`
		Duration     string `json:"duration"`
	} `json:"value"`
}

func addWebPages(resp *search.Response, body webAnswer) {
	for i, page := range body.WebPages.Value {
		resp.Add(page.Name, page.URL, page.Snippet, search.WithRank(i+1))
	}
}

func addImages(resp *search.Response, body imageAnswer) {
	for i, img := range body.Value {
		resp.Add(img.Name, img.HostPageURL, "",
			search.WithRank(i+1),
			search.WithImageURL(img.ThumbnailURL),
			search.WithExtra("media_url", search.String(img.ContentURL)),
			search.WithExtra("file_size", search.String(img.ContentSize)),
			search.WithExtra("width", search.Int(int64(img.Width))),
			search.WithExtra("height", search.Int(int64(img.Height))),
		)
	}
}

// addVideos skips videos without a thumbnail.
func addVideos(resp *search.Response, body videoAnswer) {
	rank := 1
	for _, vid := range body.Value {
		if vid.ThumbnailURL == "" {
			continue
		}
		resp.Add(vid.Name, vid.ContentURL, vid.Description,
			search.WithRank(rank),
			search.WithImageURL(vid.ThumbnailURL),
			search.WithExtra("run_time", search.String(VideoLength(parseISODuration(vid.Duration)))),
		)
		rank++
	}
}

// parseISODuration reads the PT#H#M#S form Bing uses. Anything else is zero.
func parseISODuration(s string) time.Duration {
	rest, ok := strings.CutPrefix(strings.ToUpper(s), "PT")
	if !ok || rest == "" {
		return 0
	}
	d, err := time.ParseDuration(strings.ToLower(rest))
	if err != nil {
		return 0
	}
	return d
}

// VideoLength renders a run time as "<m> mins <s> seconds", omitting a
// zero part. A zero duration renders as "".
func VideoLength(d time.Duration) string {
	minutes := int(d / time.Minute)
	seconds := int(d%time.Minute) / int(time.Second)

	switch {
	case minutes > 0 && seconds > 0:
		return fmt.Sprintf("%d mins %d seconds", minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%d mins", minutes)
	case seconds > 0:
		return fmt.Sprintf("%d seconds", seconds)
	default:
		return ""
	}
}
