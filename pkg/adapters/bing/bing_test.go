package bing

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/search-client/internal/testutil"
	"github.com/Sternrassler/search-client/pkg/search"
)

const webBody = `{
	"webPages": {
		"totalEstimatedMatches": 52,
		"value": [
			{"name": "Crow rearing", "url": "http://etc.com", "snippet": "How to rear crows?"},
			{"name": "Crows", "url": "http://crows.example", "snippet": "All about crows."}
		]
	}
}`

const imageBody = `{
	"totalEstimatedMatches": 2,
	"value": [
		{"name": "Crow", "contentUrl": "http://img.example/crow.jpg", "thumbnailUrl": "http://tn.example/crow.jpg",
		 "hostPageUrl": "http://page.example", "contentSize": "2048 B", "width": 640, "height": 480}
	]
}`

const videoBody = `{
	"totalEstimatedMatches": 2,
	"value": [
		{"name": "Crow video", "contentUrl": "http://vid.example/1", "thumbnailUrl": "http://tn.example/1", "duration": "PT2M30S"},
		{"name": "No thumbnail", "contentUrl": "http://vid.example/2", "duration": "PT10S"}
	]
}`

func newTestAdapter(t *testing.T, mock *testutil.MockProvider, extra search.Params) search.Adapter {
	t.Helper()
	params := search.Params{
		"api_key":  search.String("secret"),
		"endpoint": search.String(mock.URL()),
	}
	for k, v := range extra {
		params[k] = v
	}
	a, err := New(params)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(search.Params{})
	if !errors.Is(err, search.ErrAuth) {
		t.Errorf("New() error = %v, want ErrAuth", err)
	}
}

func TestNew_InvalidDefaultResultType(t *testing.T) {
	_, err := New(search.Params{"api_key": search.String("k"), "default_result_type": search.String("news")})
	if !errors.Is(err, search.ErrParam) {
		t.Errorf("New() error = %v, want ErrParam", err)
	}
}

func TestSearch_Web(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("/search", testutil.NewJSONResponse(webBody))

	a := newTestAdapter(t, mock, nil)
	q, _ := search.NewQuery("crow", search.WithSkip(50), search.WithTop(50), search.WithLang("en"))
	resp, err := a.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if resp.ResultTotal != 2 {
		t.Fatalf("ResultTotal = %d, want 2", resp.ResultTotal)
	}
	first := resp.Results[0]
	if first.Title != "Crow rearing" || first.URL != "http://etc.com" || first.Summary != "How to rear crows?" || first.Rank != 1 {
		t.Errorf("first result = %+v", first)
	}
	if resp.ActualPage != 2 || resp.TotalPages != 2 {
		t.Errorf("page %d of %d, want 2 of 2", resp.ActualPage, resp.TotalPages)
	}
	if !resp.NoMoreResults {
		t.Error("NoMoreResults = false at the end of the estimated matches")
	}

	if key := mock.LastHeader().Get("Ocp-Apim-Subscription-Key"); key != "secret" {
		t.Errorf("subscription key header = %q", key)
	}
	query := mock.LastQuery()
	if query.Get("q") != "crow" || query.Get("count") != "50" || query.Get("offset") != "50" || query.Get("setLang") != "en" {
		t.Errorf("request query = %v", query)
	}
}

func TestSearch_Image(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("/images/search", testutil.NewJSONResponse(imageBody))

	q, _ := search.NewQuery("crow", search.WithResultType("image"))
	resp, err := newTestAdapter(t, mock, nil).Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	img := resp.Results[0]
	if img.ImageURL != "http://tn.example/crow.jpg" || img.URL != "http://page.example" {
		t.Errorf("image result = %+v", img)
	}
	if img.Extra.Int("width", 0) != 640 || img.Extra.String("media_url") != "http://img.example/crow.jpg" {
		t.Errorf("image extras = %v", img.Extra)
	}
}

func TestSearch_VideoDefaultResultType(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("/videos/search", testutil.NewJSONResponse(videoBody))

	a := newTestAdapter(t, mock, search.Params{"default_result_type": search.String("video")})
	q, _ := search.NewQuery("crow")
	resp, err := a.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if resp.ResultTotal != 1 {
		t.Fatalf("ResultTotal = %d, want 1 (videos without thumbnail skipped)", resp.ResultTotal)
	}
	if got := resp.Results[0].Extra.String("run_time"); got != "2 mins 30 seconds" {
		t.Errorf("run_time = %q", got)
	}
}

func TestSearch_QueryErrors(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	a := newTestAdapter(t, mock, nil)

	tests := []struct {
		name string
		opts []search.QueryOption
	}{
		{name: "zero top", opts: []search.QueryOption{search.WithTop(0)}},
		{name: "top over max", opts: []search.QueryOption{search.WithTop(MaxResults + 1)}},
		{name: "unsupported type", opts: []search.QueryOption{search.WithResultType("news")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := search.NewQuery("crow", tt.opts...)
			if _, err := a.Search(context.Background(), q); !errors.Is(err, search.ErrParam) {
				t.Errorf("Search() error = %v, want ErrParam", err)
			}
		})
	}
	if mock.RequestCount() != 0 {
		t.Errorf("requests sent = %d, want 0", mock.RequestCount())
	}
}

func TestSearch_BadKey(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("/search", testutil.NewErrorResponse(http.StatusUnauthorized))

	q, _ := search.NewQuery("crow")
	_, err := newTestAdapter(t, mock, nil).Search(context.Background(), q)
	if err == nil || err.Error() != "Bing - Incorrect API Key (401)" {
		t.Errorf("Search() error = %v", err)
	}
}

func TestVideoLength(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: ""},
		{in: 45 * time.Second, want: "45 seconds"},
		{in: 3 * time.Minute, want: "3 mins"},
		{in: 62*time.Minute + 5*time.Second, want: "62 mins 5 seconds"},
		{in: 1500 * time.Millisecond, want: "1 seconds"},
	}

	for _, tt := range tests {
		if got := VideoLength(tt.in); got != tt.want {
			t.Errorf("VideoLength(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{in: "PT2M30S", want: 150 * time.Second},
		{in: "PT1H", want: time.Hour},
		{in: "", want: 0},
		{in: "P1D", want: 0},
	}

	for _, tt := range tests {
		if got := parseISODuration(tt.in); got != tt.want {
			t.Errorf("parseISODuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
