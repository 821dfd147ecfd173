package dummy

import (
	"context"
	"testing"

	"github.com/Sternrassler/search-client/pkg/search"
)

func TestSearch(t *testing.T) {
	tests := []struct {
		terms     string
		wantFirst string
		wantLast  string
	}{
		{terms: "one", wantFirst: "one", wantLast: "ten"},
		{terms: "seven", wantFirst: "one", wantLast: "ten"},
		{terms: "hello", wantFirst: "rand", wantLast: "rand"},
		{terms: "one two", wantFirst: "rand", wantLast: "rand"},
	}

	adapter, err := New(nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.terms, func(t *testing.T) {
			q, err := search.NewQuery(tt.terms)
			if err != nil {
				t.Fatalf("NewQuery() error = %v", err)
			}
			resp, err := adapter.Search(context.Background(), q)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if resp.ResultTotal != 10 {
				t.Fatalf("ResultTotal = %d, want 10", resp.ResultTotal)
			}
			first, last := resp.Results[0], resp.Results[9]
			if first.Title != tt.wantFirst || last.Title != tt.wantLast {
				t.Errorf("titles = %q..%q, want %q..%q", first.Title, last.Title, tt.wantFirst, tt.wantLast)
			}
			if first.URL != "www."+tt.wantFirst+".com" {
				t.Errorf("URL = %q", first.URL)
			}
			if first.Rank != 1 || last.Rank != 10 {
				t.Errorf("ranks = %d..%d, want 1..10", first.Rank, last.Rank)
			}
		})
	}
}

func TestSearch_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q, _ := search.NewQuery("one")
	if _, err := (&Adapter{}).Search(ctx, q); err == nil {
		t.Error("expected error for cancelled context")
	}
}
