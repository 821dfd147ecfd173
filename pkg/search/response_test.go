package search

import (
	"strings"
	"testing"
)

func newTestResponse(terms string, titles ...string) *Response {
	r := NewResponse(terms, nil)
	for i, title := range titles {
		r.Add(title, "https://"+title+".example", title+" summary", WithRank(i+1))
	}
	return r
}

func TestResponse_AddResult(t *testing.T) {
	r := NewResponse("crow", nil)
	r.Add("Crow rearing", "http://etc.com", "How to rear crows?")
	r.AddResult(Result{Title: "second", Rank: 2})

	if r.ResultTotal != 2 || r.Len() != 2 {
		t.Errorf("ResultTotal = %d, Len() = %d, want 2", r.ResultTotal, r.Len())
	}
	if r.Results[0].Rank != -1 {
		t.Errorf("default rank = %d, want -1", r.Results[0].Rank)
	}
	if r.Results[0].Ranked() {
		t.Error("default result should be unranked")
	}
}

func TestResponse_Merge(t *testing.T) {
	a := newTestResponse("q", "one", "two")
	b := newTestResponse("q", "three")
	b.NoMoreResults = true
	b.ActualPage = 2

	a.Merge(b)

	if a.ResultTotal != 3 || len(a.Results) != 3 {
		t.Fatalf("merged total = %d (%d results), want 3", a.ResultTotal, len(a.Results))
	}
	want := []string{"one", "two", "three"}
	for i, res := range a.All() {
		if res.Title != want[i] {
			t.Errorf("result %d = %q, want %q", i, res.Title, want[i])
		}
	}
	if !a.NoMoreResults || a.ActualPage != 2 {
		t.Error("pagination metadata not taken from merged page")
	}

	a.Merge(nil)
	if a.ResultTotal != 3 {
		t.Error("Merge(nil) changed the response")
	}
}

func TestResponse_All_StopsEarly(t *testing.T) {
	r := newTestResponse("q", "a", "b", "c")
	seen := 0
	for range r.All() {
		seen++
		if seen == 2 {
			break
		}
	}
	if seen != 2 {
		t.Errorf("iterated %d results, want 2", seen)
	}
}

func TestResponse_Equal(t *testing.T) {
	q, _ := NewQuery("q")
	a := newTestResponse("q", "one")
	a.Query = q
	b := newTestResponse("q", "one")
	b.Query = q.Clone()

	if !a.Equal(b) {
		t.Error("identical responses reported unequal")
	}

	b.Results[0].Extra = Params{"lang": String("en")}
	if a.Equal(b) {
		t.Error("responses with different result extras reported equal")
	}

	var nilResp *Response
	if a.Equal(nilResp) {
		t.Error("response equal to nil")
	}
}

func TestResponse_EncodeDecode(t *testing.T) {
	q, _ := NewQuery("cache me", WithTop(3), WithParam("market", String("en-GB")))
	r := NewResponse(q.Terms, q)
	r.Add("title", "https://example.com", "summary",
		WithRank(1),
		WithImageURL("https://example.com/img.png"),
		WithExtra("width", Int(640)),
		WithExtra("ratio", Float(1.5)),
	)
	r.TotalPages = 4
	r.NextPageToken = "next"

	data, err := r.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if !got.Equal(r) {
		t.Errorf("decoded response differs:\n got  %+v\n want %+v", got, r)
	}
}

func TestDecodeResponse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "pickle"},
		{name: "wrong version", data: `{"v":99,"response":{}}`},
		{name: "missing payload", data: `{"v":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeResponse([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeResponse_RederivesTotal(t *testing.T) {
	got, err := DecodeResponse([]byte(`{"v":1,"response":{"query_terms":"x","results":[{"title":"a"}],"result_total":7}}`))
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if got.ResultTotal != 1 {
		t.Errorf("ResultTotal = %d, want 1", got.ResultTotal)
	}
}

func TestResponse_String(t *testing.T) {
	r := newTestResponse("hello", "one")
	s := r.String()
	if !strings.Contains(s, "Result_total: 1") || !strings.Contains(s, "title: one") {
		t.Errorf("String() = %q", s)
	}
}
