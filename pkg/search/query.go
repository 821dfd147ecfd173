package search

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Punctuation is the rune set removed from query terms.
const Punctuation = "!\"#$%&'()*+,-/;<=>?@[\\]^_`{|}~"

// FingerprintVersion prefixes every fingerprint. Bump it whenever the
// canonical encoding changes so stale cache entries stop matching.
const FingerprintVersion = "v1"

// DefaultTop is the number of results requested when none is given.
const DefaultTop = 10

// Query describes one search request. Treat it as immutable once built;
// use WithSkip/WithTop to derive variants.
type Query struct {
	// Terms are the sanitized query terms. Empty means the query has no terms.
	Terms      string `json:"terms"`
	Top        int    `json:"top"`
	Skip       int    `json:"skip"`
	ResultType string `json:"result_type,omitempty"`
	Lang       string `json:"lang,omitempty"`
	Params     Params `json:"params,omitempty"`
}

// QueryOption configures NewQuery.
type QueryOption func(*queryBuilder)

type queryBuilder struct {
	q               Query
	keepPunctuation bool
}

// WithTop sets the number of results requested.
func WithTop(n int) QueryOption { return func(b *queryBuilder) { b.q.Top = n } }

// WithSkip sets the number of leading results to skip.
func WithSkip(n int) QueryOption { return func(b *queryBuilder) { b.q.Skip = n } }

// WithLang sets the result language.
func WithLang(lang string) QueryOption { return func(b *queryBuilder) { b.q.Lang = lang } }

// WithResultType sets the provider-specific result type, normalized to lower case.
func WithResultType(t string) QueryOption { return func(b *queryBuilder) { b.q.ResultType = t } }

// KeepPunctuation disables punctuation stripping of the terms.
func KeepPunctuation() QueryOption { return func(b *queryBuilder) { b.keepPunctuation = true } }

// WithParam sets one extension parameter.
func WithParam(key string, v Value) QueryOption {
	return func(b *queryBuilder) {
		if b.q.Params == nil {
			b.q.Params = Params{}
		}
		b.q.Params[key] = v
	}
}

// WithParams merges extension parameters.
func WithParams(p Params) QueryOption {
	return func(b *queryBuilder) {
		for k, v := range p {
			WithParam(k, v)(b)
		}
	}
}

// NewQuery builds a Query, sanitizing the terms. Terms that are empty or
// whitespace after sanitizing leave the query without terms; Engine.Search
// rejects such queries.
func NewQuery(terms string, opts ...QueryOption) (*Query, error) {
	b := &queryBuilder{q: Query{Top: DefaultTop}}
	for _, opt := range opts {
		opt(b)
	}
	if b.q.Top < 0 {
		return nil, NewParamError("Query", "top must be >= 0 (got %d)", b.q.Top)
	}
	if b.q.Skip < 0 {
		return nil, NewParamError("Query", "skip must be >= 0 (got %d)", b.q.Skip)
	}
	b.q.Terms = SanitizeTerms(terms, !b.keepPunctuation)
	b.q.ResultType = strings.ToLower(strings.TrimSpace(b.q.ResultType))
	b.q.Lang = strings.TrimSpace(b.q.Lang)
	q := b.q
	return &q, nil
}

// SanitizeTerms strips punctuation (when requested) and trailing
// whitespace. Whitespace-only input yields "".
func SanitizeTerms(terms string, stripPunctuation bool) string {
	if stripPunctuation {
		terms = strings.Map(func(r rune) rune {
			if strings.ContainsRune(Punctuation, r) {
				return -1
			}
			return r
		}, terms)
	}
	terms = strings.TrimRight(terms, " \t\r\n\v\f")
	if strings.TrimSpace(terms) == "" {
		return ""
	}
	return terms
}

// HasTerms reports whether the query carries searchable terms.
func (q *Query) HasTerms() bool {
	return q != nil && q.Terms != ""
}

// Validate checks the query is well formed for a search.
func (q *Query) Validate() error {
	if q == nil {
		return NewParamError("Query", "query is nil")
	}
	if !q.HasTerms() {
		return NewParamError("Query", "query has no terms")
	}
	if q.Top < 0 || q.Skip < 0 {
		return NewParamError("Query", "top and skip must be >= 0")
	}
	return nil
}

// Clone returns a copy that shares no maps with q.
func (q *Query) Clone() *Query {
	c := *q
	c.Params = q.Params.Clone()
	return &c
}

// WithSkip returns a copy with Skip replaced.
func (q *Query) WithSkip(n int) *Query {
	c := q.Clone()
	c.Skip = n
	return c
}

// WithTop returns a copy with Top replaced.
func (q *Query) WithTop(n int) *Query {
	c := q.Clone()
	c.Top = n
	return c
}

// Fingerprint returns a stable content hash of every field. Fields are
// written in name order, extension parameters as "x.<key>" after the fixed
// fields, so map iteration order never leaks into the result.
func (q *Query) Fingerprint() string {
	d := xxhash.New()
	q.writeCanonical(d)
	sum := d.Sum(nil)
	return FingerprintVersion + "-" + hex.EncodeToString(sum)
}

func (q *Query) writeCanonical(w io.Writer) {
	field := func(name string, v Value) {
		io.WriteString(w, strconv.Itoa(len(name))+":"+name+"=")
		v.writeCanonical(w)
		io.WriteString(w, "\n")
	}
	field("lang", String(q.Lang))
	field("result_type", String(q.ResultType))
	field("skip", Int(int64(q.Skip)))
	if q.HasTerms() {
		field("terms", String(q.Terms))
	} else {
		field("terms", Value{})
	}
	field("top", Int(int64(q.Top)))
	for _, k := range q.Params.Keys() {
		field("x."+k, q.Params[k])
	}
}

// Equal reports whether both queries have identical content.
func (q *Query) Equal(o *Query) bool {
	if q == nil || o == nil {
		return q == o
	}
	return q.Terms == o.Terms &&
		q.Top == o.Top &&
		q.Skip == o.Skip &&
		q.ResultType == o.ResultType &&
		q.Lang == o.Lang &&
		q.Params.Equal(o.Params)
}

// String lists the query fields one per line.
func (q *Query) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Terms: %s\nTop: %d\nSkip: %d\nLang: %s\nResult_Type: %s", q.Terms, q.Top, q.Skip, q.Lang, q.ResultType)
	for _, k := range q.Params.Keys() {
		fmt.Fprintf(&sb, "\n%s: %s", k, q.Params[k])
	}
	return sb.String()
}
