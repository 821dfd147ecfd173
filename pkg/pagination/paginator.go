package pagination

import (
	"context"
	"time"

	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "search_pages_fetched_total",
	Help: "Total number of backend pages fetched by the auto-paginator",
}, []string{"engine"})

// Config holds paginator configuration.
type Config struct {
	// Engine labels logs and metrics.
	Engine string

	// PageSize overrides the adapter's page size when > 0.
	PageSize int

	// Logger defaults to the global logger with component=paginator.
	Logger *zerolog.Logger
}

// Paginator stitches backend pages into one response.
type Paginator struct {
	engine   string
	pageSize int
	logger   zerolog.Logger
}

// New creates a paginator.
func New(cfg Config) *Paginator {
	logger := log.With().Str("component", "paginator").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Paginator{
		engine:   cfg.Engine,
		pageSize: cfg.PageSize,
		logger:   logger,
	}
}

// PageSize returns the effective page size for adapter; 0 means the
// adapter does not paginate.
func (p *Paginator) PageSize(adapter search.Adapter) int {
	if p.pageSize > 0 {
		return p.pageSize
	}
	return adapter.PageSize()
}

// Needed reports whether q asks for more results than one page of adapter holds.
func (p *Paginator) Needed(adapter search.Adapter, q *search.Query) bool {
	size := p.PageSize(adapter)
	return size > 0 && q.Top > size
}

// Fetch returns up to q.Top results for q. When q.Top fits in one page it
// is a single adapter call. q is never modified.
func (p *Paginator) Fetch(ctx context.Context, adapter search.Adapter, q *search.Query) (*search.Response, error) {
	if !p.Needed(adapter, q) {
		pagesFetchedTotal.WithLabelValues(p.engine).Inc()
		return adapter.Search(ctx, q)
	}

	start := time.Now()
	size := p.PageSize(adapter)
	want := q.Top
	page := q.WithTop(min(want, size))

	var merged *search.Response
	pages := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := adapter.Search(ctx, page)
		if err != nil {
			p.logger.Warn().
				Err(err).
				Str("engine", p.engine).
				Int("skip", page.Skip).
				Int("pages_fetched", pages).
				Msg("Page fetch failed")
			return nil, err
		}
		pages++
		pagesFetchedTotal.WithLabelValues(p.engine).Inc()

		if merged == nil {
			merged = resp
		} else {
			merged.Merge(resp)
		}

		remaining := want - merged.ResultTotal
		p.logger.Debug().
			Str("engine", p.engine).
			Int("skip", page.Skip).
			Int("top", page.Top).
			Int("page_results", resp.ResultTotal).
			Int("remaining", remaining).
			Msg("Fetched page")

		if remaining <= 0 || resp.NoMoreResults || resp.ResultTotal == 0 {
			break
		}
		page = page.WithSkip(page.Skip + size).WithTop(min(remaining, size))
	}

	if len(merged.Results) > want {
		merged.Results = merged.Results[:want]
		merged.ResultTotal = want
	}
	for i := range merged.Results {
		merged.Results[i].Rank = i + 1
	}
	merged.Query = q
	merged.QueryTerms = q.Terms

	p.logger.Debug().
		Str("engine", p.engine).
		Int("pages", pages).
		Int("results", merged.ResultTotal).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return merged, nil
}
