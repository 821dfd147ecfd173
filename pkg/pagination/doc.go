// Package pagination satisfies requests for more results than a backend can
// return in one call by issuing successive pages and merging them.
//
// Example usage:
//
//	p := pagination.New(pagination.Config{Engine: "bing"})
//	resp, err := p.Fetch(ctx, adapter, query) // query.Top = 120, adapter.PageSize() = 50
//
// The paginator:
//   - Requests pages of min(remaining, page size) starting at query.Skip
//   - Advances skip by the page size after each page
//   - Stops when enough results are collected, the backend reports
//     NoMoreResults, or a page comes back empty
//   - Renumbers ranks 1..N across the merged response
//
// Pages are fetched sequentially: each page depends on the previous one's
// result count and end-of-results signal. A failed page fails the whole fetch.
package pagination
