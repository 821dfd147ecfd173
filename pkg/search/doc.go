// Package search defines the uniform query and response model shared by
// every search backend.
//
// A Query carries sanitized terms plus paging fields and an open, typed
// extension map (Params). Its Fingerprint is a versioned xxhash over a
// canonical encoding of all fields in name order, so it is stable across
// processes and usable as a cache key.
//
//	q, err := search.NewQuery("hello world!", search.WithTop(20))
//	key := q.Fingerprint() // "v1-..."
//
// A Response holds Results in rank order. Merge stitches backend pages
// together for auto-pagination.
//
// Errors returned anywhere in the client are *Error values classified as
// param, auth, connection, rate_limit, cache_connection or load; match them
// with errors.Is against ErrParam, ErrAuth and friends.
package search
