// Package adapters holds the provider adapters shipped with the search
// client. Each subpackage exports a Name and a New constructor matching
// search.AdapterConstructor; pkg/registry wires them into the built-in
// table.
//
// HTTP adapters share these params:
//
//	endpoint    base URL of the provider API (tests point it at a mock server)
//	user_agent  User-Agent header
//	rate_limit  requests per second allowed against the provider (0 = unlimited)
//	timeout     round trip timeout in seconds
package adapters
