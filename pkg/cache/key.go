package cache

import (
	"strings"

	"github.com/Sternrassler/search-client/pkg/search"
)

// KeyPrefix is the root of every key written by the query cache.
const KeyPrefix = "search"

// Namespace identifies one cache scope instance inside the store.
//
// Format:
//
//	search:{backend}             shared scope
//	search:{backend}:{instance}  private scope
type Namespace struct {
	Backend  string
	Instance string // empty for the shared scope
}

// String returns the namespace prefix.
func (n Namespace) String() string {
	parts := []string{KeyPrefix, strings.ToLower(n.Backend)}
	if n.Instance != "" {
		parts = append(parts, n.Instance)
	}
	return strings.Join(parts, ":")
}

// EntryKey returns the key of the entry cached for q.
// Example: search:wikipedia:v1-6d1a0c8e2f3b4a59
func (n Namespace) EntryKey(q *search.Query) string {
	return n.String() + ":" + q.Fingerprint()
}

// IndexKey returns the key of the insertion-ordered index.
func (n Namespace) IndexKey() string {
	return n.String() + ":keys"
}

// SequenceKey returns the key holding the insertion counter.
func (n Namespace) SequenceKey() string {
	return n.String() + ":seq"
}
