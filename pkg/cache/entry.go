package cache

import (
	"fmt"
	"strconv"
	"time"
)

// Fields of the hash stored for every entry.
const (
	FieldResponse = "response"
	FieldCount    = "count"
	FieldLast     = "last"

	sequenceField = "next"
)

// EntryStats is the usage metadata recorded for a cached entry.
type EntryStats struct {
	// Hits counts successful Get calls for the entry.
	Hits int64

	// LastAccess is the time of the most recent hit; zero if never read.
	LastAccess time.Time
}

// parseEntryStats decodes the raw count/last hash fields.
func parseEntryStats(count, last string) (EntryStats, error) {
	var stats EntryStats
	if count != "" {
		n, err := strconv.ParseInt(count, 10, 64)
		if err != nil {
			return EntryStats{}, fmt.Errorf("%w: count %q", ErrInvalidEntry, count)
		}
		stats.Hits = n
	}
	if last != "" {
		ts, err := time.Parse(time.RFC3339Nano, last)
		if err != nil {
			return EntryStats{}, fmt.Errorf("%w: last access %q", ErrInvalidEntry, last)
		}
		stats.LastAccess = ts
	}
	return stats, nil
}

func formatAccessTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
