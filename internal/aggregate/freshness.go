package aggregate

import "time"

// Stale reports whether a cached quote record must be refreshed from
// upstream. A record is stale when it was never updated, when it is older
// than window, or when it lacks a current price regardless of age. Both
// timestamps are normalized to UTC before subtraction so mixed zone
// representations compare cleanly.
func Stale(lastUpdate *time.Time, now time.Time, window time.Duration, hasPrice bool) bool {
	if lastUpdate == nil {
		return true
	}
	if !hasPrice {
		return true
	}
	return now.UTC().Sub(lastUpdate.UTC()) > window
}
