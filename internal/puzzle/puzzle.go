// Package puzzle creates the daily bracket puzzles: it draws an unused
// secret word from the pool and picks the two boundary words players start
// from.
package puzzle

import "time"

// DateKey returns the calendar day for t as YYYY-MM-DD in UTC.
// Puzzles are unique per date key.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
