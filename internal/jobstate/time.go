package jobstate

import "time"

// defaultNow is the real-clock implementation of nowFn: UTC, truncated to
// millisecond precision to match the RFC 3339 millisecond timestamps spec.md
// §3 requires everywhere else in the system.
func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
