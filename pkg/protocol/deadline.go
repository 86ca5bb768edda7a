package protocol

import (
	"fmt"
	"time"
)

const deadlineLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatDeadline renders t for the X-Deadline header: RFC 3339 in UTC
// with millisecond precision.
func FormatDeadline(t time.Time) string {
	return t.UTC().Format(deadlineLayout)
}

// ParseDeadline parses an X-Deadline header value. Any RFC 3339 time is
// accepted.
func ParseDeadline(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("protocol: invalid deadline %q: %w", s, err)
	}
	return t, nil
}
