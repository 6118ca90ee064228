package sensor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimestamp means the Time value matched none of the accepted
// layouts. The whole row is unusable without its timestamp.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Layouts are tried in order: fractional seconds first, then whole seconds.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp decodes a reading timestamp. Comma decimal separators are
// normalized to periods and a trailing "+"-prefixed timezone offset is
// stripped, not applied; stored timestamps are timezone-naive.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.ReplaceAll(raw, ",", ".")
	if i := strings.Index(s, "+"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)

	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
}
