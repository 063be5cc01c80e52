package xmlrpc

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ISO8601Layout is the dateTime.iso8601 layout used on the wire.
const ISO8601Layout = "20060102T15:04:05"

var iso8601Pattern = regexp.MustCompile(`([0-9]{4})([0-9]{2})([0-9]{2})T([0-9]{2}):([0-9]{2}):([0-9]{2})`)

// FormatISO8601 formats t for a dateTime.iso8601 scalar.
//
// The wire format carries no timezone. t is rendered in local time unless utc
// is set, in which case it is converted to UTC first.
func FormatISO8601(t time.Time, utc bool) string {
	if utc {
		return t.UTC().Format(ISO8601Layout)
	}

	return t.Local().Format(ISO8601Layout)
}

// ParseISO8601 parses the first YYYYMMDDTHH:MM:SS run found in s, interpreting
// it in local time, or in UTC when utc is set.
//
// Text without such a run yields the zero time and an error wrapping [ErrInvalidType].
func ParseISO8601(s string, utc bool) (time.Time, error) {
	m := iso8601Pattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a dateTime.iso8601", ErrInvalidType, s)
	}

	var parts [6]int

	for i := range parts {
		// Pattern guarantees digits
		parts[i], _ = strconv.Atoi(m[i+1])
	}

	loc := time.Local
	if utc {
		loc = time.UTC
	}

	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, loc), nil
}
