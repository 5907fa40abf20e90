// Package timeformat renders the current instant in an IANA timezone.
package timeformat

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownTimezone is returned for timezone identifiers the zone
// database does not recognize.
var ErrUnknownTimezone = errors.New("unknown timezone")

// layout produces e.g. "Wednesday, February 10, 2026 at 04:30:00".
const layout = "Monday, January 2, 2006 at 15:04:05"

// Render formats the current instant in the given IANA timezone. The wall
// clock is read once, so all fields of the rendering are consistent.
func Render(timezone string) (string, error) {
	return Format(time.Now(), timezone)
}

// Format renders t in the given IANA timezone.
func Format(t time.Time, timezone string) (string, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrUnknownTimezone, timezone, err)
	}
	return t.In(loc).Format(layout), nil
}
