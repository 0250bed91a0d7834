package clock

import (
	"log"
	"time"
)

// Clock supplies the wall clock in a fixed local zone. Attendance dates are
// keyed by this zone regardless of where the server runs.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// Fixed is a Clock pinned to one time.Location.
type Fixed struct {
	loc *time.Location
}

// New loads the named zone, falling back to a static GMT+8 offset when the
// tz database is missing (e.g. scratch containers).
func New(name string) *Fixed {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("timezone %q unavailable: %v, using fixed GMT+8", name, err)
		loc = time.FixedZone("GMT+8", 8*60*60)
	}
	return &Fixed{loc: loc}
}

// Now returns the current instant in the fixed zone.
func (f *Fixed) Now() time.Time {
	return time.Now().In(f.loc)
}

// Today returns midnight of the current local calendar date.
func (f *Fixed) Today() time.Time {
	now := f.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, f.loc)
}
