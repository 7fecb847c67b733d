package clock

import "time"

// Clock supplies the current instant. Services take one so tests can pin
// "today".
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in Location (UTC when nil).
type System struct {
	Location *time.Location
}

func (s System) Now() time.Time {
	if s.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(s.Location)
}

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Today returns midnight UTC of the calendar day c.Now() falls on in its
// own location. Due dates are stored the same way so the two compare
// directly.
func Today(c Clock) time.Time {
	y, m, d := c.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LoadSystem builds a System clock for the named IANA zone. An empty name
// means UTC.
func LoadSystem(name string) (System, error) {
	if name == "" || name == "UTC" {
		return System{Location: time.UTC}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return System{}, err
	}
	return System{Location: loc}, nil
}
