package model

import "time"

// Window is an inclusive time range. The zero Window means "all time"
// and applies no filter at all.
type Window struct {
	From    time.Time
	To      time.Time
	bounded bool
}

// AllTime returns the unfiltered window.
func AllTime() Window { return Window{} }

// Between returns the inclusive window [from, to].
func Between(from, to time.Time) Window {
	return Window{From: from, To: to, bounded: true}
}

// Year returns the calendar year y in loc.
func Year(y int, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	to := from.AddDate(1, 0, 0).Add(-time.Nanosecond)
	return Between(from, to)
}

// Bounded reports whether the window filters anything.
func (w Window) Bounded() bool { return w.bounded }

// Contains reports whether t falls within the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	if !w.bounded {
		return true
	}
	return !t.Before(w.From) && !t.After(w.To)
}
