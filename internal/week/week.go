// Package week computes the canonical planning-week identity used as the
// join key between the client cache and the remote datastore. Both sides
// import this package; the algorithm must never be reimplemented elsewhere.
package week

import (
	"fmt"
	"time"
)

// Offset is the fixed +5:30 calendar the planner runs in. Week boundaries
// are taken in this calendar regardless of the host timezone.
var Offset = time.FixedZone("IST", 5*3600+30*60)

const (
	idLayout     = "20060102"
	isoLayout    = "2006-01-02"
	headerLayout = "02/Jan/06"
)

// Week identifies one Monday-to-Sunday planning week.
type Week struct {
	// ID is the YYYYMMDD of the week's Monday in the +5:30 calendar.
	ID string
	// Headers are DD/Mon/YY display strings for Monday..Sunday.
	Headers [7]string
	// DayDates are YYYY-MM-DD ISO strings for Monday..Sunday.
	DayDates [7]string
}

// Compute returns the week containing now. If overrideISO is non-empty it
// must be a YYYY-MM-DD date; the week containing midnight UTC of that date
// is returned instead. Pure and deterministic: the same inputs always yield
// the same Week.
func Compute(now time.Time, overrideISO string) (Week, error) {
	instant := now
	if overrideISO != "" {
		parsed, err := time.ParseInLocation(isoLayout, overrideISO, time.UTC)
		if err != nil {
			return Week{}, fmt.Errorf("parse override date %q: %w", overrideISO, err)
		}
		instant = parsed
	}

	shifted := instant.In(Offset)
	monday := mondayOf(shifted)

	w := Week{ID: monday.Format(idLayout)}
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		w.Headers[i] = day.Format(headerLayout)
		w.DayDates[i] = day.Format(isoLayout)
	}
	return w, nil
}

// MustCompute is Compute without an override; with an empty override the
// computation cannot fail.
func MustCompute(now time.Time) Week {
	w, _ := Compute(now, "")
	return w
}

// mondayOf truncates t to midnight of the Monday starting its week, in the
// shifted calendar. Sunday belongs to the week that began six days earlier.
func mondayOf(t time.Time) time.Time {
	back := int(t.Weekday()) - 1
	if t.Weekday() == time.Sunday {
		back = 6
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Offset)
	return day.AddDate(0, 0, -back)
}

// ValidID reports whether id is a syntactically valid week identifier
// (YYYYMMDD of some real date).
func ValidID(id string) bool {
	_, err := time.ParseInLocation(idLayout, id, Offset)
	return err == nil
}

// StartOf returns the Monday midnight instant (in the +5:30 calendar) of a
// week identifier.
func StartOf(id string) (time.Time, error) {
	t, err := time.ParseInLocation(idLayout, id, Offset)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse week id %q: %w", id, err)
	}
	return t, nil
}
