package domain

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// MaxStayNights bounds every stay window. cmd/api sets it from MAX_STAY_NIGHTS.
var MaxStayNights = 30

// StayWindow is the half-open range [CheckIn, CheckOut) of nights.
type StayWindow struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func DateKey(t time.Time) string { return DateOf(t).Format(DateLayout) }

func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// NightsBetween counts calendar nights from checkIn to checkOut; may be <= 0.
// Unix seconds are used instead of Sub, which saturates past ~292 years.
func NightsBetween(checkIn, checkOut time.Time) int {
	return int((DateOf(checkOut).Unix() - DateOf(checkIn).Unix()) / 86400)
}

func NewStayWindow(checkIn, checkOut time.Time) (StayWindow, error) {
	s := StayWindow{CheckIn: DateOf(checkIn), CheckOut: DateOf(checkOut)}
	if s.Nights() <= 0 {
		return StayWindow{}, NewValidationError("checkOutDate", "check-out must be at least one night after check-in")
	}
	if s.Nights() > MaxStayNights {
		return StayWindow{}, NewValidationError("night", fmt.Sprintf("stay must not exceed %d nights", MaxStayNights))
	}
	return s, nil
}

func (s StayWindow) Nights() int { return NightsBetween(s.CheckIn, s.CheckOut) }

// Dates lists every night of the stay; the check-out date is not included.
func (s StayWindow) Dates() []time.Time {
	n := s.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for d := s.CheckIn; d.Before(s.CheckOut); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
