package model

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Date is a calendar date without a time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a dd/mm/yyyy date as returned by the SPEAR search API.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("02/01/2006", s)
	if err != nil {
		return Date{}, eris.Wrapf(err, "model: parse date %q", s)
	}
	return DateOf(t), nil
}

// ParseISODate parses a yyyy-mm-dd date.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, eris.Wrapf(err, "model: parse iso date %q", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// String formats d as an ISO date (yyyy-mm-dd).
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// PassesCutoff reports whether a row submitted on submitted is included by cutoff.
//
// A nil cutoff admits every row, dated or not. With a cutoff set, an undated
// row is rejected and dated rows are compared at month granularity: any row in
// the cutoff's month or later passes regardless of day.
func PassesCutoff(submitted, cutoff *Date) bool {
	if cutoff == nil {
		return true
	}
	if submitted == nil {
		return false
	}
	if submitted.Year != cutoff.Year {
		return submitted.Year > cutoff.Year
	}
	if submitted.Month != cutoff.Month {
		return submitted.Month > cutoff.Month
	}
	return true
}
