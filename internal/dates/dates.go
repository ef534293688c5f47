// Package dates formats and parses the calendar dates stored on ledger records.
package dates

import (
	"fmt"
	"time"

	"github.com/rpggio/blossom/internal/errs"
)

// Layout is the only accepted calendar date format.
const Layout = "2006-01-02"

// Format renders t as a UTC calendar date.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse reads a YYYY-MM-DD date as midnight UTC.
func Parse(s string) (time.Time, error) {
	if len(s) != len(Layout) {
		return time.Time{}, errs.InvalidArgument("date %q is not in YYYY-MM-DD format", s)
	}
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, errs.InvalidArgument("date %q is not in YYYY-MM-DD format", s)
	}
	return t, nil
}

// Validate reports whether s is a well-formed calendar date.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

// AddYears returns the calendar date years after t, in UTC.
// Feb 29 clamps to Feb 28 in non-leap target years.
func AddYears(t time.Time, years int) time.Time {
	t = t.UTC()
	out := t.AddDate(years, 0, 0)
	if t.Month() == time.February && out.Month() == time.March {
		out = out.AddDate(0, 0, -out.Day())
	}
	return out
}

// Expired reports whether a stored expiration date lies strictly before now.
func Expired(expiration string, now time.Time) (bool, error) {
	exp, err := Parse(expiration)
	if err != nil {
		return false, fmt.Errorf("parsing expiration: %w", err)
	}
	return exp.Before(now.UTC().Truncate(24 * time.Hour)), nil
}
