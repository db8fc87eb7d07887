package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH REFERENCE - "YYYY-MM" billing month key
// =============================================================================

// MonthRef identifies a billing month as "YYYY-MM". The textual form orders
// lexicographically the same way months order chronologically, which keeps
// sorting and comparison trivial. The zero value means "no month" (an
// unallocated advance payment).
type MonthRef string

// ParseMonthRef validates and normalizes a "YYYY-MM" string.
func ParseMonthRef(s string) (MonthRef, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", fmt.Errorf("invalid month reference %q: %w", s, err)
	}
	return MonthRef(t.Format("2006-01")), nil
}

// MonthOf returns the month reference containing the given date.
func MonthOf(t time.Time) MonthRef {
	return MonthRef(t.Format("2006-01"))
}

func (m MonthRef) IsZero() bool { return m == "" }

func (m MonthRef) Before(other MonthRef) bool { return m < other }
func (m MonthRef) After(other MonthRef) bool  { return m > other }

// Next returns the following billing month.
func (m MonthRef) Next() MonthRef {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return m
	}
	return MonthRef(t.AddDate(0, 1, 0).Format("2006-01"))
}

// Date returns the given day within the month, clamped to the month's last
// day (a due day of 31 in February yields Feb 28/29).
func (m MonthRef) Date(day int) time.Time {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return time.Time{}
	}
	last := t.AddDate(0, 1, -1).Day()
	if day < 1 {
		day = 1
	}
	if day > last {
		day = last
	}
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, time.UTC)
}

func (m MonthRef) String() string { return string(m) }

// =============================================================================
// DUE-DATE ARITHMETIC
// =============================================================================

// DateOnly truncates a timestamp to its calendar day in UTC. All due-date
// comparisons are whole-day comparisons.
func DateOnly(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// IsPast reports whether today is strictly after the due date.
func IsPast(dueDate, today time.Time) bool {
	return DateOnly(today).After(DateOnly(dueDate))
}

// DaysLate returns how many whole days today is past the due date.
// Never negative: on-time or future due dates yield 0.
func DaysLate(dueDate, today time.Time) int {
	days := int(DateOnly(today).Sub(DateOnly(dueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
