// Package backupmonth decides which calendar months a backup run covers.
//
// Selection is a pure function of the mode and the caller's notion of
// "today"; nothing here reads the clock.
package backupmonth

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DynamicWindowDays is the number of days after the end of a month during
// which Dynamic mode still includes that month.
const DynamicWindowDays = 7

// Month is a calendar month, independent of any time zone.
type Month struct {
	Year  int
	Month time.Month
}

// Of returns the calendar month containing t, in t's location.
func Of(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// String renders the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Previous returns the month before m, rolling over January.
func (m Month) Previous() Month {
	if m.Month == time.January {
		return Month{Year: m.Year - 1, Month: time.December}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

// Next returns the month after m, rolling over December.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Start returns local midnight of the first day of m in loc.
func (m Month) Start(loc *time.Location) time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

// Range returns the half-open interval [start, end) of m as UTC instants,
// where start and end are local midnights of the first day of m and of the
// following month in loc.
func (m Month) Range(loc *time.Location) (start, end time.Time) {
	return m.Start(loc).UTC(), m.Next().Start(loc).UTC()
}

// Compare orders months chronologically.
func (m Month) Compare(o Month) int {
	if m.Year != o.Year {
		return m.Year - o.Year
	}
	return int(m.Month) - int(o.Month)
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: expected YYYY-MM", s)
	}
	return Of(t), nil
}

// Select returns the months to back up for the given mode, sorted ascending
// and without duplicates. Only the calendar date of today is used.
func Select(mode Mode, today time.Time) ([]Month, error) {
	current := Of(today)

	var months []Month
	switch mode {
	case PreviousMonth:
		months = []Month{current.Previous()}
	case CurrentMonth:
		months = []Month{current}
	case Dynamic:
		months = []Month{current}
		if gap := daysSincePreviousMonthEnd(today); gap >= 0 && gap <= DynamicWindowDays {
			months = append(months, current.Previous())
		}
	default:
		return nil, fmt.Errorf("unsupported backup mode: %s", mode)
	}

	slices.SortFunc(months, Month.Compare)
	return slices.Compact(months), nil
}

// daysSincePreviousMonthEnd counts calendar days between the last day of the
// previous month and today. The 1st of a month yields 1.
func daysSincePreviousMonthEnd(today time.Time) int {
	// Calendar arithmetic in UTC avoids DST-shortened days.
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	lastOfPrevious := time.Date(today.Year(), today.Month(), 0, 0, 0, 0, 0, time.UTC)
	return int(day.Sub(lastOfPrevious).Hours() / 24)
}

// Describe renders months as "2024-12, 2025-01".
func Describe(months []Month) string {
	parts := make([]string, len(months))
	for i, m := range months {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}
