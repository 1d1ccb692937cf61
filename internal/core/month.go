package core

import (
	"fmt"
	"time"
)

// Month identifies one calendar month. It is the unit budget allocations,
// forecasts, and rollover all work in.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Add returns the month n months later (or earlier for negative n).
func (m Month) Add(n int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return MonthOf(t)
}

// Next returns the following month.
func (m Month) Next() Month {
	return m.Add(1)
}

// First returns midnight UTC on the first day of the month.
func (m Month) First() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Last returns midnight UTC on the last day of the month.
func (m Month) Last() time.Time {
	return m.Next().First().AddDate(0, 0, -1)
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return m.Last().Day()
}

// Before reports whether m precedes other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// After reports whether m follows other.
func (m Month) After(other Month) bool {
	return other.Before(m)
}

// Key renders the month as "YYYY-MM", the form used in SQL month matching.
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Date returns the given day of the month, clamped to the month's length so
// day 31 lands on the 28th/29th/30th where needed.
func (m Month) Date(day int) time.Time {
	if last := m.Days(); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, time.UTC)
}
