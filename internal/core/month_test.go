package core

import (
	"testing"
	"time"
)

func TestMonthAdd(t *testing.T) {
	tests := []struct {
		name string
		from Month
		n    int
		want Month
	}{
		{"same year", Month{2026, time.March}, 2, Month{2026, time.May}},
		{"year wrap", Month{2026, time.November}, 3, Month{2027, time.February}},
		{"backwards", Month{2026, time.January}, -1, Month{2025, time.December}},
		{"zero", Month{2026, time.June}, 0, Month{2026, time.June}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.Add(tt.n); got != tt.want {
				t.Errorf("Add(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestMonthDateClampsToMonthLength(t *testing.T) {
	tests := []struct {
		name    string
		month   Month
		day     int
		wantDay int
	}{
		{"normal day", Month{2026, time.January}, 15, 15},
		{"day 31 in february", Month{2026, time.February}, 31, 28},
		{"day 31 in leap february", Month{2028, time.February}, 31, 29},
		{"day 31 in april", Month{2026, time.April}, 31, 30},
		{"day below one", Month{2026, time.April}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.month.Date(tt.day)
			if got.Day() != tt.wantDay {
				t.Errorf("Date(%d) = %v, want day %d", tt.day, got, tt.wantDay)
			}
			if MonthOf(got) != tt.month {
				t.Errorf("Date(%d) left the month: %v", tt.day, got)
			}
		})
	}
}

func TestMonthKey(t *testing.T) {
	m := Month{2026, time.March}
	if got := m.Key(); got != "2026-03" {
		t.Errorf("Key() = %q, want %q", got, "2026-03")
	}
}

func TestMonthOrdering(t *testing.T) {
	a := Month{2025, time.December}
	b := Month{2026, time.January}
	if !a.Before(b) || b.Before(a) {
		t.Errorf("Before ordering wrong for %v / %v", a, b)
	}
	if !b.After(a) || a.After(b) {
		t.Errorf("After ordering wrong for %v / %v", a, b)
	}
	if a.Before(a) || a.After(a) {
		t.Errorf("month should not order before or after itself")
	}
}

func TestMonthBounds(t *testing.T) {
	m := Month{2026, time.February}
	if got := m.First(); !got.Equal(time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("First() = %v", got)
	}
	if got := m.Last(); got.Day() != 28 {
		t.Errorf("Last() = %v, want day 28", got)
	}
	if got := m.Days(); got != 28 {
		t.Errorf("Days() = %d, want 28", got)
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{-37000, "-370.00"},
		{12345, "123.45"},
		{-5, "-0.05"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		if got := (Money{Cents: tt.cents}).String(); got != tt.want {
			t.Errorf("Money{%d}.String() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
