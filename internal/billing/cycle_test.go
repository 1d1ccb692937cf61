package billing

import (
	"testing"
	"time"

	"cashflow/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPaymentDateCreditCard(t *testing.T) {
	visa := core.Account{ID: "visa", Type: core.CreditCard, CutOffDay: 25, PaymentDay: 5}

	tests := []struct {
		name     string
		purchase time.Time
		want     time.Time
	}{
		{"on cut-off day pays next month", date(2026, time.March, 25), date(2026, time.April, 5)},
		{"before cut-off pays next month", date(2026, time.March, 10), date(2026, time.April, 5)},
		{"after cut-off pays month after next", date(2026, time.March, 26), date(2026, time.May, 5)},
		{"first of month", date(2026, time.March, 1), date(2026, time.April, 5)},
		{"late december wraps the year", date(2026, time.December, 28), date(2027, time.February, 5)},
		{"early december pays in january", date(2026, time.December, 20), date(2027, time.January, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PaymentDate(tt.purchase, visa, nil, 0)
			if !got.Equal(tt.want) {
				t.Errorf("PaymentDate(%v) = %v, want %v", tt.purchase, got, tt.want)
			}
		})
	}
}

func TestPaymentDateClampsPaymentDay(t *testing.T) {
	card := core.Account{ID: "amex", Type: core.CreditCard, CutOffDay: 20, PaymentDay: 31}
	got := PaymentDate(date(2026, time.January, 10), card, nil, 0)
	if want := date(2026, time.February, 28); !got.Equal(want) {
		t.Errorf("PaymentDate = %v, want %v (clamped to february)", got, want)
	}
}

func TestPaymentDateNonCreditPaysImmediately(t *testing.T) {
	for _, typ := range []core.AccountType{core.Cash, core.DebitCard, core.BankAccount} {
		purchase := date(2026, time.March, 26)
		got := PaymentDate(purchase, core.Account{ID: "a", Type: typ}, nil, 3)
		if !got.Equal(purchase) {
			t.Errorf("%s: PaymentDate = %v, want purchase date %v", typ, got, purchase)
		}
	}
}

func TestPaymentDateOverride(t *testing.T) {
	visa := core.Account{ID: "visa", Type: core.CreditCard, CutOffDay: 25, PaymentDay: 5}
	override := &CycleOverride{Month: core.Month{Year: 2026, Month: time.March}, CutOffDay: 15, PaymentDay: 10}

	// March purchase uses the override days.
	got := PaymentDate(date(2026, time.March, 20), visa, override, 0)
	if want := date(2026, time.May, 10); !got.Equal(want) {
		t.Errorf("override month: PaymentDate = %v, want %v", got, want)
	}

	// April purchase falls back to the card's regular days.
	got = PaymentDate(date(2026, time.April, 20), visa, override, 0)
	if want := date(2026, time.May, 5); !got.Equal(want) {
		t.Errorf("non-override month: PaymentDate = %v, want %v", got, want)
	}
}

func TestPaymentDateGraceMonths(t *testing.T) {
	visa := core.Account{ID: "visa", Type: core.CreditCard, CutOffDay: 25, PaymentDay: 5}
	got := PaymentDate(date(2026, time.March, 10), visa, nil, 2)
	if want := date(2026, time.June, 5); !got.Equal(want) {
		t.Errorf("PaymentDate with grace = %v, want %v", got, want)
	}
}

// Every purchase in a month on a 25/5 card pays on the 5th of either the next
// month or the one after, and the boundary sits exactly at the cut-off day.
func TestPaymentDateCycleBoundary(t *testing.T) {
	visa := core.Account{ID: "visa", Type: core.CreditCard, CutOffDay: 25, PaymentDay: 5}
	month := core.Month{Year: 2026, Month: time.March}
	for day := 1; day <= month.Days(); day++ {
		got := PaymentDate(month.Date(day), visa, nil, 0)
		wantMonth := month.Add(1)
		if day > 25 {
			wantMonth = month.Add(2)
		}
		if core.MonthOf(got) != wantMonth || got.Day() != 5 {
			t.Errorf("day %d: PaymentDate = %v, want day 5 of %v", day, got, wantMonth)
		}
	}
}
