package core

import (
	"errors"
	"testing"
	"time"
)

func TestAccountValidate(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		wantErr bool
	}{
		{"cash", Account{ID: "wallet", Type: Cash}, false},
		{"credit card with days", Account{ID: "visa", Type: CreditCard, CutOffDay: 25, PaymentDay: 5}, false},
		{"credit card missing days", Account{ID: "visa", Type: CreditCard}, true},
		{"credit card day out of range", Account{ID: "visa", Type: CreditCard, CutOffDay: 32, PaymentDay: 5}, true},
		{"debit card with days", Account{ID: "bancomat", Type: DebitCard, CutOffDay: 10}, true},
		{"unknown type", Account{ID: "x", Type: "prepaid"}, true},
		{"missing id", Account{Type: Cash}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSubscriptionValidate(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	base := Subscription{
		ID:               "sub-netflix",
		Name:             "Netflix",
		Category:         "entertainment",
		MonthlyAmount:    Money{Cents: 1599},
		PaymentAccountID: "visa",
		StartDate:        start,
	}

	tests := []struct {
		name    string
		mutate  func(*Subscription)
		wantErr bool
	}{
		{"valid", func(s *Subscription) {}, false},
		{"zero amount", func(s *Subscription) { s.MonthlyAmount = Money{} }, true},
		{"negative amount", func(s *Subscription) { s.MonthlyAmount = Money{Cents: -100} }, true},
		{"no account", func(s *Subscription) { s.PaymentAccountID = "" }, true},
		{"no name", func(s *Subscription) { s.Name = "  " }, true},
		{"no start date", func(s *Subscription) { s.StartDate = time.Time{} }, true},
		{"end before start", func(s *Subscription) { s.EndDate = start.AddDate(0, -1, 0) }, true},
		{"valid end date", func(s *Subscription) { s.EndDate = start.AddDate(1, 0, 0) }, false},
		{"bad underspend", func(s *Subscription) { s.Underspend = "rollover" }, true},
		{"return underspend", func(s *Subscription) { s.Underspend = UnderspendReturn }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscriptionActiveIn(t *testing.T) {
	s := Subscription{
		StartDate: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
	tests := []struct {
		month Month
		want  bool
	}{
		{Month{2026, time.February}, false},
		{Month{2026, time.March}, true},
		{Month{2026, time.June}, true},
		{Month{2026, time.July}, false},
	}
	for _, tt := range tests {
		if got := s.ActiveIn(tt.month); got != tt.want {
			t.Errorf("ActiveIn(%v) = %v, want %v", tt.month, got, tt.want)
		}
	}

	open := Subscription{StartDate: s.StartDate}
	if !open.ActiveIn(Month{2030, time.January}) {
		t.Error("open-ended subscription should stay active")
	}
}
