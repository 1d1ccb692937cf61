package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Cash        AccountType = "cash"
	CreditCard  AccountType = "credit_card"
	DebitCard   AccountType = "debit_card"
	BankAccount AccountType = "bank_account"
)

const (
	StatusForecast  Status = "forecast"
	StatusCommitted Status = "committed"
	StatusPending   Status = "pending"
	StatusPlanning  Status = "planning"
)

const (
	// UnderspendKeep leaves an underspent allocation in place at month end.
	UnderspendKeep UnderspendBehavior = "keep"
	// UnderspendReturn releases the unspent remainder back to cash at month end.
	UnderspendReturn UnderspendBehavior = "return"
)

type (
	AccountType        string
	Status             string
	UnderspendBehavior string

	// Account is a payment source. Credit cards carry a billing rule; every
	// other type pays on the purchase date.
	Account struct {
		ID         string
		Type       AccountType
		CutOffDay  int
		PaymentDay int
	}

	// Subscription is a recurring monthly event. Budgets are subscriptions
	// with IsBudget set; their monthly rows are envelope allocations rather
	// than plain forecasts.
	Subscription struct {
		ID               string
		Name             string
		Category         string
		MonthlyAmount    Money
		PaymentAccountID string
		StartDate        time.Time
		EndDate          time.Time // zero = runs indefinitely; inclusive otherwise
		IsBudget         bool
		Underspend       UnderspendBehavior
		IsIncome         bool
	}

	// Transaction is one row of the flat ledger: realized, pending, planned,
	// or forecasted. Rows sharing an OriginID form a group (installment plan,
	// split purchase, or a subscription's monthly rows).
	Transaction struct {
		ID          int64
		DateCreated time.Time
		DatePayed   time.Time
		Description string
		Account     string
		Amount      Money
		Category    string
		Budget      string // subscription id of the linked budget, "" if none
		Status      Status
		OriginID    string // "" for ungrouped rows
	}
)

// Validate checks the account-type invariant: credit cards require both
// billing days in [1,31], all other types must leave them unset.
func (a Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: account id is required", ErrValidation)
	}
	switch a.Type {
	case CreditCard:
		if a.CutOffDay < 1 || a.CutOffDay > 31 {
			return fmt.Errorf("%w: credit card cut-off day %d out of range [1,31]", ErrValidation, a.CutOffDay)
		}
		if a.PaymentDay < 1 || a.PaymentDay > 31 {
			return fmt.Errorf("%w: credit card payment day %d out of range [1,31]", ErrValidation, a.PaymentDay)
		}
	case Cash, DebitCard, BankAccount:
		if a.CutOffDay != 0 || a.PaymentDay != 0 {
			return fmt.Errorf("%w: billing days only apply to credit cards", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown account type %q", ErrValidation, a.Type)
	}
	return nil
}

// IsCredit reports whether the account settles on a billing cycle.
func (a Account) IsCredit() bool {
	return a.Type == CreditCard
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: subscription id is required", ErrValidation)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: subscription name is required", ErrValidation)
	}
	if s.MonthlyAmount.Cents <= 0 {
		return fmt.Errorf("%w: monthly amount must be positive", ErrValidation)
	}
	if s.PaymentAccountID == "" {
		return fmt.Errorf("%w: payment account is required", ErrValidation)
	}
	if s.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrValidation)
	}
	if !s.EndDate.IsZero() && s.EndDate.Before(s.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", ErrValidation)
	}
	switch s.Underspend {
	case UnderspendKeep, UnderspendReturn, "":
	default:
		return fmt.Errorf("%w: unknown underspend behavior %q", ErrValidation, s.Underspend)
	}
	return nil
}

// ActiveIn reports whether the subscription's validity window covers month m.
func (s Subscription) ActiveIn(m Month) bool {
	if m.Before(MonthOf(s.StartDate)) {
		return false
	}
	if !s.EndDate.IsZero() && m.After(MonthOf(s.EndDate)) {
		return false
	}
	return true
}

// IsPending reports whether the row is excluded from budgets and the running
// balance until cleared.
func (t Transaction) IsPending() bool {
	return t.Status == StatusPending
}

// PayedMonth is the month whose billing period absorbs the row.
func (t Transaction) PayedMonth() Month {
	return MonthOf(t.DatePayed)
}
