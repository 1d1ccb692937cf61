package services

import (
	"context"
	"errors"
	"fmt"

	"cashflow/internal/core"
)

// OrderBy selects the date column ledger views are sorted on.
type OrderBy string

const (
	OrderByPayed   OrderBy = "date_payed"
	OrderByCreated OrderBy = "date_created"
)

// LedgerLine is one ledger row annotated with the cumulative cash position
// up to and including it. Pending rows are listed but carry the balance
// unchanged, since the money has not moved yet.
type LedgerLine struct {
	core.Transaction
	RunningBalance core.Money
}

// TransactionsWithRunningBalance returns the whole ledger with a running
// balance over every non-pending row.
func (l *Ledger) TransactionsWithRunningBalance(ctx context.Context, order OrderBy) ([]LedgerLine, error) {
	switch order {
	case OrderByPayed, OrderByCreated:
	case "":
		order = OrderByPayed
	default:
		return nil, fmt.Errorf("%w: unknown order %q", core.ErrValidation, order)
	}

	rows, err := l.repo.Queries().ListAllOrdered(ctx, string(order))
	if err != nil {
		return nil, err
	}

	lines := make([]LedgerLine, 0, len(rows))
	var balance int64
	for _, t := range rows {
		if !t.IsPending() {
			balance += t.Amount.Cents
		}
		lines = append(lines, LedgerLine{
			Transaction:    t,
			RunningBalance: core.Money{Cents: balance},
		})
	}
	return lines, nil
}

// ListPending returns the rows still awaiting clearance.
func (l *Ledger) ListPending(ctx context.Context) ([]core.Transaction, error) {
	return l.repo.Queries().ListByStatus(ctx, core.StatusPending)
}

// BudgetStatus is one budget's live envelope for a month.
type BudgetStatus struct {
	Subscription core.Subscription
	Month        core.Month
	Remaining    core.Money
}

// BudgetStatuses reports every budget's remaining envelope for the given
// month. Budgets without an allocation for that month are skipped, not
// invented; rollover owns allocation creation.
func (l *Ledger) BudgetStatuses(ctx context.Context, month core.Month) ([]BudgetStatus, error) {
	budgets, err := l.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}

	var out []BudgetStatus
	for _, b := range budgets {
		alloc, err := l.repo.Queries().GetAllocation(ctx, b.ID, month.Key())
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, BudgetStatus{Subscription: b, Month: month, Remaining: alloc.Amount})
	}
	return out, nil
}
