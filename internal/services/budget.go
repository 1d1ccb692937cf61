package services

import (
	"context"
	"errors"
	"fmt"

	"cashflow/internal/core"
	"cashflow/internal/storage"
)

// applyExpense absorbs a committed or planning expense into its budget's
// envelope for the payment month. The envelope moves toward zero by
// min(|expense|, |remaining|) and never crosses it; the expense row itself
// keeps its full amount, so the envelope caps spending visibility without
// distorting the cash record.
func applyExpense(ctx context.Context, q *storage.Queries, tx core.Transaction) error {
	if tx.Budget == "" || tx.Amount.Cents >= 0 || tx.IsPending() {
		return nil
	}

	month := tx.PayedMonth()
	alloc, err := q.GetAllocation(ctx, tx.Budget, month.Key())
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("budget %s has no allocation for %s, rollover has not covered it: %w",
			tx.Budget, month.Key(), core.ErrState)
	}
	if err != nil {
		return err
	}

	delta := -tx.Amount.Cents
	if remaining := -alloc.Amount.Cents; delta > remaining {
		delta = remaining
	}
	if delta == 0 {
		return nil
	}
	return q.SetTransactionAmount(ctx, alloc.ID, core.Money{Cents: alloc.Amount.Cents + delta})
}

// recalculateBudgetMonth rebuilds one envelope from scratch: reset to the
// subscription's full monthly amount, drop any release the month produced,
// then reapply the month's non-pending expenses in creation order. The result
// is independent of whatever sequence of edits came before.
func recalculateBudgetMonth(ctx context.Context, q *storage.Queries, sub core.Subscription, month core.Month) error {
	alloc, err := q.GetAllocation(ctx, sub.ID, month.Key())
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("budget %s has no allocation for %s, rollover has not covered it: %w",
			sub.ID, month.Key(), core.ErrState)
	}
	if err != nil {
		return err
	}

	if err := q.DeleteReleases(ctx, sub.ID, month.Key()); err != nil {
		return err
	}

	expenses, err := q.ListBudgetMonthExpenses(ctx, sub.ID, month.Key())
	if err != nil {
		return err
	}

	balance := -sub.MonthlyAmount.Abs().Cents
	for _, e := range expenses {
		if e.Amount.Cents >= 0 {
			continue
		}
		delta := -e.Amount.Cents
		if remaining := -balance; delta > remaining {
			delta = remaining
		}
		balance += delta
	}
	return q.SetTransactionAmount(ctx, alloc.ID, core.Money{Cents: balance})
}

// settleBudgetMonth closes one elapsed envelope. An underspent budget with
// the return policy credits the remainder back to its payment account as a
// positive release row and zeroes the allocation; keep leaves the remainder
// allocated. Already-settled or fully-spent months are a no-op, which keeps
// repeated rollovers harmless.
func settleBudgetMonth(ctx context.Context, q *storage.Queries, sub core.Subscription, alloc core.Transaction) error {
	remainder := -alloc.Amount.Cents
	if remainder <= 0 || sub.Underspend != core.UnderspendReturn {
		return nil
	}

	month := alloc.PayedMonth()
	release := core.Transaction{
		DateCreated: month.Last(),
		DatePayed:   month.Last(),
		Description: fmt.Sprintf("%s Release", sub.Name),
		Account:     sub.PaymentAccountID,
		Amount:      core.Money{Cents: remainder},
		Category:    sub.Category,
		Status:      core.StatusCommitted,
		OriginID:    sub.ID,
	}
	if _, err := q.InsertTransaction(ctx, release); err != nil {
		return err
	}
	return q.SetTransactionAmount(ctx, alloc.ID, core.Money{})
}
