package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/storage"
)

// TransactionUpdate carries field changes for Edit. Nil pointers leave the
// field alone. Amount is the new signed stored amount.
type TransactionUpdate struct {
	Description *string
	Amount      *core.Money
	Category    *string
	Budget      *string
	DatePayed   *time.Time
}

// Conversion names the target shape for Convert and carries the details
// needed to recreate the group in that shape. Only the field matching Target
// is read; a zero Date in it means "keep the group's original base date".
type Conversion struct {
	Target       GroupKind
	Simple       NewTransaction
	Installments InstallmentPlan
	Split        SplitRequest
}

// Edit applies field changes to one row. An amount change within the same
// budget month adjusts the envelope incrementally by (old − new); moving the
// row across months or budgets, or touching a month whose envelope ever
// capped, recalculates every affected envelope from scratch instead, so
// prior incremental deltas can never drift.
func (l *Ledger) Edit(ctx context.Context, txID int64, upd TransactionUpdate) (core.Transaction, error) {
	var updated core.Transaction
	err := l.repo.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetTransaction(ctx, txID)
		if err != nil {
			return err
		}

		updated = old
		if upd.Description != nil {
			updated.Description = *upd.Description
		}
		if upd.Amount != nil {
			updated.Amount = *upd.Amount
		}
		if upd.Category != nil {
			updated.Category = *upd.Category
		}
		if upd.Budget != nil {
			updated.Budget = *upd.Budget
		}
		if upd.DatePayed != nil {
			updated.DatePayed = *upd.DatePayed
			if updated.DatePayed.Before(updated.DateCreated) {
				return fmt.Errorf("%w: payment date %s precedes creation date %s",
					core.ErrValidation,
					updated.DatePayed.Format("2006-01-02"),
					updated.DateCreated.Format("2006-01-02"))
			}
		}
		if updated.Budget != old.Budget && updated.Budget != "" {
			if err := checkBudget(ctx, q, updated.Budget); err != nil {
				return err
			}
		}

		if err := q.UpdateTransaction(ctx, updated); err != nil {
			return err
		}
		if updated.IsPending() {
			return nil
		}

		sameEnvelope := old.Budget == updated.Budget &&
			old.PayedMonth() == updated.PayedMonth()
		switch {
		case sameEnvelope && old.Budget == "":
			return nil
		case sameEnvelope:
			if old.Amount == updated.Amount {
				return nil
			}
			return adjustAllocation(ctx, q, updated.Budget, updated.PayedMonth(),
				old.Amount.Cents-updated.Amount.Cents)
		default:
			if old.Budget != "" {
				if err := recalcFor(ctx, q, old.Budget, old.PayedMonth()); err != nil {
					return err
				}
			}
			if updated.Budget != "" {
				return recalcFor(ctx, q, updated.Budget, updated.PayedMonth())
			}
			return nil
		}
	})
	if err != nil {
		return core.Transaction{}, err
	}

	l.logger.InfoContext(ctx, "transaction edited", log.FieldTransactionID, txID)
	return updated, nil
}

// Delete removes one row and rebuilds its envelope from scratch rather than
// reversing the delta, guarding against drift across repeated deletes.
func (l *Ledger) Delete(ctx context.Context, txID int64) error {
	err := l.repo.WithTx(ctx, func(q *storage.Queries) error {
		tx, err := q.GetTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if err := q.DeleteTransaction(ctx, txID); err != nil {
			return err
		}
		if tx.Budget == "" || tx.IsPending() {
			return nil
		}
		return recalcFor(ctx, q, tx.Budget, tx.PayedMonth())
	})
	if err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "transaction deleted", log.FieldTransactionID, txID)
	return nil
}

// ChangeDate moves a whole group to a new base date. Dates are never edited
// in place: the group is captured, deleted, its envelopes rebuilt, and the
// group recreated through the factory so every downstream payment date is
// recomputed from the new date.
func (l *Ledger) ChangeDate(ctx context.Context, txID int64, newDate time.Time) error {
	err := l.replaceGroup(ctx, txID, func(ctx context.Context, q *storage.Queries, info GroupInfo) ([]core.Transaction, error) {
		account, err := q.GetAccount(ctx, info.Members[0].Account)
		if err != nil {
			return nil, err
		}
		switch info.Kind {
		case GroupSimple:
			in := captureSimple(info.Members[0])
			in.Date = newDate
			tx, err := buildSingle(in, account)
			if err != nil {
				return nil, err
			}
			return []core.Transaction{tx}, nil
		case GroupInstallment:
			in, err := captureInstallments(info.Members)
			if err != nil {
				return nil, err
			}
			in.Date = newDate
			return buildInstallments(in, account)
		case GroupSplit:
			in := captureSplit(info.Members)
			in.Date = newDate
			return buildSplit(in, account)
		}
		return nil, fmt.Errorf("%w: cannot reschedule a %s group", core.ErrInvalidConversion, info.Kind)
	})
	if err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "transaction rescheduled",
		log.FieldTransactionID, txID, "new_date", newDate.Format("2006-01-02"))
	return nil
}

// Convert recreates a group in a different shape using the same
// delete-rebuild-recreate sequence as ChangeDate. Converting subscription
// rows, or converting a group to the shape it already has, fails as
// InvalidConversion.
func (l *Ledger) Convert(ctx context.Context, txID int64, conv Conversion) error {
	err := l.replaceGroup(ctx, txID, func(ctx context.Context, q *storage.Queries, info GroupInfo) ([]core.Transaction, error) {
		if conv.Target == info.Kind {
			return nil, fmt.Errorf("%w: group already is %s", core.ErrInvalidConversion, info.Kind)
		}
		baseDate := info.Members[0].DateCreated

		switch conv.Target {
		case GroupSimple:
			in := conv.Simple
			if in.Date.IsZero() {
				in.Date = baseDate
			}
			account, err := q.GetAccount(ctx, in.Account)
			if err != nil {
				return nil, err
			}
			tx, err := buildSingle(in, account)
			if err != nil {
				return nil, err
			}
			return []core.Transaction{tx}, nil
		case GroupInstallment:
			in := conv.Installments
			if in.Date.IsZero() {
				in.Date = baseDate
			}
			account, err := q.GetAccount(ctx, in.Account)
			if err != nil {
				return nil, err
			}
			return buildInstallments(in, account)
		case GroupSplit:
			in := conv.Split
			if in.Date.IsZero() {
				in.Date = baseDate
			}
			account, err := q.GetAccount(ctx, in.Account)
			if err != nil {
				return nil, err
			}
			return buildSplit(in, account)
		}
		return nil, fmt.Errorf("%w: unknown target %q", core.ErrInvalidConversion, conv.Target)
	})
	if err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "transaction converted",
		log.FieldTransactionID, txID, "target", string(conv.Target))
	return nil
}

// replaceGroup is the shared delete-recalculate-recreate sequence behind
// ChangeDate and Convert, run as one transaction: capture the group, delete
// every member, rebuild each envelope the old rows touched, insert the
// replacement rows, and absorb them into whichever envelopes they now hit.
func (l *Ledger) replaceGroup(ctx context.Context, txID int64,
	build func(context.Context, *storage.Queries, GroupInfo) ([]core.Transaction, error)) error {

	return l.repo.WithTx(ctx, func(q *storage.Queries) error {
		info, err := classifyGroup(ctx, q, txID)
		if err != nil {
			return err
		}
		if info.Kind == GroupSubscription {
			return fmt.Errorf("%w: rows generated by subscription %s are managed by rollover",
				core.ErrInvalidConversion, info.OriginID)
		}

		rows, err := build(ctx, q, info)
		if err != nil {
			return err
		}

		touched := map[string]budgetMonth{}
		for _, m := range info.Members {
			if m.Budget != "" && !m.IsPending() {
				bm := budgetMonth{budget: m.Budget, month: m.PayedMonth()}
				touched[bm.key()] = bm
			}
		}

		if info.OriginID == "" {
			if err := q.DeleteTransaction(ctx, info.Members[0].ID); err != nil {
				return err
			}
		} else if err := q.DeleteByOrigin(ctx, info.OriginID); err != nil {
			return err
		}

		for _, bm := range touched {
			if err := recalcFor(ctx, q, bm.budget, bm.month); err != nil {
				return err
			}
		}

		for i := range rows {
			id, err := q.InsertTransaction(ctx, rows[i])
			if err != nil {
				return err
			}
			rows[i].ID = id
			if err := applyExpense(ctx, q, rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

type budgetMonth struct {
	budget string
	month  core.Month
}

func (bm budgetMonth) key() string {
	return bm.budget + "|" + bm.month.Key()
}

// ClearPending flips a pending row to committed, at which point it starts
// counting against its budget and the running balance.
func (l *Ledger) ClearPending(ctx context.Context, txID int64) (core.Transaction, error) {
	var tx core.Transaction
	err := l.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		tx, err = q.GetTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if !tx.IsPending() {
			return fmt.Errorf("%w: transaction %d is %s, not pending", core.ErrValidation, txID, tx.Status)
		}
		if err := q.SetTransactionStatus(ctx, txID, core.StatusCommitted); err != nil {
			return err
		}
		tx.Status = core.StatusCommitted
		return applyExpense(ctx, q, tx)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	l.logger.InfoContext(ctx, "pending transaction cleared", log.FieldTransactionID, txID)
	return tx, nil
}

// UpdateBudgetAmount changes a budget's monthly amount from the effective
// month on: the definition is updated, then every allocation in or after
// that month is recomputed in place against the new amount, which covers
// both a live month (new baseline plus recorded spend, capped at zero) and
// untouched forecast months (reset to the new full amount). Retroactive mode
// rewrites earlier months the same way.
func (l *Ledger) UpdateBudgetAmount(ctx context.Context, budgetID string, newAmount core.Money, effective time.Time, retroactive bool) error {
	err := l.repo.WithTx(ctx, func(q *storage.Queries) error {
		sub, err := q.GetSubscription(ctx, budgetID)
		if err != nil {
			return err
		}
		if !sub.IsBudget {
			return fmt.Errorf("%w: subscription %s is not a budget", core.ErrValidation, budgetID)
		}
		if newAmount.Abs().IsZero() {
			return fmt.Errorf("%w: budget amount must be positive", core.ErrValidation)
		}

		sub.MonthlyAmount = newAmount.Abs()
		if err := q.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		effectiveMonth := core.MonthOf(effective)
		allocations, err := q.ListAllocations(ctx, budgetID)
		if err != nil {
			return err
		}
		for _, alloc := range allocations {
			if alloc.PayedMonth().Before(effectiveMonth) && !retroactive {
				continue
			}
			if err := recalculateBudgetMonth(ctx, q, sub, alloc.PayedMonth()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "budget amount updated",
		log.FieldBudget, budgetID,
		log.FieldAmountCents, newAmount.Abs().Cents,
		"retroactive", retroactive)
	return nil
}

func recalcFor(ctx context.Context, q *storage.Queries, budgetID string, month core.Month) error {
	sub, err := q.GetSubscription(ctx, budgetID)
	if err != nil {
		return err
	}
	return recalculateBudgetMonth(ctx, q, sub, month)
}

// adjustAllocation applies an incremental envelope correction. An envelope
// sitting at either boundary may have absorbed a cap, so its stored balance
// no longer encodes the month's true spend; those months are rebuilt from
// scratch instead, as is any delta that would land outside the valid range.
func adjustAllocation(ctx context.Context, q *storage.Queries, budgetID string, month core.Month, deltaCents int64) error {
	sub, err := q.GetSubscription(ctx, budgetID)
	if err != nil {
		return err
	}
	alloc, err := q.GetAllocation(ctx, budgetID, month.Key())
	if err != nil {
		return err
	}

	floor := -sub.MonthlyAmount.Abs().Cents
	balance := alloc.Amount.Cents + deltaCents
	if alloc.Amount.Cents == 0 || alloc.Amount.Cents == floor || balance > 0 || balance < floor {
		return recalculateBudgetMonth(ctx, q, sub, month)
	}
	return q.SetTransactionAmount(ctx, alloc.ID, core.Money{Cents: balance})
}

func checkBudget(ctx context.Context, q *storage.Queries, budgetID string) error {
	sub, err := q.GetSubscription(ctx, budgetID)
	if err != nil {
		return fmt.Errorf("%w: unknown budget %s", core.ErrValidation, budgetID)
	}
	if !sub.IsBudget {
		return fmt.Errorf("%w: subscription %s is not a budget", core.ErrValidation, budgetID)
	}
	return nil
}

var installmentSuffix = regexp.MustCompile(`^(.*) \((\d+)/(\d+)\)$`)

func captureSimple(m core.Transaction) NewTransaction {
	return NewTransaction{
		Description: m.Description,
		Account:     m.Account,
		Amount:      m.Amount.Abs(),
		IsIncome:    m.Amount.Cents > 0,
		Category:    m.Category,
		Budget:      m.Budget,
		Pending:     m.Status == core.StatusPending,
		Planning:    m.Status == core.StatusPlanning,
	}
}

// captureInstallments reverses the factory's rendering: strip the "(i/n)"
// suffix back off the description, recover the plan bounds from the first
// and last rendered rows, and total the remaining amounts.
func captureInstallments(members []core.Transaction) (InstallmentPlan, error) {
	first := members[0]
	match := installmentSuffix.FindStringSubmatch(first.Description)
	if match == nil {
		return InstallmentPlan{}, fmt.Errorf("%w: row %d does not look like an installment", core.ErrState, first.ID)
	}
	startFrom, err := strconv.Atoi(match[2])
	if err != nil {
		return InstallmentPlan{}, err
	}
	totalCount, err := strconv.Atoi(match[3])
	if err != nil {
		return InstallmentPlan{}, err
	}

	var total int64
	for _, m := range members {
		total += m.Amount.Abs().Cents
	}

	return InstallmentPlan{
		NewTransaction: NewTransaction{
			Description: match[1],
			Account:     first.Account,
			Amount:      core.Money{Cents: total},
			Category:    first.Category,
			Budget:      first.Budget,
			Pending:     first.Status == core.StatusPending,
			Planning:    first.Status == core.StatusPlanning,
		},
		Count:      len(members),
		StartFrom:  startFrom,
		TotalCount: totalCount,
	}, nil
}

func captureSplit(members []core.Transaction) SplitRequest {
	first := members[0]
	req := SplitRequest{
		Description: first.Description,
		Account:     first.Account,
		Pending:     first.Status == core.StatusPending,
	}
	var total int64
	for _, m := range members {
		total += m.Amount.Abs().Cents
		req.Lines = append(req.Lines, SplitLine{
			Amount:   m.Amount.Abs(),
			Category: m.Category,
			Budget:   m.Budget,
		})
	}
	req.Total = core.Money{Cents: total}
	return req
}
