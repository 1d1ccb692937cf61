package services

import (
	"context"
	"errors"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/storage"
)

// settingLastRollover records the most recent month a rollover covered, so a
// restarted process can tell how far behind the ledger is.
const settingLastRollover = "last_rollover_month"

// RunMonthlyRollover synchronizes the ledger with the calendar in one store
// transaction: commit every forecast whose month has elapsed (or is current),
// settle the envelopes of fully elapsed budget months, and extend each
// subscription's rows through the forecast horizon. Safe at any call
// frequency; a second run with the same date finds nothing left to do.
func (l *Ledger) RunMonthlyRollover(ctx context.Context, asOf time.Time) error {
	current := core.MonthOf(asOf)

	err := l.repo.WithTx(ctx, func(q *storage.Queries) error {
		committed, err := q.CommitForecasts(ctx, current.Key())
		if err != nil {
			return err
		}
		if committed > 0 {
			l.logger.InfoContext(ctx, "forecasts committed",
				log.FieldMonth, current.Key(), "rows", committed)
		}

		subs, err := q.ListSubscriptions(ctx)
		if err != nil {
			return err
		}

		for _, sub := range subs {
			if err := l.generateForecasts(ctx, q, sub, current); err != nil {
				return err
			}
		}

		// Settlement runs last so envelopes generated for elapsed months in
		// this same pass are closed immediately, keeping the whole rollover
		// idempotent.
		for _, sub := range subs {
			if !sub.IsBudget {
				continue
			}
			allocations, err := q.ListAllocationsBefore(ctx, sub.ID, current.Key())
			if err != nil {
				return err
			}
			for _, alloc := range allocations {
				if err := settleBudgetMonth(ctx, q, sub, alloc); err != nil {
					return err
				}
			}
		}

		return q.SetSetting(ctx, settingLastRollover, current.Key())
	})
	if err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "rollover complete", log.FieldMonth, current.Key())
	return nil
}

// LastRolloverMonth reports the month the most recent rollover covered; ok
// is false when none has run yet.
func (l *Ledger) LastRolloverMonth(ctx context.Context) (core.Month, bool, error) {
	value, err := l.repo.Queries().GetSetting(ctx, settingLastRollover)
	if errors.Is(err, core.ErrNotFound) {
		return core.Month{}, false, nil
	}
	if err != nil {
		return core.Month{}, false, err
	}
	parsed, err := time.Parse("2006-01", value)
	if err != nil {
		return core.Month{}, false, err
	}
	return core.MonthOf(parsed), true, nil
}

// generateForecasts extends one subscription's rows from the month after the
// latest already generated (or its start month) through current+horizon-1,
// bounded by the subscription's end date. Rows for elapsed or current months
// are written committed directly so a repeated rollover changes nothing.
// Budget rows covering committed months are recalculated immediately to
// absorb any expenses already recorded there.
func (l *Ledger) generateForecasts(ctx context.Context, q *storage.Queries, sub core.Subscription, current core.Month) error {
	account, err := q.GetAccount(ctx, sub.PaymentAccountID)
	if err != nil {
		return err
	}

	start := core.MonthOf(sub.StartDate)
	if key, ok, err := q.LatestGeneratedMonth(ctx, sub.ID); err != nil {
		return err
	} else if ok {
		latest, err := time.Parse("2006-01", key)
		if err != nil {
			return err
		}
		start = core.MonthOf(latest).Next()
	}

	end := current.Add(l.horizon - 1)
	if !sub.EndDate.IsZero() && end.After(core.MonthOf(sub.EndDate)) {
		end = core.MonthOf(sub.EndDate)
	}

	generated := 0
	for m := start; !m.After(end); m = m.Next() {
		if !sub.ActiveIn(m) {
			continue
		}
		status := core.StatusForecast
		if !m.After(current) {
			status = core.StatusCommitted
		}
		row := subscriptionRow(sub, m, account, status)
		if _, err := q.InsertTransaction(ctx, row); err != nil {
			return err
		}
		if sub.IsBudget && status == core.StatusCommitted {
			if err := recalculateBudgetMonth(ctx, q, sub, m); err != nil {
				return err
			}
		}
		generated++
	}

	if generated > 0 {
		l.logger.InfoContext(ctx, "forecasts generated",
			log.FieldSubscriptionID, sub.ID, "rows", generated)
	}
	return nil
}
