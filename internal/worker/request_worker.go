package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/services"
)

const payloadDateLayout = "2006-01-02"

// RequestWorker consumes ledger request messages and applies them. Permanent
// failures (bad payloads, validation, missing rows) are logged and acked so
// they never cycle through the queue; only transient errors propagate to the
// consumer, which nacks with requeue.
type RequestWorker struct {
	ledger *services.Ledger
	logger *log.Logger
	now    func() time.Time
}

func NewRequestWorker(ledger *services.Ledger, logger *log.Logger) *RequestWorker {
	return &RequestWorker{
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// HandleRequest dispatches one message to the matching ledger operation.
func (w *RequestWorker) HandleRequest(ctx context.Context, msg *amqp.RequestMessage) error {
	w.logger.InfoContext(ctx, "handling ledger request", log.FieldRequestType, string(msg.Type))

	err := w.dispatch(ctx, msg)
	if err == nil {
		return nil
	}
	if isPermanent(err) {
		w.logger.ErrorContext(ctx, "discarding request",
			log.FieldRequestType, string(msg.Type),
			"error", err)
		return nil
	}
	return err
}

func (w *RequestWorker) dispatch(ctx context.Context, msg *amqp.RequestMessage) error {
	switch msg.Type {
	case amqp.RequestCreateTransaction:
		var p amqp.TransactionPayload
		if err := msg.DecodePayload(&p); err != nil {
			return permanent(err)
		}
		in, err := toNewTransaction(p)
		if err != nil {
			return err
		}
		_, err = w.ledger.CreateTransaction(ctx, in)
		return err

	case amqp.RequestCreateInstallments:
		var p amqp.InstallmentsPayload
		if err := msg.DecodePayload(&p); err != nil {
			return permanent(err)
		}
		in, err := toInstallmentPlan(p)
		if err != nil {
			return err
		}
		_, err = w.ledger.CreateInstallments(ctx, in)
		return err

	case amqp.RequestCreateSplit:
		var p amqp.SplitPayload
		if err := msg.DecodePayload(&p); err != nil {
			return permanent(err)
		}
		in, err := toSplitRequest(p)
		if err != nil {
			return err
		}
		_, err = w.ledger.CreateSplit(ctx, in)
		return err

	case amqp.RequestCreateSubscription:
		var p amqp.SubscriptionPayload
		if err := msg.DecodePayload(&p); err != nil {
			return permanent(err)
		}
		sub, err := toSubscription(p)
		if err != nil {
			return err
		}
		if err := w.ledger.CreateSubscription(ctx, sub); err != nil {
			return err
		}
		// New subscriptions get their forecast rows right away instead of
		// waiting for the next scheduled rollover.
		return w.ledger.RunMonthlyRollover(ctx, w.now())

	case amqp.RequestEditTransaction:
		var p amqp.EditPayload
		if err := msg.DecodePayload(&p); err != nil {
			return permanent(err)
		}
		upd, err := toTransactionUpdate(p)
		if err != nil {
			return err
		}
		_, err = w.ledger.Edit(ctx, p.ID, upd)
		return err

	case amqp.RequestDeleteTransaction:
		var p amqp.DeletePayload
		if err := msg.DecodePayload(&p); err != nil {
			return permanent(err)
		}
		return w.ledger.Delete(ctx, p.ID)

	case amqp.RequestChangeDate:
		var p amqp.ChangeDatePayload
		if err := msg.DecodePayload(&p); err != nil {
			return permanent(err)
		}
		newDate, err := parseRequiredDate(p.NewDate, "new_date")
		if err != nil {
			return err
		}
		return w.ledger.ChangeDate(ctx, p.ID, newDate)

	case amqp.RequestConvert:
		var p amqp.ConvertPayload
		if err := msg.DecodePayload(&p); err != nil {
			return permanent(err)
		}
		conv, err := toConversion(p)
		if err != nil {
			return err
		}
		return w.ledger.Convert(ctx, p.ID, conv)

	case amqp.RequestClearPending:
		var p amqp.ClearPendingPayload
		if err := msg.DecodePayload(&p); err != nil {
			return permanent(err)
		}
		_, err := w.ledger.ClearPending(ctx, p.ID)
		return err

	case amqp.RequestUpdateBudget:
		var p amqp.UpdateBudgetPayload
		if err := msg.DecodePayload(&p); err != nil {
			return permanent(err)
		}
		effective, err := parseRequiredDate(p.EffectiveDate, "effective_date")
		if err != nil {
			return err
		}
		return w.ledger.UpdateBudgetAmount(ctx, p.BudgetID,
			core.Money{Cents: p.AmountCents}, effective, p.Retroactive)

	case amqp.RequestRollover:
		var p amqp.RolloverPayload
		if err := msg.DecodePayload(&p); err != nil {
			return permanent(err)
		}
		asOf := w.now()
		if p.AsOf != "" {
			parsed, err := parseRequiredDate(p.AsOf, "as_of")
			if err != nil {
				return err
			}
			asOf = parsed
		}
		return w.ledger.RunMonthlyRollover(ctx, asOf)

	default:
		return permanent(fmt.Errorf("unknown request type %q", msg.Type))
	}
}

func toNewTransaction(p amqp.TransactionPayload) (services.NewTransaction, error) {
	date, err := parseOptionalDate(p.Date, "date")
	if err != nil {
		return services.NewTransaction{}, err
	}
	return services.NewTransaction{
		Date:        date,
		Description: p.Description,
		Account:     p.Account,
		Amount:      core.Money{Cents: p.AmountCents},
		IsIncome:    p.IsIncome,
		Category:    p.Category,
		Budget:      p.Budget,
		Pending:     p.Pending,
		Planning:    p.Planning,
		GraceMonths: p.GraceMonths,
	}, nil
}

func toInstallmentPlan(p amqp.InstallmentsPayload) (services.InstallmentPlan, error) {
	base, err := toNewTransaction(p.TransactionPayload)
	if err != nil {
		return services.InstallmentPlan{}, err
	}
	return services.InstallmentPlan{
		NewTransaction: base,
		Count:          p.Count,
		StartFrom:      p.StartFrom,
		TotalCount:     p.TotalCount,
	}, nil
}

func toSplitRequest(p amqp.SplitPayload) (services.SplitRequest, error) {
	date, err := parseOptionalDate(p.Date, "date")
	if err != nil {
		return services.SplitRequest{}, err
	}
	lines := make([]services.SplitLine, len(p.Lines))
	for i, line := range p.Lines {
		lines[i] = services.SplitLine{
			Amount:   core.Money{Cents: line.AmountCents},
			Category: line.Category,
			Budget:   line.Budget,
		}
	}
	return services.SplitRequest{
		Date:        date,
		Description: p.Description,
		Account:     p.Account,
		Total:       core.Money{Cents: p.TotalCents},
		Lines:       lines,
		Pending:     p.Pending,
		GraceMonths: p.GraceMonths,
	}, nil
}

func toSubscription(p amqp.SubscriptionPayload) (core.Subscription, error) {
	start, err := parseRequiredDate(p.StartDate, "start_date")
	if err != nil {
		return core.Subscription{}, err
	}
	end, err := parseOptionalDate(p.EndDate, "end_date")
	if err != nil {
		return core.Subscription{}, err
	}
	return core.Subscription{
		ID:               p.ID,
		Name:             p.Name,
		Category:         p.Category,
		MonthlyAmount:    core.Money{Cents: p.MonthlyAmountCents},
		PaymentAccountID: p.PaymentAccountID,
		StartDate:        start,
		EndDate:          end,
		IsBudget:         p.IsBudget,
		Underspend:       core.UnderspendBehavior(p.Underspend),
		IsIncome:         p.IsIncome,
	}, nil
}

func toTransactionUpdate(p amqp.EditPayload) (services.TransactionUpdate, error) {
	upd := services.TransactionUpdate{
		Description: p.Description,
		Category:    p.Category,
		Budget:      p.Budget,
	}
	if p.AmountCents != nil {
		upd.Amount = &core.Money{Cents: *p.AmountCents}
	}
	if p.DatePayed != nil {
		payed, err := parseRequiredDate(*p.DatePayed, "date_payed")
		if err != nil {
			return services.TransactionUpdate{}, err
		}
		upd.DatePayed = &payed
	}
	return upd, nil
}

func toConversion(p amqp.ConvertPayload) (services.Conversion, error) {
	conv := services.Conversion{Target: services.GroupKind(p.Target)}
	switch conv.Target {
	case services.GroupSimple:
		if p.Simple == nil {
			return conv, permanent(fmt.Errorf("convert to simple requires a simple payload"))
		}
		in, err := toNewTransaction(*p.Simple)
		if err != nil {
			return conv, err
		}
		conv.Simple = in
	case services.GroupInstallment:
		if p.Installments == nil {
			return conv, permanent(fmt.Errorf("convert to installment requires an installments payload"))
		}
		in, err := toInstallmentPlan(*p.Installments)
		if err != nil {
			return conv, err
		}
		conv.Installments = in
	case services.GroupSplit:
		if p.Split == nil {
			return conv, permanent(fmt.Errorf("convert to split requires a split payload"))
		}
		in, err := toSplitRequest(*p.Split)
		if err != nil {
			return conv, err
		}
		conv.Split = in
	}
	return conv, nil
}

func parseRequiredDate(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, permanent(fmt.Errorf("%s is required", field))
	}
	return parseOptionalDate(value, field)
}

func parseOptionalDate(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(payloadDateLayout, value)
	if err != nil {
		return time.Time{}, permanent(fmt.Errorf("parse %s: %w", field, err))
	}
	return parsed, nil
}

// errPermanent marks failures that a redelivery cannot fix.
var errPermanent = errors.New("permanent request failure")

func permanent(err error) error {
	return fmt.Errorf("%w: %w", errPermanent, err)
}

func isPermanent(err error) bool {
	return errors.Is(err, errPermanent) ||
		errors.Is(err, core.ErrValidation) ||
		errors.Is(err, core.ErrNotFound) ||
		errors.Is(err, core.ErrInvalidConversion) ||
		errors.Is(err, core.ErrConstraintViolation) ||
		errors.Is(err, core.ErrState)
}
