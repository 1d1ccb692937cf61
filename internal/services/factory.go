package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/billing"
	"cashflow/internal/core"
)

// NewTransaction describes a single ledger entry to create. Amount is a
// magnitude: the factory owns the stored sign, flipping on IsIncome, so a
// caller can never smuggle a positive expense in.
type NewTransaction struct {
	Date        time.Time
	Description string
	Account     string
	Amount      core.Money
	IsIncome    bool
	Category    string
	Budget      string
	Pending     bool
	Planning    bool
	GraceMonths int
}

// InstallmentPlan describes a purchase paid over several monthly charges.
// Amount is the total to divide over Count rows. StartFrom and TotalCount
// support logging the tail of a plan that began before tracking: a plan
// logged with Count=4, StartFrom=3, TotalCount=6 renders rows (3/6)..(6/6).
type InstallmentPlan struct {
	NewTransaction
	Count      int
	StartFrom  int
	TotalCount int
}

// SplitLine is one slice of a split purchase with its own category and
// budget link.
type SplitLine struct {
	Amount   core.Money
	Category string
	Budget   string
}

// SplitRequest describes one purchase divided across categories. The lines
// must sum to Total exactly.
type SplitRequest struct {
	Date        time.Time
	Description string
	Account     string
	Total       core.Money
	Lines       []SplitLine
	Pending     bool
	GraceMonths int
}

// newOriginID builds a grouping key like "20261015-3FA2". Subscription rows
// never use this; they reuse the subscription's own id.
func newOriginID(date time.Time) string {
	fragment := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("%s-%s", date.Format("20060102"), fragment)
}

// storedAmount applies the factory's sign authority.
func storedAmount(amount core.Money, isIncome bool) core.Money {
	if isIncome {
		return amount.Abs()
	}
	return amount.Abs().Neg()
}

func requestStatus(pending, planning bool) core.Status {
	switch {
	case pending:
		return core.StatusPending
	case planning:
		return core.StatusPlanning
	default:
		return core.StatusCommitted
	}
}

func buildSingle(in NewTransaction, account core.Account) (core.Transaction, error) {
	if strings.TrimSpace(in.Description) == "" {
		return core.Transaction{}, fmt.Errorf("%w: description is required", core.ErrValidation)
	}
	if in.Amount.IsZero() {
		return core.Transaction{}, fmt.Errorf("%w: amount is required", core.ErrValidation)
	}
	if in.Pending && in.Planning {
		return core.Transaction{}, fmt.Errorf("%w: a transaction cannot be both pending and planning", core.ErrValidation)
	}
	return core.Transaction{
		DateCreated: in.Date,
		DatePayed:   billing.PaymentDate(in.Date, account, nil, in.GraceMonths),
		Description: in.Description,
		Account:     account.ID,
		Amount:      storedAmount(in.Amount, in.IsIncome),
		Category:    in.Category,
		Budget:      in.Budget,
		Status:      requestStatus(in.Pending, in.Planning),
	}, nil
}

// buildInstallments divides the total using integer cents, assigning the
// rounding remainder to the last rendered row so the plan sums exactly.
// Every row keeps the purchase date as date_created; only the billing date
// advances month by month.
func buildInstallments(in InstallmentPlan, account core.Account) ([]core.Transaction, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", core.ErrValidation)
	}
	if in.Count < 1 {
		return nil, fmt.Errorf("%w: installment count must be at least 1", core.ErrValidation)
	}
	startFrom := in.StartFrom
	if startFrom == 0 {
		startFrom = 1
	}
	totalCount := in.TotalCount
	if totalCount == 0 {
		totalCount = startFrom + in.Count - 1
	}
	if startFrom < 1 || startFrom+in.Count-1 > totalCount {
		return nil, fmt.Errorf("%w: installments %d..%d do not fit a plan of %d",
			core.ErrValidation, startFrom, startFrom+in.Count-1, totalCount)
	}

	total := storedAmount(in.Amount, in.IsIncome)
	per := total.Cents / int64(in.Count)
	remainder := total.Cents - per*int64(in.Count)

	originID := newOriginID(in.Date)
	purchaseMonth := core.MonthOf(in.Date)
	status := requestStatus(in.Pending, in.Planning)

	out := make([]core.Transaction, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		amount := per
		if i == in.Count-1 {
			amount += remainder
		}
		billingDate := purchaseMonth.Add(i).Date(in.Date.Day())
		out = append(out, core.Transaction{
			DateCreated: in.Date,
			DatePayed:   billing.PaymentDate(billingDate, account, nil, in.GraceMonths),
			Description: fmt.Sprintf("%s (%d/%d)", in.Description, startFrom+i, totalCount),
			Account:     account.ID,
			Amount:      core.Money{Cents: amount},
			Category:    in.Category,
			Budget:      in.Budget,
			Status:      status,
			OriginID:    originID,
		})
	}
	return out, nil
}

// buildSplit renders one row per line, all sharing an origin id and a single
// payment date.
func buildSplit(in SplitRequest, account core.Account) ([]core.Transaction, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", core.ErrValidation)
	}
	if len(in.Lines) < 2 {
		return nil, fmt.Errorf("%w: a split needs at least two lines", core.ErrValidation)
	}
	var sum int64
	for _, line := range in.Lines {
		sum += line.Amount.Abs().Cents
	}
	if sum != in.Total.Abs().Cents {
		return nil, fmt.Errorf("%w: split lines sum to %s, declared total is %s",
			core.ErrValidation, core.Money{Cents: sum}, in.Total.Abs())
	}

	originID := newOriginID(in.Date)
	payed := billing.PaymentDate(in.Date, account, nil, in.GraceMonths)
	status := requestStatus(in.Pending, false)

	out := make([]core.Transaction, 0, len(in.Lines))
	for _, line := range in.Lines {
		out = append(out, core.Transaction{
			DateCreated: in.Date,
			DatePayed:   payed,
			Description: in.Description,
			Account:     account.ID,
			Amount:      storedAmount(line.Amount, false),
			Category:    line.Category,
			Budget:      line.Budget,
			Status:      status,
			OriginID:    originID,
		})
	}
	return out, nil
}

// subscriptionRow renders one monthly occurrence of a subscription. Budget
// subscriptions produce the month's envelope allocation, paid within the
// covered month itself; plain subscriptions bill through the account's
// payment cycle. Rows reuse the subscription id as origin, grouping them
// across time.
func subscriptionRow(sub core.Subscription, month core.Month, account core.Account, status core.Status) core.Transaction {
	amount := sub.MonthlyAmount.Abs().Neg()
	if sub.IsIncome {
		amount = sub.MonthlyAmount.Abs()
	}

	created := month.Date(sub.StartDate.Day())
	payed := created
	if !sub.IsBudget {
		payed = billing.PaymentDate(created, account, nil, 0)
	}

	t := core.Transaction{
		DateCreated: created,
		DatePayed:   payed,
		Description: sub.Name,
		Account:     account.ID,
		Amount:      amount,
		Category:    sub.Category,
		Status:      status,
		OriginID:    sub.ID,
	}
	if sub.IsBudget {
		t.Budget = sub.ID
	}
	return t
}
