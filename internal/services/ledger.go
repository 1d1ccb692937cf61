package services

import (
	"context"
	"fmt"
	"time"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/storage"
)

const defaultForecastHorizon = 3

// Ledger is the single entry point for every mutation. All multi-row
// operations run inside one store transaction; account lookups on the hot
// create path go through a small read cache since accounts almost never
// change.
type Ledger struct {
	repo     *storage.SQLiteRepository
	accounts *cache.LRUCache[core.Account]
	logger   *log.Logger
	horizon  int
	now      func() time.Time
}

type Option func(*Ledger)

// WithHorizon sets how many months of forecasts rollover maintains,
// including the current one.
func WithHorizon(months int) Option {
	return func(l *Ledger) {
		if months > 0 {
			l.horizon = months
		}
	}
}

// WithClock overrides the time source, used by tests to pin "today".
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func NewLedger(repo *storage.SQLiteRepository, opts ...Option) *Ledger {
	l := &Ledger{
		repo:     repo,
		accounts: cache.NewLRUCache[core.Account](64, 5*time.Minute),
		logger:   log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger),
		horizon:  defaultForecastHorizon,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RegisterCaches hooks the ledger's read caches into a cleanup manager.
func (l *Ledger) RegisterCaches(m *cache.Manager) {
	m.Register(l.accounts)
}

func (l *Ledger) account(ctx context.Context, id string) (core.Account, error) {
	if a, ok := l.accounts.Get(id); ok {
		return a, nil
	}
	a, err := l.repo.Queries().GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	l.accounts.Set(id, a)
	return a, nil
}

// AddAccount validates and stores a new payment account.
func (l *Ledger) AddAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := l.repo.Queries().CreateAccount(ctx, a); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "account created", log.FieldAccount, a.ID, "type", string(a.Type))
	return nil
}

func (l *Ledger) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return l.repo.Queries().ListAccounts(ctx)
}

// CreateTransaction builds and stores a single entry and absorbs it into its
// budget envelope if one is linked.
func (l *Ledger) CreateTransaction(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	if in.Date.IsZero() {
		in.Date = l.now()
	}
	account, err := l.account(ctx, in.Account)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := l.checkBudgetRef(ctx, in.Budget); err != nil {
		return core.Transaction{}, err
	}
	tx, err := buildSingle(in, account)
	if err != nil {
		return core.Transaction{}, err
	}

	err = l.repo.WithTx(ctx, func(q *storage.Queries) error {
		id, err := q.InsertTransaction(ctx, tx)
		if err != nil {
			return err
		}
		tx.ID = id
		return applyExpense(ctx, q, tx)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	l.logger.InfoContext(ctx, "transaction created",
		log.FieldTransactionID, tx.ID,
		log.FieldDescription, tx.Description,
		log.FieldAmountCents, tx.Amount.Cents,
		log.FieldBudget, tx.Budget)
	return tx, nil
}

// CreateInstallments stores a full installment plan as one origin group.
func (l *Ledger) CreateInstallments(ctx context.Context, in InstallmentPlan) ([]core.Transaction, error) {
	if in.Date.IsZero() {
		in.Date = l.now()
	}
	account, err := l.account(ctx, in.Account)
	if err != nil {
		return nil, err
	}
	if err := l.checkBudgetRef(ctx, in.Budget); err != nil {
		return nil, err
	}
	rows, err := buildInstallments(in, account)
	if err != nil {
		return nil, err
	}
	if err := l.insertGroup(ctx, rows); err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "installment plan created",
		log.FieldOriginID, rows[0].OriginID,
		log.FieldDescription, in.Description,
		"installments", len(rows))
	return rows, nil
}

// CreateSplit stores a split purchase as one origin group.
func (l *Ledger) CreateSplit(ctx context.Context, in SplitRequest) ([]core.Transaction, error) {
	if in.Date.IsZero() {
		in.Date = l.now()
	}
	account, err := l.account(ctx, in.Account)
	if err != nil {
		return nil, err
	}
	for _, line := range in.Lines {
		if err := l.checkBudgetRef(ctx, line.Budget); err != nil {
			return nil, err
		}
	}
	rows, err := buildSplit(in, account)
	if err != nil {
		return nil, err
	}
	if err := l.insertGroup(ctx, rows); err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "split created",
		log.FieldOriginID, rows[0].OriginID,
		log.FieldDescription, in.Description,
		"lines", len(rows))
	return rows, nil
}

func (l *Ledger) insertGroup(ctx context.Context, rows []core.Transaction) error {
	return l.repo.WithTx(ctx, func(q *storage.Queries) error {
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

// checkBudgetRef fails fast on a dangling or non-budget reference before a
// mutation touches the store.
func (l *Ledger) checkBudgetRef(ctx context.Context, budgetID string) error {
	if budgetID == "" {
		return nil
	}
	sub, err := l.repo.Queries().GetSubscription(ctx, budgetID)
	if err != nil {
		return fmt.Errorf("%w: unknown budget %s", core.ErrValidation, budgetID)
	}
	if !sub.IsBudget {
		return fmt.Errorf("%w: subscription %s is not a budget", core.ErrValidation, budgetID)
	}
	return nil
}

// CreateSubscription registers a recurring event. The rows themselves appear
// on the next rollover, which the caller is expected to run right after.
func (l *Ledger) CreateSubscription(ctx context.Context, sub core.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if _, err := l.account(ctx, sub.PaymentAccountID); err != nil {
		return fmt.Errorf("%w: unknown account %s", core.ErrValidation, sub.PaymentAccountID)
	}
	if err := l.repo.Queries().CreateSubscription(ctx, sub); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "subscription created",
		log.FieldSubscriptionID, sub.ID,
		"is_budget", sub.IsBudget,
		log.FieldAmountCents, sub.MonthlyAmount.Cents)
	return nil
}

// DeleteSubscription removes a subscription and its remaining forecast rows.
// It refuses while committed rows still reference the subscription, so
// realized history can never be orphaned.
func (l *Ledger) DeleteSubscription(ctx context.Context, id string) error {
	return l.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetSubscription(ctx, id); err != nil {
			return err
		}
		n, err := q.CountCommittedForOrigin(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: subscription %s has %d committed transactions", core.ErrConstraintViolation, id, n)
		}
		if err := q.DeleteForecastsForOrigin(ctx, id); err != nil {
			return err
		}
		return q.DeleteSubscription(ctx, id)
	})
}

func (l *Ledger) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	return l.repo.Queries().ListSubscriptions(ctx)
}

// ListBudgets returns only the subscriptions that carry an envelope.
func (l *Ledger) ListBudgets(ctx context.Context) ([]core.Subscription, error) {
	subs, err := l.repo.Queries().ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	budgets := subs[:0]
	for _, s := range subs {
		if s.IsBudget {
			budgets = append(budgets, s)
		}
	}
	return budgets, nil
}

// Classify reports the derived group shape of a transaction.
func (l *Ledger) Classify(ctx context.Context, txID int64) (GroupInfo, error) {
	return classifyGroup(ctx, l.repo.Queries(), txID)
}
