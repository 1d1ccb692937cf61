package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cashflow/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same queries run
// inside and outside transactions.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

const transactionColumns = `id, date_created, date_payed, description, account, amount_cents, category, budget, status, origin_id`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t              core.Transaction
		created, payed string
		status         string
	)
	err := row.Scan(&t.ID, &created, &payed, &t.Description, &t.Account,
		&t.Amount.Cents, &t.Category, &t.Budget, &status, &t.OriginID)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Status = core.Status(status)
	if t.DateCreated, err = parseDate(created); err != nil {
		return core.Transaction{}, fmt.Errorf("parse date_created %q: %w", created, err)
	}
	if t.DatePayed, err = parseDate(payed); err != nil {
		return core.Transaction{}, fmt.Errorf("parse date_payed %q: %w", payed, err)
	}
	return t, nil
}

func (q *Queries) listTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTransaction stores a new row and returns its id.
func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (date_created, date_payed, description, account, amount_cents, category, budget, status, origin_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatDate(t.DateCreated), formatDate(t.DatePayed), t.Description, t.Account,
		t.Amount.Cents, t.Category, t.Budget, string(t.Status), t.OriginID)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// UpdateTransaction rewrites every mutable field of the row.
func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions
		SET date_created = ?, date_payed = ?, description = ?, account = ?,
		    amount_cents = ?, category = ?, budget = ?, status = ?, origin_id = ?
		WHERE id = ?`,
		formatDate(t.DateCreated), formatDate(t.DatePayed), t.Description, t.Account,
		t.Amount.Cents, t.Category, t.Budget, string(t.Status), t.OriginID, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireAffected(res, t.ID)
}

func (q *Queries) SetTransactionAmount(ctx context.Context, id int64, amount core.Money) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET amount_cents = ? WHERE id = ?`, amount.Cents, id)
	if err != nil {
		return fmt.Errorf("set transaction amount: %w", err)
	}
	return requireAffected(res, id)
}

func (q *Queries) SetTransactionStatus(ctx context.Context, id int64, status core.Status) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("set transaction status: %w", err)
	}
	return requireAffected(res, id)
}

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// ListByOrigin returns every row of a group in creation order.
func (q *Queries) ListByOrigin(ctx context.Context, originID string) ([]core.Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE origin_id = ? ORDER BY date_created, id`,
		originID)
}

func (q *Queries) DeleteByOrigin(ctx context.Context, originID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE origin_id = ?`, originID)
	if err != nil {
		return fmt.Errorf("delete group %s: %w", originID, err)
	}
	return nil
}

// ListAll returns the whole ledger ordered by payment date then id, the order
// the running balance is computed in.
func (q *Queries) ListAll(ctx context.Context) ([]core.Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY date_payed, id`)
}

// ListAllOrdered returns the whole ledger ordered by the named date column.
// The column is whitelisted, never interpolated from caller input directly.
func (q *Queries) ListAllOrdered(ctx context.Context, orderBy string) ([]core.Transaction, error) {
	var column string
	switch orderBy {
	case "date_created":
		column = "date_created"
	default:
		column = "date_payed"
	}
	return q.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY `+column+`, id`)
}

func (q *Queries) ListByStatus(ctx context.Context, status core.Status) ([]core.Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE status = ? ORDER BY date_payed, id`,
		string(status))
}

// GetAllocation returns the envelope row for a budget month. The allocation
// is the single row where both origin_id and budget carry the budget's id.
func (q *Queries) GetAllocation(ctx context.Context, budgetID, monthKey string) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE origin_id = ? AND budget = ? AND strftime('%Y-%m', date_payed) = ?`,
		budgetID, budgetID, monthKey)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("allocation for %s in %s: %w", budgetID, monthKey, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get allocation: %w", err)
	}
	return t, nil
}

// ListAllocations returns every allocation row of a budget in month order.
func (q *Queries) ListAllocations(ctx context.Context, budgetID string) ([]core.Transaction, error) {
	return q.listTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE origin_id = ? AND budget = ? ORDER BY date_payed, id`,
		budgetID, budgetID)
}

// ListAllocationsBefore returns allocation rows whose month precedes monthKey.
func (q *Queries) ListAllocationsBefore(ctx context.Context, budgetID, monthKey string) ([]core.Transaction, error) {
	return q.listTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE origin_id = ? AND budget = ? AND strftime('%Y-%m', date_payed) < ?
		ORDER BY date_payed, id`,
		budgetID, budgetID, monthKey)
}

// ListBudgetMonthExpenses returns the non-pending expenses linked to a budget
// in one month, excluding the allocation row itself, in creation order.
func (q *Queries) ListBudgetMonthExpenses(ctx context.Context, budgetID, monthKey string) ([]core.Transaction, error) {
	return q.listTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE budget = ? AND origin_id != ? AND status != ?
		  AND strftime('%Y-%m', date_payed) = ?
		ORDER BY date_created, id`,
		budgetID, budgetID, string(core.StatusPending), monthKey)
}

// DeleteReleases removes settlement release rows a budget produced for one
// month. Release rows carry the budget's origin_id but an empty budget field.
func (q *Queries) DeleteReleases(ctx context.Context, budgetID, monthKey string) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE origin_id = ? AND budget = '' AND strftime('%Y-%m', date_payed) = ?`,
		budgetID, monthKey)
	if err != nil {
		return fmt.Errorf("delete releases for %s in %s: %w", budgetID, monthKey, err)
	}
	return nil
}

// CommitForecasts flips every forecast row dated in or before monthKey to
// committed and returns how many rows changed.
func (q *Queries) CommitForecasts(ctx context.Context, monthKey string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions SET status = ?
		WHERE status = ? AND strftime('%Y-%m', date_created) <= ?`,
		string(core.StatusCommitted), string(core.StatusForecast), monthKey)
	if err != nil {
		return 0, fmt.Errorf("commit forecasts: %w", err)
	}
	return res.RowsAffected()
}

// LatestGeneratedMonth returns the "YYYY-MM" key of the newest row a
// subscription has produced, or ok=false when none exist yet.
func (q *Queries) LatestGeneratedMonth(ctx context.Context, originID string) (string, bool, error) {
	var key sql.NullString
	err := q.db.QueryRowContext(ctx, `
		SELECT MAX(strftime('%Y-%m', date_created)) FROM transactions WHERE origin_id = ?`,
		originID).Scan(&key)
	if err != nil {
		return "", false, fmt.Errorf("latest generated month: %w", err)
	}
	return key.String, key.Valid && key.String != "", nil
}

// DeleteForecastsAfter drops a subscription's forecast rows dated after
// monthKey, used when its amount or end date shrinks the plan.
func (q *Queries) DeleteForecastsAfter(ctx context.Context, originID, monthKey string) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE origin_id = ? AND status = ? AND strftime('%Y-%m', date_created) > ?`,
		originID, string(core.StatusForecast), monthKey)
	if err != nil {
		return fmt.Errorf("delete forecasts after %s: %w", monthKey, err)
	}
	return nil
}

// DeleteForecastsForOrigin drops every remaining forecast row of a group.
func (q *Queries) DeleteForecastsForOrigin(ctx context.Context, originID string) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM transactions WHERE origin_id = ? AND status = ?`,
		originID, string(core.StatusForecast))
	if err != nil {
		return fmt.Errorf("delete forecasts for %s: %w", originID, err)
	}
	return nil
}

// CountCommittedForOrigin counts committed rows in a group, used to guard
// subscription deletion.
func (q *Queries) CountCommittedForOrigin(ctx context.Context, originID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE origin_id = ? AND status = ?`,
		originID, string(core.StatusCommitted)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count committed rows: %w", err)
	}
	return n, nil
}

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO accounts (id, type, cut_off_day, payment_day) VALUES (?, ?, ?, ?)`,
		a.ID, string(a.Type), a.CutOffDay, a.PaymentDay)
	if err != nil {
		return fmt.Errorf("create account %s: %w", a.ID, err)
	}
	return nil
}

func (q *Queries) GetAccount(ctx context.Context, id string) (core.Account, error) {
	var (
		a   core.Account
		typ string
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, type, cut_off_day, payment_day FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &typ, &a.CutOffDay, &a.PaymentDay)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	a.Type = core.AccountType(typ)
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, type, cut_off_day, payment_day FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var (
			a   core.Account
			typ string
		)
		if err := rows.Scan(&a.ID, &typ, &a.CutOffDay, &a.PaymentDay); err != nil {
			return nil, err
		}
		a.Type = core.AccountType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) CreateSubscription(ctx context.Context, s core.Subscription) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, name, category, monthly_amount_cents, payment_account_id, start_date, end_date, is_budget, underspend, is_income)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Category, s.MonthlyAmount.Cents, s.PaymentAccountID,
		formatDate(s.StartDate), formatDate(s.EndDate),
		boolToInt(s.IsBudget), string(s.Underspend), boolToInt(s.IsIncome))
	if err != nil {
		return fmt.Errorf("create subscription %s: %w", s.ID, err)
	}
	return nil
}

func (q *Queries) GetSubscription(ctx context.Context, id string) (core.Subscription, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, category, monthly_amount_cents, payment_account_id, start_date, end_date, is_budget, underspend, is_income
		FROM subscriptions WHERE id = ?`, id)
	s, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

func scanSubscription(row interface{ Scan(...any) error }) (core.Subscription, error) {
	var (
		s                  core.Subscription
		start, end         string
		underspend         string
		isBudget, isIncome int
	)
	err := row.Scan(&s.ID, &s.Name, &s.Category, &s.MonthlyAmount.Cents,
		&s.PaymentAccountID, &start, &end, &isBudget, &underspend, &isIncome)
	if err != nil {
		return core.Subscription{}, err
	}
	s.Underspend = core.UnderspendBehavior(underspend)
	s.IsBudget = isBudget != 0
	s.IsIncome = isIncome != 0
	if s.StartDate, err = parseDate(start); err != nil {
		return core.Subscription{}, fmt.Errorf("parse start_date %q: %w", start, err)
	}
	if s.EndDate, err = parseDate(end); err != nil {
		return core.Subscription{}, fmt.Errorf("parse end_date %q: %w", end, err)
	}
	return s, nil
}

func (q *Queries) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, category, monthly_amount_cents, payment_account_id, start_date, end_date, is_budget, underspend, is_income
		FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []core.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateSubscription(ctx context.Context, s core.Subscription) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET name = ?, category = ?, monthly_amount_cents = ?, payment_account_id = ?,
		    start_date = ?, end_date = ?, is_budget = ?, underspend = ?, is_income = ?
		WHERE id = ?`,
		s.Name, s.Category, s.MonthlyAmount.Cents, s.PaymentAccountID,
		formatDate(s.StartDate), formatDate(s.EndDate),
		boolToInt(s.IsBudget), string(s.Underspend), boolToInt(s.IsIncome), s.ID)
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", s.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("subscription %s: %w", s.ID, core.ErrNotFound)
	}
	return nil
}

func (q *Queries) DeleteSubscription(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

func (q *Queries) SetSetting(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
