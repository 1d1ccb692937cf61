package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"cashflow/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedAccount(t *testing.T, q *Queries, a core.Account) {
	t.Helper()
	if err := q.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedAccount(t, q, core.Account{ID: "wallet", Type: core.Cash})

	in := core.Transaction{
		DateCreated: day(2026, time.March, 10),
		DatePayed:   day(2026, time.April, 5),
		Description: "groceries",
		Account:     "wallet",
		Amount:      core.Money{Cents: -3750},
		Category:    "food",
		Status:      core.StatusCommitted,
	}
	id, err := q.InsertTransaction(ctx, in)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := q.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	in.ID = id
	if got != in {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, in)
	}

	if err := q.SetTransactionStatus(ctx, id, core.StatusPending); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ = q.GetTransaction(ctx, id)
	if got.Status != core.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}

	if err := q.DeleteTransaction(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := q.GetTransaction(ctx, id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestNotFoundMapping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()

	if _, err := q.GetTransaction(ctx, 42); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetTransaction: err = %v, want ErrNotFound", err)
	}
	if _, err := q.GetAccount(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetAccount: err = %v, want ErrNotFound", err)
	}
	if _, err := q.GetSubscription(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetSubscription: err = %v, want ErrNotFound", err)
	}
	if _, err := q.GetSetting(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetSetting: err = %v, want ErrNotFound", err)
	}
	if err := q.DeleteTransaction(ctx, 42); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteTransaction: err = %v, want ErrNotFound", err)
	}
}

func TestListByOriginOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedAccount(t, q, core.Account{ID: "visa", Type: core.CreditCard, CutOffDay: 25, PaymentDay: 5})

	for i, d := range []time.Time{day(2026, time.May, 5), day(2026, time.March, 5), day(2026, time.April, 5)} {
		_, err := q.InsertTransaction(ctx, core.Transaction{
			DateCreated: d,
			DatePayed:   d,
			Description: "tv (1/3)",
			Account:     "visa",
			Amount:      core.Money{Cents: -10000},
			Status:      core.StatusForecast,
			OriginID:    "20260305-abc",
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	group, err := q.ListByOrigin(ctx, "20260305-abc")
	if err != nil {
		t.Fatalf("list by origin: %v", err)
	}
	if len(group) != 3 {
		t.Fatalf("got %d rows, want 3", len(group))
	}
	for i := 1; i < len(group); i++ {
		if group[i].DateCreated.Before(group[i-1].DateCreated) {
			t.Errorf("group not in creation order: %v before %v", group[i].DateCreated, group[i-1].DateCreated)
		}
	}
}

func TestAllocationQueries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedAccount(t, q, core.Account{ID: "bank", Type: core.BankAccount})

	// Allocation row: origin and budget both carry the budget id.
	alloc := core.Transaction{
		DateCreated: day(2026, time.March, 1),
		DatePayed:   day(2026, time.March, 1),
		Description: "Groceries",
		Account:     "bank",
		Amount:      core.Money{Cents: -40000},
		Budget:      "sub-groceries",
		Status:      core.StatusCommitted,
		OriginID:    "sub-groceries",
	}
	if _, err := q.InsertTransaction(ctx, alloc); err != nil {
		t.Fatalf("insert allocation: %v", err)
	}

	// Two linked expenses, one pending.
	expense := alloc
	expense.OriginID = ""
	expense.Description = "weekly shop"
	expense.Amount = core.Money{Cents: -12000}
	if _, err := q.InsertTransaction(ctx, expense); err != nil {
		t.Fatal(err)
	}
	expense.Status = core.StatusPending
	if _, err := q.InsertTransaction(ctx, expense); err != nil {
		t.Fatal(err)
	}

	got, err := q.GetAllocation(ctx, "sub-groceries", "2026-03")
	if err != nil {
		t.Fatalf("get allocation: %v", err)
	}
	if got.Amount.Cents != -40000 {
		t.Errorf("allocation amount = %d, want -40000", got.Amount.Cents)
	}

	if _, err := q.GetAllocation(ctx, "sub-groceries", "2026-04"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing month: err = %v, want ErrNotFound", err)
	}

	expenses, err := q.ListBudgetMonthExpenses(ctx, "sub-groceries", "2026-03")
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("got %d expenses, want 1 (pending excluded, allocation excluded)", len(expenses))
	}
	if expenses[0].Amount.Cents != -12000 {
		t.Errorf("expense amount = %d", expenses[0].Amount.Cents)
	}
}

func TestCommitForecastsThroughMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedAccount(t, q, core.Account{ID: "bank", Type: core.BankAccount})

	for _, d := range []time.Time{day(2026, time.February, 1), day(2026, time.March, 1), day(2026, time.April, 1)} {
		if _, err := q.InsertTransaction(ctx, core.Transaction{
			DateCreated: d, DatePayed: d, Description: "rent", Account: "bank",
			Amount: core.Money{Cents: -80000}, Status: core.StatusForecast, OriginID: "sub-rent",
		}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := q.CommitForecasts(ctx, "2026-03")
	if err != nil {
		t.Fatalf("commit forecasts: %v", err)
	}
	if n != 2 {
		t.Errorf("committed %d rows, want 2", n)
	}

	left, _ := q.ListByStatus(ctx, core.StatusForecast)
	if len(left) != 1 || !left[0].DateCreated.Equal(day(2026, time.April, 1)) {
		t.Errorf("remaining forecasts = %+v, want only the april row", left)
	}

	key, ok, err := q.LatestGeneratedMonth(ctx, "sub-rent")
	if err != nil || !ok || key != "2026-04" {
		t.Errorf("LatestGeneratedMonth = %q, %v, %v; want 2026-04", key, ok, err)
	}
	if _, ok, _ := q.LatestGeneratedMonth(ctx, "nope"); ok {
		t.Error("LatestGeneratedMonth for unknown origin should report ok=false")
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedAccount(t, repo.Queries(), core.Account{ID: "wallet", Type: core.Cash})

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(q *Queries) error {
		if _, err := q.InsertTransaction(ctx, core.Transaction{
			DateCreated: day(2026, time.March, 1), DatePayed: day(2026, time.March, 1),
			Description: "doomed", Account: "wallet", Amount: core.Money{Cents: -100},
			Status: core.StatusCommitted,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}

	all, err := repo.Queries().ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("ledger has %d rows after rollback, want 0", len(all))
	}
}

func TestSubscriptionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedAccount(t, q, core.Account{ID: "bank", Type: core.BankAccount})

	in := core.Subscription{
		ID:               "sub-gym",
		Name:             "Gym",
		Category:         "health",
		MonthlyAmount:    core.Money{Cents: 4500},
		PaymentAccountID: "bank",
		StartDate:        day(2026, time.January, 1),
		Underspend:       core.UnderspendKeep,
	}
	if err := q.CreateSubscription(ctx, in); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := q.GetSubscription(ctx, "sub-gym")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != in {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, in)
	}

	in.MonthlyAmount = core.Money{Cents: 5000}
	in.EndDate = day(2026, time.December, 31)
	if err := q.UpdateSubscription(ctx, in); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = q.GetSubscription(ctx, "sub-gym")
	if got.MonthlyAmount.Cents != 5000 || !got.EndDate.Equal(in.EndDate) {
		t.Errorf("update not persisted: %+v", got)
	}

	if err := q.DeleteSubscription(ctx, "sub-gym"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := q.GetSubscription(ctx, "sub-gym"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get after delete: err = %v", err)
	}
}

func TestSettingsUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()

	if err := q.SetSetting(ctx, "forecast_horizon", "3"); err != nil {
		t.Fatal(err)
	}
	if err := q.SetSetting(ctx, "forecast_horizon", "6"); err != nil {
		t.Fatal(err)
	}
	got, err := q.GetSetting(ctx, "forecast_horizon")
	if err != nil || got != "6" {
		t.Errorf("GetSetting = %q, %v; want 6", got, err)
	}
}
