package analytics

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lifedash/internal/core"
)

func TestBuildOverview(t *testing.T) {
	now := time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC)
	in := Input{
		Transactions: []core.Transaction{
			tx(1500000, "Salary", 2025, 10, 30),
			tx(-150000, "Food & Dining", 2025, 11, 1),
			tx(-15000, "Food & Dining", 2025, 10, 30),
		},
		Categories: []core.BudgetCategory{{ID: "c1", Name: "Food", Total: core.Money{Cents: 100000}}},
		Settings: core.Settings{
			MonthlyBudgetLimit: core.Money{Cents: 100000},
			SavingsGoal:        core.Money{Cents: 2670000},
		},
	}

	ov := BuildOverview(in, time.October, now)

	if ov.Period.Income.Cents != 1500000 || ov.Period.Expense.Cents != 15000 {
		t.Fatalf("unexpected period %+v", ov.Period)
	}
	if ov.AllTime.Balance.Cents != 1335000 {
		t.Fatalf("unexpected all-time balance %d", ov.AllTime.Balance.Cents)
	}
	if !ov.Budget.Exceeded || ov.Budget.Remaining.Cents != -65000 || ov.Budget.Percentage != 100 {
		t.Fatalf("unexpected budget %+v", ov.Budget)
	}
	if ov.Savings.Current != ov.AllTime.Balance || ov.Savings.Percentage != 50 {
		t.Fatalf("unexpected savings %+v", ov.Savings)
	}
	if ov.Categories[0].Spent.Cents != 165000 || ov.Categories[0].Percentage != 100 {
		t.Fatalf("unexpected category spend %+v", ov.Categories[0])
	}
	if ov.Monthly[0].Expense.Cents != 150000 {
		t.Fatalf("expected November 1 expense in first window, got %+v", ov.Monthly[0])
	}
}

func TestBuildOverviewEmpty(t *testing.T) {
	ov := BuildOverview(Input{}, time.January, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	if ov.AllTime != (Summary{}) || ov.Budget.Exceeded || ov.Savings.Percentage != 0 {
		t.Fatalf("expected zero overview, got %+v", ov)
	}
	if len(ov.Categories) != 0 {
		t.Fatalf("expected no categories, got %d", len(ov.Categories))
	}
}

func TestMemoRecomputesOnlyOnDependencyChange(t *testing.T) {
	memo := NewMemo(16, time.Hour)
	now := time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC)
	var loads int32
	load := func() Input {
		atomic.AddInt32(&loads, 1)
		return Input{Transactions: []core.Transaction{tx(-100, "a", 2025, 11, 5)}}
	}

	memo.Overview(1, load, time.November, now)
	memo.Overview(1, load, time.November, now.Add(time.Hour)) // same day
	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Fatalf("expected 1 load for unchanged inputs, got %d", got)
	}

	memo.Overview(2, load, time.November, now) // store mutated
	memo.Overview(2, load, time.October, now)  // period changed
	memo.Overview(2, load, time.October, now.AddDate(0, 0, 1))
	if got := atomic.LoadInt32(&loads); got != 4 {
		t.Fatalf("expected 4 loads, got %d", got)
	}
	// the version 1 entry was dropped once version 2 arrived
	if got := memo.Cache().Size(); got != 3 {
		t.Fatalf("expected 3 cached overviews, got %d", got)
	}
}

func TestMemoConcurrentMisses(t *testing.T) {
	memo := NewMemo(16, time.Hour)
	now := time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC)
	load := func() Input { return Input{} }

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			memo.Overview(7, load, time.November, now)
		}()
	}
	wg.Wait()
	if memo.Cache().Size() != 1 {
		t.Fatalf("expected one cached overview, got %d", memo.Cache().Size())
	}
}
