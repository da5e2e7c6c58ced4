// Package analytics derives dashboard metrics from the transaction log.
//
// Every function here is pure: the same inputs always produce the same
// output and nothing is retained between calls. Money sums are done in
// cents; only percentages use floating point.
package analytics

import (
	"strings"
	"time"

	"lifedash/internal/core"
)

// Summary is the income/expense/balance triple for a set of transactions.
// Expense is reported as a positive amount.
type Summary struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Balance core.Money `json:"balance"`
}

// DayBucket is one day of the weekly expense chart.
type DayBucket struct {
	Date    core.Date  `json:"date"`
	Weekday string     `json:"weekday"`
	Expense core.Money `json:"expense"`
}

// Window is an inclusive day range inside the current month.
type Window struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
}

// WeekBucket is one window of the monthly-by-week expense chart.
type WeekBucket struct {
	Window
	Expense core.Money `json:"expense"`
}

// CategorySpend is the derived spend against one budget category.
type CategorySpend struct {
	Category   core.BudgetCategory `json:"category"`
	Spent      core.Money          `json:"spent"`
	Remaining  core.Money          `json:"remaining"`
	Percentage float64             `json:"percentage"`
}

// Totals sums income and expense over txs. Balance is always Income - Expense.
func Totals(txs []core.Transaction) Summary {
	var income, expense int64
	for _, tx := range txs {
		switch {
		case tx.IsIncome():
			income += tx.Amount.Cents
		case tx.IsExpense():
			expense -= tx.Amount.Cents
		}
	}
	return Summary{
		Income:  core.Money{Cents: income},
		Expense: core.Money{Cents: expense},
		Balance: core.Money{Cents: income - expense},
	}
}

// FilterMonth keeps transactions dated in month of now's year. Earlier
// years are never selected.
func FilterMonth(txs []core.Transaction, month time.Month, now time.Time) []core.Transaction {
	year := now.Year()
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.IsEmpty() {
			continue
		}
		if tx.Date.Month() == month && tx.Date.Year() == year {
			out = append(out, tx)
		}
	}
	return out
}

// MonthlySummary is Totals over FilterMonth.
func MonthlySummary(txs []core.Transaction, month time.Month, now time.Time) Summary {
	return Totals(FilterMonth(txs, month, now))
}

// WeekStart returns midnight of the Monday of now's week.
func WeekStart(now time.Time) time.Time {
	offset := 1 - int(now.Weekday())
	if now.Weekday() == time.Sunday {
		offset = -6
	}
	y, m, d := now.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, now.Location())
}

// WeeklyExpenses returns Monday..Sunday of the current week with the
// absolute expense booked on each day.
func WeeklyExpenses(txs []core.Transaction, now time.Time) [7]DayBucket {
	var buckets [7]DayBucket
	start := WeekStart(now)
	for i := range buckets {
		day := start.AddDate(0, 0, i)
		buckets[i] = DayBucket{
			Date:    core.NewDate(day.Year(), int(day.Month()), day.Day()),
			Weekday: day.Weekday().String()[:3],
		}
		var sum int64
		for _, tx := range txs {
			if tx.IsExpense() && tx.Date.SameDay(day) {
				sum += tx.Amount.Abs().Cents
			}
		}
		buckets[i].Expense = core.Money{Cents: sum}
	}
	return buckets
}

// MonthWindows splits now's month into [1,7] [8,14] [15,21] [22,last].
func MonthWindows(now time.Time) [4]Window {
	y, m, _ := now.Date()
	last := daysInMonth(m, y)
	var out [4]Window
	for i := range out {
		startDay := 1 + 7*i
		endDay := startDay + 6
		if i == len(out)-1 {
			endDay = last
		}
		out[i] = Window{
			Start: core.NewDate(y, int(m), startDay),
			End:   core.NewDate(y, int(m), endDay),
		}
	}
	return out
}

// Contains reports whether d is inside the window, bounds included.
func (w Window) Contains(d core.Date) bool {
	if d.IsEmpty() {
		return false
	}
	day := core.NewDate(d.Year(), int(d.Month()), d.Day())
	return !day.Before(w.Start.Time) && !day.After(w.End.Time)
}

// MonthlyExpensesByWeek sums absolute expenses per MonthWindows window.
func MonthlyExpensesByWeek(txs []core.Transaction, now time.Time) [4]WeekBucket {
	var out [4]WeekBucket
	for i, w := range MonthWindows(now) {
		var sum int64
		for _, tx := range txs {
			if tx.IsExpense() && w.Contains(tx.Date) {
				sum += tx.Amount.Abs().Cents
			}
		}
		out[i] = WeekBucket{Window: w, Expense: core.Money{Cents: sum}}
	}
	return out
}

// MatchesCategory is the fuzzy category test: case-insensitive substring
// containment in either direction. Blank strings never match.
func MatchesCategory(txCategory, budgetName string) bool {
	a := strings.ToLower(strings.TrimSpace(txCategory))
	b := strings.ToLower(strings.TrimSpace(budgetName))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// SpentIn sums absolute all-time expenses matching category.
func SpentIn(txs []core.Transaction, category core.BudgetCategory) core.Money {
	var sum int64
	for _, tx := range txs {
		if tx.IsExpense() && MatchesCategory(tx.Category, category.Name) {
			sum += tx.Amount.Abs().Cents
		}
	}
	return core.Money{Cents: sum}
}

// CategorySpending computes spend for each category independently. A
// transaction matching several categories counts toward each of them.
func CategorySpending(txs []core.Transaction, categories []core.BudgetCategory) []CategorySpend {
	out := make([]CategorySpend, 0, len(categories))
	for _, c := range categories {
		spent := SpentIn(txs, c)
		out = append(out, CategorySpend{
			Category:   c,
			Spent:      spent,
			Remaining:  core.Money{Cents: c.Total.Cents - spent.Cents},
			Percentage: BudgetPercentage(spent, c.Total),
		})
	}
	return out
}

// BudgetPercentage is min(spent/total, 100%). A non-positive total yields 0.
func BudgetPercentage(spent, total core.Money) float64 {
	if total.Cents <= 0 {
		return 0
	}
	pct := float64(spent.Cents) / float64(total.Cents) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// BudgetRemaining is limit minus expense; negative means overage.
func BudgetRemaining(limit, expense core.Money) core.Money {
	return core.Money{Cents: limit.Cents - expense.Cents}
}

// SavingsPercentage is min(balance/goal, 100%) with no lower clamp, so a
// negative balance yields a negative percentage. A non-positive goal yields 0.
func SavingsPercentage(balance, goal core.Money) float64 {
	if goal.Cents <= 0 {
		return 0
	}
	pct := float64(balance.Cents) / float64(goal.Cents) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

func daysInMonth(month time.Month, year int) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
