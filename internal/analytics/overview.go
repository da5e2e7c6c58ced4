package analytics

import (
	"time"

	"lifedash/internal/core"
)

// Input is the read-only slice of the record store the engine needs.
type Input struct {
	Transactions []core.Transaction
	Categories   []core.BudgetCategory
	Settings     core.Settings
}

// Budget is the aggregate spend ceiling view, compared against all-time expense.
type Budget struct {
	Limit      core.Money `json:"limit"`
	Spent      core.Money `json:"spent"`
	Remaining  core.Money `json:"remaining"`
	Percentage float64    `json:"percentage"`
	Exceeded   bool       `json:"exceeded"`
}

// Savings tracks the all-time balance against the savings goal.
type Savings struct {
	Goal       core.Money `json:"goal"`
	Current    core.Money `json:"current"`
	Percentage float64    `json:"percentage"`
}

// Overview bundles every derived metric for one (data, month, day) triple.
type Overview struct {
	Year       int             `json:"year"`
	Month      time.Month      `json:"month"`
	Period     Summary         `json:"period"`
	AllTime    Summary         `json:"all_time"`
	Weekly     [7]DayBucket    `json:"weekly"`
	Monthly    [4]WeekBucket   `json:"monthly"`
	Categories []CategorySpend `json:"categories"`
	Budget     Budget          `json:"budget"`
	Savings    Savings         `json:"savings"`
}

// BuildOverview computes the full dashboard for the selected month of now's year.
func BuildOverview(in Input, month time.Month, now time.Time) Overview {
	all := Totals(in.Transactions)
	limit := in.Settings.MonthlyBudgetLimit
	goal := in.Settings.SavingsGoal

	return Overview{
		Year:       now.Year(),
		Month:      month,
		Period:     MonthlySummary(in.Transactions, month, now),
		AllTime:    all,
		Weekly:     WeeklyExpenses(in.Transactions, now),
		Monthly:    MonthlyExpensesByWeek(in.Transactions, now),
		Categories: CategorySpending(in.Transactions, in.Categories),
		Budget: Budget{
			Limit:      limit,
			Spent:      all.Expense,
			Remaining:  BudgetRemaining(limit, all.Expense),
			Percentage: BudgetPercentage(all.Expense, limit),
			Exceeded:   limit.Cents > 0 && all.Expense.Cents > limit.Cents,
		},
		// Current savings is the all-time balance.
		Savings: Savings{
			Goal:       goal,
			Current:    all.Balance,
			Percentage: SavingsPercentage(all.Balance, goal),
		},
	}
}
