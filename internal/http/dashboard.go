package http

import (
	"net/http"
	"time"

	"lifedash/internal/analytics"
	"lifedash/internal/core"
)

type settingsBody struct {
	MonthlyBudgetLimit *decimalInput `json:"monthly_budget_limit"`
	SavingsGoal        *decimalInput `json:"savings_goal"`
}

type settingsView struct {
	MonthlyBudgetLimit amountView `json:"monthly_budget_limit"`
	SavingsGoal        amountView `json:"savings_goal"`
}

func (s *Server) settingsView(st core.Settings) settingsView {
	return settingsView{
		MonthlyBudgetLimit: s.amount(st.MonthlyBudgetLimit),
		SavingsGoal:        s.amount(st.SavingsGoal),
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settingsView(s.deps.Store.Snapshot().Settings()))
}

// handlePutSettings updates the fields present in the body; absent fields
// keep their value.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	var limit, goal *core.Money
	if body.MonthlyBudgetLimit != nil {
		cents, err := core.ParseNonNegativeDecimalToCents(string(*body.MonthlyBudgetLimit))
		if err != nil {
			s.writeError(w, r, invalidInput("invalid monthly_budget_limit: %v", err))
			return
		}
		limit = &core.Money{Cents: cents}
	}
	if body.SavingsGoal != nil {
		cents, err := core.ParseNonNegativeDecimalToCents(string(*body.SavingsGoal))
		if err != nil {
			s.writeError(w, r, invalidInput("invalid savings_goal: %v", err))
			return
		}
		goal = &core.Money{Cents: cents}
	}
	settings, err := s.deps.Store.UpdateSettings(r.Context(), func(st *core.Settings) {
		if limit != nil {
			st.MonthlyBudgetLimit = *limit
		}
		if goal != nil {
			st.SavingsGoal = *goal
		}
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.settingsView(settings))
}

type summaryView struct {
	Income  amountView `json:"income"`
	Expense amountView `json:"expense"`
	Balance amountView `json:"balance"`
}

type budgetView struct {
	Limit      amountView `json:"limit"`
	Spent      amountView `json:"spent"`
	Remaining  amountView `json:"remaining"`
	Percentage float64    `json:"percentage"`
	Percent    string     `json:"percent"`
	Exceeded   bool       `json:"exceeded"`
}

type savingsView struct {
	Goal       amountView `json:"goal"`
	Current    amountView `json:"current"`
	Percentage float64    `json:"percentage"`
	Percent    string     `json:"percent"`
}

type dayView struct {
	Date    string     `json:"date"`
	Weekday string     `json:"weekday"`
	Expense amountView `json:"expense"`
}

type weekView struct {
	Start   string     `json:"start"`
	End     string     `json:"end"`
	Expense amountView `json:"expense"`
}

type categorySpendView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Icon       string     `json:"icon,omitempty"`
	Total      amountView `json:"total"`
	Spent      amountView `json:"spent"`
	Remaining  amountView `json:"remaining"`
	Percentage float64    `json:"percentage"`
	Percent    string     `json:"percent"`
}

type overviewView struct {
	Year       int                 `json:"year"`
	Month      int                 `json:"month"`
	MonthName  string              `json:"month_name"`
	Currency   string              `json:"currency"`
	Period     summaryView         `json:"period"`
	AllTime    summaryView         `json:"all_time"`
	Budget     budgetView          `json:"budget"`
	Savings    savingsView         `json:"savings"`
	Weekly     []dayView           `json:"weekly"`
	Monthly    []weekView          `json:"monthly"`
	Categories []categorySpendView `json:"categories"`
}

func (s *Server) summaryView(sum analytics.Summary) summaryView {
	return summaryView{
		Income:  s.amount(sum.Income),
		Expense: s.amount(sum.Expense),
		Balance: s.amount(sum.Balance),
	}
}

func (s *Server) budgetView(b analytics.Budget) budgetView {
	return budgetView{
		Limit:      s.amount(b.Limit),
		Spent:      s.amount(b.Spent),
		Remaining:  s.amount(b.Remaining),
		Percentage: b.Percentage,
		Percent:    s.deps.Formatter.Percent(b.Percentage),
		Exceeded:   b.Exceeded,
	}
}

func (s *Server) weeklyView(ov analytics.Overview) []dayView {
	out := make([]dayView, len(ov.Weekly))
	for i, d := range ov.Weekly {
		out[i] = dayView{Date: d.Date.String(), Weekday: d.Weekday, Expense: s.amount(d.Expense)}
	}
	return out
}

func (s *Server) monthlyView(ov analytics.Overview) []weekView {
	out := make([]weekView, len(ov.Monthly))
	for i, w := range ov.Monthly {
		out[i] = weekView{Start: w.Start.String(), End: w.End.String(), Expense: s.amount(w.Expense)}
	}
	return out
}

func (s *Server) categoriesView(ov analytics.Overview) []categorySpendView {
	out := make([]categorySpendView, len(ov.Categories))
	for i, c := range ov.Categories {
		out[i] = categorySpendView{
			ID:         c.Category.ID,
			Name:       c.Category.Name,
			Label:      s.deps.Formatter.Label(c.Category.Name),
			Icon:       c.Category.Icon,
			Total:      s.amount(c.Category.Total),
			Spent:      s.amount(c.Spent),
			Remaining:  s.amount(c.Remaining),
			Percentage: c.Percentage,
			Percent:    s.deps.Formatter.Percent(c.Percentage),
		}
	}
	return out
}

func (s *Server) overviewView(ov analytics.Overview) overviewView {
	return overviewView{
		Year:      ov.Year,
		Month:     int(ov.Month),
		MonthName: ov.Month.String(),
		Currency:  s.deps.Formatter.Currency.String(),
		Period:    s.summaryView(ov.Period),
		AllTime:   s.summaryView(ov.AllTime),
		Budget:    s.budgetView(ov.Budget),
		Savings: savingsView{
			Goal:       s.amount(ov.Savings.Goal),
			Current:    s.amount(ov.Savings.Current),
			Percentage: ov.Savings.Percentage,
			Percent:    s.deps.Formatter.Percent(ov.Savings.Percentage),
		},
		Weekly:     s.weeklyView(ov),
		Monthly:    s.monthlyView(ov),
		Categories: s.categoriesView(ov),
	}
}

func (s *Server) overview(w http.ResponseWriter, r *http.Request) (analytics.Overview, bool) {
	month, err := parseMonthParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return analytics.Overview{}, false
	}
	return s.deps.Dashboard.Overview(month), true
}

// handleOverview serves every dashboard metric for ?month= of the current year.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, ok := s.overview(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.overviewView(ov))
}

func (s *Server) handleWeeklyChart(w http.ResponseWriter, r *http.Request) {
	ov := s.deps.Dashboard.Overview(time.Month(0))
	writeJSON(w, http.StatusOK, map[string]any{"days": s.weeklyView(ov)})
}

func (s *Server) handleMonthlyChart(w http.ResponseWriter, r *http.Request) {
	ov := s.deps.Dashboard.Overview(time.Month(0))
	writeJSON(w, http.StatusOK, map[string]any{
		"year":  ov.Year,
		"month": int(s.now().Month()),
		"weeks": s.monthlyView(ov),
	})
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	ov := s.deps.Dashboard.Overview(time.Month(0))
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.categoriesView(ov),
		"budget":     s.budgetView(ov.Budget),
	})
}
