package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04"
	clockLayout    = "15:04"
)

type (
	// Date is a calendar date. The zero value means "missing or unparseable".
	Date struct {
		time.Time
	}

	// Timestamp is a wall-clock instant stored with minute precision.
	Timestamp struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Amount   Money  `json:"amount"`
		Category string `json:"category"`
		Date     Date   `json:"date"`
		Icon     string `json:"icon,omitempty"`
	}

	BudgetCategory struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Total Money  `json:"total"` // Budget ceiling
		Icon  string `json:"icon,omitempty"`
	}

	// Settings holds the scalar inputs of the dashboard.
	Settings struct {
		MonthlyBudgetLimit Money `json:"monthly_budget_limit"`
		SavingsGoal        Money `json:"savings_goal"`
	}

	Task struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Date      Date   `json:"date"`
		Time      string `json:"time,omitempty"` // HH:MM, optional
		Completed bool   `json:"completed"`
	}

	Reminder struct {
		ID       string    `json:"id"`
		Text     string    `json:"text"`
		DateTime Timestamp `json:"date_time"`
		Notified bool      `json:"notified"`
	}

	Note struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Content   string    `json:"content"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	HealthSample struct {
		ID    string  `json:"id"`
		Kind  string  `json:"kind"` // e.g. weight, steps, sleep
		Value float64 `json:"value"`
		Unit  string  `json:"unit,omitempty"`
		Date  Date    `json:"date"`
		Note  string  `json:"note,omitempty"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrZeroAmount       = errors.New("amount cannot be zero")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidTime      = errors.New("invalid time")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidBudget    = errors.New("budget total must be positive")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyText        = errors.New("empty text")
	ErrEmptyKind        = errors.New("empty kind")
	ErrNegativeSettings = errors.New("settings amounts cannot be negative")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// SameDay reports whether d falls on the calendar day of t, in t's location.
func (d Date) SameDay(t time.Time) bool {
	if d.IsZero() {
		return false
	}
	y, m, day := t.Date()
	return d.Year() == y && d.Month() == m && d.Day() == day
}

// StartOfDay returns midnight of the calendar day in loc.
func (d Date) StartOfDay(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON never fails on bad input: records with a malformed date
// are kept with a zero Date so they are skipped by bucketing.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = Date{}
		return nil
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		*d = Date{Time: t}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = NewDate(t.Year(), int(t.Month()), t.Day())
		return nil
	}
	*d = Date{}
	return nil
}

// ParseTimestamp accepts "YYYY-MM-DDTHH:MM" in loc, or RFC3339.
func ParseTimestamp(s string, loc *time.Location) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateTimeLayout, s, loc); err == nil {
		return Timestamp{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Timestamp{Time: t}, nil
	}
	return Timestamp{}, ErrInvalidDate
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(ts.Format(time.RFC3339))
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*ts = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s, time.UTC)
	if err != nil {
		*ts = Timestamp{}
		return nil
	}
	*ts = parsed
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Cents)
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &m.Cents)
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// IsIncome reports whether the transaction adds to the balance.
func (t Transaction) IsIncome() bool {
	return t.Amount.Cents > 0
}

// IsExpense reports whether the transaction subtracts from the balance.
func (t Transaction) IsExpense() bool {
	return t.Amount.Cents < 0
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if len(t.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if t.Amount.Cents == 0 {
		return ErrZeroAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (c BudgetCategory) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Total.Cents <= 0 {
		return ErrInvalidBudget
	}
	return nil
}

func (s Settings) Validate() error {
	if s.MonthlyBudgetLimit.Cents < 0 || s.SavingsGoal.Cents < 0 {
		return ErrNegativeSettings
	}
	return nil
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if t.Time != "" {
		if _, err := time.Parse(clockLayout, t.Time); err != nil {
			return ErrInvalidTime
		}
		if t.Date.IsZero() {
			return errors.New("time requires a date")
		}
	}
	return nil
}

// DueAt combines Date and Time in loc. The second result is false when the
// task has no usable date.
func (t Task) DueAt(loc *time.Location) (time.Time, bool) {
	if t.Date.IsZero() {
		return time.Time{}, false
	}
	due := t.Date.StartOfDay(loc)
	if t.Time == "" {
		return due, true
	}
	clock, err := time.Parse(clockLayout, t.Time)
	if err != nil {
		return time.Time{}, false
	}
	return due.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), true
}

func (r Reminder) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	if r.DateTime.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (n Note) Validate() error {
	if strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Content) == "" {
		return ErrEmptyTitle
	}
	return nil
}

func (h HealthSample) Validate() error {
	if strings.TrimSpace(h.Kind) == "" {
		return ErrEmptyKind
	}
	if h.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
