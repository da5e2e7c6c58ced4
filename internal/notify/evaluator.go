package notify

import (
	"sort"
	"time"

	"lifedash/internal/analytics"
	"lifedash/internal/core"
)

type Kind string

const (
	KindTask     Kind = "task"
	KindReminder Kind = "reminder"
	KindBudget   Kind = "budget"
)

// BudgetNotificationID is the single id used for the budget exceeded alert.
const BudgetNotificationID = "budget:exceeded"

// Notification is one actionable alert. ID is stable across polls for the
// same underlying record, which is what read state is keyed on.
type Notification struct {
	ID       string     `json:"id"`
	Kind     Kind       `json:"kind"`
	RecordID string     `json:"record_id,omitempty"`
	Title    string     `json:"title"`
	Message  string     `json:"message"`
	Amount   core.Money `json:"amount"` // overage, budget only
	At       time.Time  `json:"at"`
	Read     bool       `json:"read"`
}

// Counts holds unread notifications per kind.
type Counts struct {
	Task     int `json:"task"`
	Reminder int `json:"reminder"`
	Budget   int `json:"budget"`
	Total    int `json:"total"`
}

func notificationID(kind Kind, recordID string) string {
	return string(kind) + ":" + recordID
}

// ReminderNotificationID is the feed id of the notification fired by reminder id.
func ReminderNotificationID(id string) string {
	return notificationID(KindReminder, id)
}

// Evaluator applies the due rules to plain record slices. It holds no state.
type Evaluator struct {
	// Location interprets task dates; nil means the location of now.
	Location *time.Location
}

func (e Evaluator) loc(now time.Time) *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return now.Location()
}

// DueTasks returns a notification for every dated, open task due at or before now.
// Tasks without a usable date are never due.
func (e Evaluator) DueTasks(tasks []core.Task, now time.Time) []Notification {
	var out []Notification
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		due, ok := t.DueAt(e.loc(now))
		if !ok || due.After(now) {
			continue
		}
		out = append(out, Notification{
			ID:       notificationID(KindTask, t.ID),
			Kind:     KindTask,
			RecordID: t.ID,
			Title:    "Task due",
			Message:  t.Title,
			At:       due,
		})
	}
	return out
}

// DueReminders returns reminders at or before now that have not fired yet.
// It does not mark them; callers claim them through the record store.
func (e Evaluator) DueReminders(reminders []core.Reminder, now time.Time) []Notification {
	var out []Notification
	for _, r := range reminders {
		if r.Notified || r.DateTime.IsZero() || r.DateTime.After(now) {
			continue
		}
		out = append(out, reminderNotification(r))
	}
	return out
}

func reminderNotification(r core.Reminder) Notification {
	return Notification{
		ID:       notificationID(KindReminder, r.ID),
		Kind:     KindReminder,
		RecordID: r.ID,
		Title:    "Reminder",
		Message:  r.Text,
		At:       r.DateTime.Time,
	}
}

// BudgetExceeded reports the budget alert when all-time expense is above a
// positive monthly limit. The overage is re-derived on every call.
func (e Evaluator) BudgetExceeded(txs []core.Transaction, settings core.Settings, now time.Time) (Notification, bool) {
	limit := settings.MonthlyBudgetLimit
	if limit.Cents <= 0 {
		return Notification{}, false
	}
	expense := analytics.Totals(txs).Expense
	if expense.Cents <= limit.Cents {
		return Notification{}, false
	}
	overage := core.Money{Cents: expense.Cents - limit.Cents}
	return Notification{
		ID:      BudgetNotificationID,
		Kind:    KindBudget,
		Title:   "Monthly budget exceeded",
		Message: "Spending is " + overage.Decimal() + " over the monthly limit",
		Amount:  overage,
		At:      now,
	}, true
}

// Sources is the read-only input of Evaluate.
type Sources struct {
	Tasks        []core.Task
	Reminders    []core.Reminder
	Transactions []core.Transaction
	Settings     core.Settings
}

// Evaluate applies all three rules without side effects.
func (e Evaluator) Evaluate(src Sources, now time.Time) []Notification {
	out := e.DueTasks(src.Tasks, now)
	out = append(out, e.DueReminders(src.Reminders, now)...)
	if n, ok := e.BudgetExceeded(src.Transactions, src.Settings, now); ok {
		out = append(out, n)
	}
	sortNotifications(out)
	return out
}

// CountUnread partitions unread notifications by kind.
func CountUnread(list []Notification) Counts {
	var c Counts
	for _, n := range list {
		if n.Read {
			continue
		}
		switch n.Kind {
		case KindTask:
			c.Task++
		case KindReminder:
			c.Reminder++
		case KindBudget:
			c.Budget++
		}
		c.Total++
	}
	return c
}

// sortNotifications orders newest first.
func sortNotifications(list []Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].At.Equal(list[j].At) {
			return list[i].At.After(list[j].At)
		}
		return list[i].ID < list[j].ID
	})
}
