package records

import (
	"sort"

	"lifedash/internal/core"
)

// Keys under which each collection is persisted.
const (
	KeyTransactions      = "transactions"
	KeyCategories        = "categories"
	KeyTasks             = "tasks"
	KeyReminders         = "reminders"
	KeyNotes             = "notes"
	KeyHealth            = "health"
	KeySettings          = "settings"
	KeyNotificationsRead = "notifications_read"
)

// AllKeys lists every persisted key in load order.
var AllKeys = []string{
	KeyTransactions, KeyCategories, KeyTasks, KeyReminders,
	KeyNotes, KeyHealth, KeySettings, KeyNotificationsRead,
}

// Snapshot is an immutable view of every collection at one store version.
// Maps are never mutated after the snapshot is published; writers replace
// them with fresh copies.
type Snapshot struct {
	version      uint64
	transactions map[string]core.Transaction
	categories   map[string]core.BudgetCategory
	tasks        map[string]core.Task
	reminders    map[string]core.Reminder
	notes        map[string]core.Note
	health       map[string]core.HealthSample
	settings     core.Settings
	read         map[string]struct{}
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		transactions: map[string]core.Transaction{},
		categories:   map[string]core.BudgetCategory{},
		tasks:        map[string]core.Task{},
		reminders:    map[string]core.Reminder{},
		notes:        map[string]core.Note{},
		health:       map[string]core.HealthSample{},
		read:         map[string]struct{}{},
	}
}

func (s *Snapshot) Version() uint64 { return s.version }

func (s *Snapshot) Settings() core.Settings { return s.settings }

// Transactions returns all transactions, newest date first.
func (s *Snapshot) Transactions() []core.Transaction {
	return sortedValues(s.transactions, transactionLess)
}

func (s *Snapshot) Categories() []core.BudgetCategory {
	return sortedValues(s.categories, func(a, b core.BudgetCategory) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

// Tasks returns tasks ordered by date, undated tasks last.
func (s *Snapshot) Tasks() []core.Task {
	return sortedValues(s.tasks, func(a, b core.Task) bool {
		switch {
		case a.Date.IsEmpty() != b.Date.IsEmpty():
			return !a.Date.IsEmpty()
		case !a.Date.Equal(b.Date.Time):
			return a.Date.Before(b.Date.Time)
		case a.Time != b.Time:
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
}

func (s *Snapshot) Reminders() []core.Reminder {
	return sortedValues(s.reminders, func(a, b core.Reminder) bool {
		if !a.DateTime.Equal(b.DateTime.Time) {
			return a.DateTime.Before(b.DateTime.Time)
		}
		return a.ID < b.ID
	})
}

// Notes returns notes, most recently updated first.
func (s *Snapshot) Notes() []core.Note {
	return sortedValues(s.notes, func(a, b core.Note) bool {
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
}

func (s *Snapshot) Health() []core.HealthSample {
	return sortedValues(s.health, func(a, b core.HealthSample) bool {
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		return a.ID < b.ID
	})
}

// IsRead reports whether the notification id was marked read.
func (s *Snapshot) IsRead(id string) bool {
	_, ok := s.read[id]
	return ok
}

func (s *Snapshot) readIDs() []string {
	out := make([]string, 0, len(s.read))
	for id := range s.read {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func transactionLess(a, b core.Transaction) bool {
	if !a.Date.Equal(b.Date.Time) {
		return a.Date.After(b.Date.Time)
	}
	return a.ID < b.ID
}

func sortedValues[T any](m map[string]T, less func(a, b T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func cloneMap[T any](m map[string]T) map[string]T {
	out := make(map[string]T, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
