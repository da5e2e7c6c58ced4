package notify

import (
	"context"
	"sync"
	"time"

	"lifedash/internal/log"
	"lifedash/internal/records"
)

// Store is the part of the record store the notifier reads and mutates.
type Store interface {
	Snapshot() *records.Snapshot
	MarkRemindersNotified(ctx context.Context, ids []string) []string
	SetNotificationRead(ctx context.Context, id string, read bool) error
}

// Publisher receives newly fired notifications, e.g. a message broker.
type Publisher interface {
	PublishNotification(ctx context.Context, n Notification) error
}

// Notifier runs the evaluator against the store and keeps the current feed.
// Refresh and CheckReminders may run concurrently; a reminder fires at most
// once because the store claims it atomically.
type Notifier struct {
	store     Store
	eval      Evaluator
	publisher Publisher
	logger    *log.Logger

	mu       sync.Mutex
	current  []Notification
	exceeded bool
}

type NotifierOption func(*Notifier)

func WithPublisher(p Publisher) NotifierOption {
	return func(n *Notifier) { n.publisher = p }
}

func WithNotifierLogger(l *log.Logger) NotifierOption {
	return func(n *Notifier) { n.logger = l }
}

func WithLocation(loc *time.Location) NotifierOption {
	return func(n *Notifier) { n.eval.Location = loc }
}

func NewNotifier(store Store, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		store:  store,
		logger: log.Default(log.ComponentNotify),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// CheckReminders claims due reminders and returns the ones this call fired.
func (n *Notifier) CheckReminders(ctx context.Context, now time.Time) []Notification {
	snap := n.store.Snapshot()
	due := n.eval.DueReminders(snap.Reminders(), now)
	if len(due) == 0 {
		return nil
	}

	ids := make([]string, len(due))
	for i, d := range due {
		ids[i] = d.RecordID
	}
	claimed := make(map[string]bool, len(ids))
	for _, id := range n.store.MarkRemindersNotified(ctx, ids) {
		claimed[id] = true
	}

	var fired []Notification
	for _, d := range due {
		if claimed[d.RecordID] {
			fired = append(fired, d)
		}
	}

	for _, f := range fired {
		n.logger.InfoContext(ctx, "Reminder fired",
			log.FieldOperation, log.OpEvaluate,
			log.FieldNotification, string(f.Kind),
			log.FieldRecordID, f.RecordID)
		n.publish(ctx, f)
	}
	return fired
}

// Refresh re-derives the whole feed: due tasks, fired reminders and the
// budget alert. It also claims reminders that became due since the last check.
// A fired reminder stays in the feed until it is read.
func (n *Notifier) Refresh(ctx context.Context, now time.Time) []Notification {
	n.CheckReminders(ctx, now)

	snap := n.store.Snapshot()
	list := n.eval.DueTasks(snap.Tasks(), now)
	for _, r := range snap.Reminders() {
		if r.Notified && !snap.IsRead(notificationID(KindReminder, r.ID)) {
			list = append(list, reminderNotification(r))
		}
	}
	budget, exceeded := n.eval.BudgetExceeded(snap.Transactions(), snap.Settings(), now)

	n.mu.Lock()
	if exceeded {
		list = append(list, budget)
	}
	crossed := exceeded && !n.exceeded
	n.exceeded = exceeded
	sortNotifications(list)
	n.current = list
	n.mu.Unlock()

	if crossed {
		// A fresh overage is unread again even if an earlier one was dismissed.
		if err := n.store.SetNotificationRead(ctx, BudgetNotificationID, false); err != nil {
			n.logger.WarnContext(ctx, "Failed to reset budget read state", log.FieldError, err.Error())
		}
		n.logger.InfoContext(ctx, "Monthly budget exceeded",
			log.FieldOperation, log.OpEvaluate,
			log.FieldOverageCents, budget.Amount.Cents)
		n.publish(ctx, budget)
	}
	return n.List()
}

// List returns the last evaluated feed with current read state applied.
func (n *Notifier) List() []Notification {
	snap := n.store.Snapshot()
	n.mu.Lock()
	out := make([]Notification, len(n.current))
	copy(out, n.current)
	n.mu.Unlock()
	for i := range out {
		out[i].Read = snap.IsRead(out[i].ID)
	}
	return out
}

func (n *Notifier) Counts() Counts {
	return CountUnread(n.List())
}

// MarkRead records id as read. A read reminder leaves the feed on the next Refresh.
func (n *Notifier) MarkRead(ctx context.Context, id string) error {
	return n.store.SetNotificationRead(ctx, id, true)
}

// MarkAllRead marks every notification of the current feed as read.
func (n *Notifier) MarkAllRead(ctx context.Context) error {
	for _, item := range n.List() {
		if item.Read {
			continue
		}
		if err := n.MarkRead(ctx, item.ID); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) publish(ctx context.Context, item Notification) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.PublishNotification(ctx, item); err != nil {
		n.logger.WarnContext(ctx, "Failed to publish notification",
			log.FieldNotification, string(item.Kind),
			log.FieldError, err.Error())
	}
}
