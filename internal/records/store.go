package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lifedash/internal/core"
	"lifedash/internal/log"
	"lifedash/internal/storage"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	ErrInvalid   = errors.New("invalid record")
)

// persisted is one key of the store: it knows how to write its part of a
// snapshot and how to rebuild it from stored bytes.
type persisted interface {
	key() string
	encode(s *Snapshot) ([]byte, error)
	decode(next *Snapshot, raw []byte) (skipped int, err error)
}

// Store owns every collection. Writers are serialized by mu and publish a
// fresh Snapshot; readers load the current pointer without locking.
type Store struct {
	kv     storage.KV
	logger *log.Logger
	events *log.StructuredLogger
	now    func() time.Time
	newID  func() string

	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]

	persistErrors atomic.Int64
	writer        *persister

	Transactions *Collection[core.Transaction]
	Categories   *Collection[core.BudgetCategory]
	Tasks        *Collection[core.Task]
	Reminders    *Collection[core.Reminder]
	Notes        *Collection[core.Note]
	Health       *Collection[core.HealthSample]

	keys map[string]persisted
}

type Option func(*Store)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates an empty store persisting to kv. Call Load to restore
// previously written collections.
func NewStore(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		logger: log.Default(log.ComponentRecords),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = log.NewStructuredLogger(s.logger)
	s.snap.Store(emptySnapshot())
	s.writer = newPersister(kv, s.persistFailed)

	s.Transactions = &Collection[core.Transaction]{
		store: s, name: KeyTransactions,
		get:   func(sn *Snapshot) map[string]core.Transaction { return sn.transactions },
		set:   func(sn *Snapshot, m map[string]core.Transaction) { sn.transactions = m },
		id:    func(t core.Transaction) string { return t.ID },
		setID: func(t core.Transaction, id string) core.Transaction { t.ID = id; return t },
		list:  (*Snapshot).Transactions,
	}
	s.Categories = &Collection[core.BudgetCategory]{
		store: s, name: KeyCategories,
		get:   func(sn *Snapshot) map[string]core.BudgetCategory { return sn.categories },
		set:   func(sn *Snapshot, m map[string]core.BudgetCategory) { sn.categories = m },
		id:    func(c core.BudgetCategory) string { return c.ID },
		setID: func(c core.BudgetCategory, id string) core.BudgetCategory { c.ID = id; return c },
		list:  (*Snapshot).Categories,
	}
	s.Tasks = &Collection[core.Task]{
		store: s, name: KeyTasks,
		get:   func(sn *Snapshot) map[string]core.Task { return sn.tasks },
		set:   func(sn *Snapshot, m map[string]core.Task) { sn.tasks = m },
		id:    func(t core.Task) string { return t.ID },
		setID: func(t core.Task, id string) core.Task { t.ID = id; return t },
		list:  (*Snapshot).Tasks,
	}
	s.Reminders = &Collection[core.Reminder]{
		store: s, name: KeyReminders,
		get:   func(sn *Snapshot) map[string]core.Reminder { return sn.reminders },
		set:   func(sn *Snapshot, m map[string]core.Reminder) { sn.reminders = m },
		id:    func(r core.Reminder) string { return r.ID },
		setID: func(r core.Reminder, id string) core.Reminder { r.ID = id; return r },
		list:  (*Snapshot).Reminders,
	}
	s.Notes = &Collection[core.Note]{
		store: s, name: KeyNotes,
		get:   func(sn *Snapshot) map[string]core.Note { return sn.notes },
		set:   func(sn *Snapshot, m map[string]core.Note) { sn.notes = m },
		id:    func(n core.Note) string { return n.ID },
		setID: func(n core.Note, id string) core.Note { n.ID = id; return n },
		list:  (*Snapshot).Notes,
		prepare: func(n core.Note, now time.Time) core.Note {
			n.UpdatedAt = now
			return n
		},
	}
	s.Health = &Collection[core.HealthSample]{
		store: s, name: KeyHealth,
		get:   func(sn *Snapshot) map[string]core.HealthSample { return sn.health },
		set:   func(sn *Snapshot, m map[string]core.HealthSample) { sn.health = m },
		id:    func(h core.HealthSample) string { return h.ID },
		setID: func(h core.HealthSample, id string) core.HealthSample { h.ID = id; return h },
		list:  (*Snapshot).Health,
	}

	s.keys = map[string]persisted{}
	for _, p := range []persisted{
		s.Transactions, s.Categories, s.Tasks, s.Reminders, s.Notes, s.Health,
		settingsKey{}, readKey{},
	} {
		s.keys[p.key()] = p
	}
	return s
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

func (s *Store) Version() uint64 {
	return s.snap.Load().version
}

// PersistErrors counts writes to the key-value store that failed since start.
func (s *Store) PersistErrors() int64 {
	return s.persistErrors.Load()
}

// Flush waits until every committed change has been handed to the key-value
// store (successfully or not).
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.flush(ctx)
}

// Close writes what is still queued and stops the background writer. Later
// commits are persisted synchronously. It does not close the key-value store.
func (s *Store) Close(ctx context.Context) error {
	return s.writer.close(ctx)
}

// Load replaces the in-memory state with what the key-value store holds.
// Missing keys are empty collections; undecodable elements are skipped.
func (s *Store) Load(ctx context.Context) error {
	raw := make([][]byte, len(AllKeys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range AllKeys {
		g.Go(func() error {
			b, err := s.kv.Get(gctx, key)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}
			raw[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	next := emptySnapshot()
	for i, key := range AllKeys {
		if len(raw[i]) == 0 {
			continue
		}
		skipped, err := s.keys[key].decode(next, raw[i])
		if err != nil {
			s.logger.WarnContext(ctx, "Discarding undecodable collection",
				log.FieldCollection, key, log.FieldOperation, log.OpLoad, log.FieldError, err.Error())
			continue
		}
		if skipped > 0 {
			s.logger.WarnContext(ctx, "Skipped malformed records",
				log.FieldCollection, key, "skipped", skipped)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next.version = s.snap.Load().version + 1
	s.snap.Store(next)
	s.logger.InfoContext(ctx, "Records loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldVersion, next.version,
		"transactions", len(next.transactions),
		"tasks", len(next.tasks),
		"reminders", len(next.reminders))
	return nil
}

// SetSettings validates and replaces the scalar settings.
func (s *Store) SetSettings(ctx context.Context, settings core.Settings) error {
	_, err := s.UpdateSettings(ctx, func(st *core.Settings) { *st = settings })
	return err
}

// UpdateSettings applies change to the current settings under the commit
// lock, so concurrent partial updates never drop each other's fields.
// It returns the settings as committed.
func (s *Store) UpdateSettings(ctx context.Context, change func(*core.Settings)) (core.Settings, error) {
	var updated core.Settings
	_, err := s.commit(ctx, log.OpUpdate, KeySettings, "", func(next *Snapshot) error {
		st := next.settings
		change(&st)
		if err := st.Validate(); err != nil {
			return fmt.Errorf("%s: %w: %w", KeySettings, ErrInvalid, err)
		}
		next.settings = st
		updated = st
		return nil
	})
	if err != nil {
		return core.Settings{}, err
	}
	return updated, nil
}

// MarkRemindersNotified flips Notified on the given reminders and returns the
// ids that actually changed. A reminder already notified, or unknown, is left
// out, so concurrent callers never both see the same id.
func (s *Store) MarkRemindersNotified(ctx context.Context, ids []string) []string {
	var flipped []string
	_, err := s.commit(ctx, log.OpUpdate, KeyReminders, "", func(next *Snapshot) error {
		var reminders map[string]core.Reminder
		for _, id := range ids {
			r, ok := next.reminders[id]
			if !ok || r.Notified {
				continue
			}
			if reminders == nil {
				reminders = cloneMap(next.reminders)
			}
			r.Notified = true
			reminders[id] = r
			flipped = append(flipped, id)
		}
		if len(flipped) == 0 {
			return errNoChange
		}
		next.reminders = reminders
		return nil
	})
	if err != nil {
		return nil
	}
	return flipped
}

// SetNotificationRead records whether a notification id was read.
func (s *Store) SetNotificationRead(ctx context.Context, id string, read bool) error {
	if id == "" {
		return ErrNotFound
	}
	_, err := s.commit(ctx, log.OpUpdate, KeyNotificationsRead, id, func(next *Snapshot) error {
		_, was := next.read[id]
		if was == read {
			return errNoChange
		}
		m := make(map[string]struct{}, len(next.read)+1)
		for k := range next.read {
			m[k] = struct{}{}
		}
		if read {
			m[id] = struct{}{}
		} else {
			delete(m, id)
		}
		next.read = m
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}

var errNoChange = errors.New("no change")

// commit applies mutate to a shallow copy of the current snapshot, publishes
// it under a new version and writes the touched key. mutate must replace,
// never modify, any map it changes.
func (s *Store) commit(ctx context.Context, op, key, id string, mutate func(next *Snapshot) error) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	next := *cur
	if err := mutate(&next); err != nil {
		return nil, err
	}
	next.version = cur.version + 1
	s.snap.Store(&next)

	s.events.LogRecordChanged(ctx, op, key, id, next.version)
	s.persist(key, &next)
	return &next, nil
}

// persist encodes the touched key and queues it for the background writer.
// Failures are logged and counted; the committed snapshot stays in place.
func (s *Store) persist(key string, snap *Snapshot) {
	data, err := s.keys[key].encode(snap)
	if err != nil {
		s.persistFailed(key, snap.version, err)
		return
	}
	s.writer.enqueue(key, data, snap.version)
}

func (s *Store) persistFailed(key string, version uint64, err error) {
	s.persistErrors.Add(1)
	s.events.LogError(context.Background(), "Failed to persist collection", err, log.ComponentStorage, log.OpPersist,
		log.NewFields().WithRecord(key, "", version))
}

type settingsKey struct{}

func (settingsKey) key() string { return KeySettings }

func (settingsKey) encode(s *Snapshot) ([]byte, error) {
	return json.Marshal(s.settings)
}

func (settingsKey) decode(next *Snapshot, raw []byte) (int, error) {
	var settings core.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return 0, err
	}
	next.settings = settings
	return 0, nil
}

type readKey struct{}

func (readKey) key() string { return KeyNotificationsRead }

func (readKey) encode(s *Snapshot) ([]byte, error) {
	return json.Marshal(s.readIDs())
}

func (readKey) decode(next *Snapshot, raw []byte) (int, error) {
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return 0, err
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	next.read = m
	return 0, nil
}
