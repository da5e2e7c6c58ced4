package records

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lifedash/internal/log"
)

// Record is anything a Collection can hold.
type Record interface {
	Validate() error
}

// Collection is the typed CRUD surface for one map of the snapshot.
type Collection[T Record] struct {
	store   *Store
	name    string
	get     func(*Snapshot) map[string]T
	set     func(*Snapshot, map[string]T)
	id      func(T) string
	setID   func(T, string) T
	list    func(*Snapshot) []T
	prepare func(T, time.Time) T
}

func (c *Collection[T]) Name() string { return c.name }

// List returns the records of the current snapshot in display order.
func (c *Collection[T]) List() []T {
	return c.list(c.store.Snapshot())
}

func (c *Collection[T]) Get(id string) (T, error) {
	v, ok := c.get(c.store.Snapshot())[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", c.name, id, ErrNotFound)
	}
	return v, nil
}

// Add validates and inserts rec, generating an id when it has none.
func (c *Collection[T]) Add(ctx context.Context, rec T) (T, error) {
	rec, _, err := c.AddVersioned(ctx, rec)
	return rec, err
}

// AddVersioned is Add that also returns the store version of the commit.
func (c *Collection[T]) AddVersioned(ctx context.Context, rec T) (T, uint64, error) {
	if c.id(rec) == "" {
		rec = c.setID(rec, c.store.newID())
	}
	if c.prepare != nil {
		rec = c.prepare(rec, c.store.now())
	}
	if err := rec.Validate(); err != nil {
		return rec, 0, fmt.Errorf("%s: %w: %w", c.name, ErrInvalid, err)
	}
	id := c.id(rec)
	snap, err := c.store.commit(ctx, log.OpCreate, c.name, id, func(next *Snapshot) error {
		cur := c.get(next)
		if _, exists := cur[id]; exists {
			return fmt.Errorf("%s %q: %w", c.name, id, ErrDuplicate)
		}
		m := cloneMap(cur)
		m[id] = rec
		c.set(next, m)
		return nil
	})
	return rec, versionOf(snap), err
}

// Update replaces an existing record with the same id.
func (c *Collection[T]) Update(ctx context.Context, rec T) (T, error) {
	rec, _, err := c.UpdateVersioned(ctx, rec)
	return rec, err
}

func (c *Collection[T]) UpdateVersioned(ctx context.Context, rec T) (T, uint64, error) {
	if c.prepare != nil {
		rec = c.prepare(rec, c.store.now())
	}
	if err := rec.Validate(); err != nil {
		return rec, 0, fmt.Errorf("%s: %w: %w", c.name, ErrInvalid, err)
	}
	id := c.id(rec)
	snap, err := c.store.commit(ctx, log.OpUpdate, c.name, id, func(next *Snapshot) error {
		cur := c.get(next)
		if _, exists := cur[id]; !exists {
			return fmt.Errorf("%s %q: %w", c.name, id, ErrNotFound)
		}
		m := cloneMap(cur)
		m[id] = rec
		c.set(next, m)
		return nil
	})
	return rec, versionOf(snap), err
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	_, _, err := c.DeleteVersioned(ctx, id)
	return err
}

// DeleteVersioned removes id and returns the record as it was at removal
// together with the commit version.
func (c *Collection[T]) DeleteVersioned(ctx context.Context, id string) (T, uint64, error) {
	var removed T
	snap, err := c.store.commit(ctx, log.OpDelete, c.name, id, func(next *Snapshot) error {
		cur := c.get(next)
		rec, exists := cur[id]
		if !exists {
			return fmt.Errorf("%s %q: %w", c.name, id, ErrNotFound)
		}
		removed = rec
		m := cloneMap(cur)
		delete(m, id)
		c.set(next, m)
		return nil
	})
	return removed, versionOf(snap), err
}

func versionOf(s *Snapshot) uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

func (c *Collection[T]) key() string { return c.name }

func (c *Collection[T]) encode(s *Snapshot) ([]byte, error) {
	return json.Marshal(c.list(s))
}

// decode reads a JSON array element by element so one bad record does not
// take the rest of the collection with it.
func (c *Collection[T]) decode(next *Snapshot, raw []byte) (int, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return 0, err
	}
	m := make(map[string]T, len(elems))
	skipped := 0
	for _, e := range elems {
		var rec T
		if err := json.Unmarshal(e, &rec); err != nil {
			skipped++
			continue
		}
		id := c.id(rec)
		if id == "" {
			id = c.store.newID()
			rec = c.setID(rec, id)
		}
		m[id] = rec
	}
	c.set(next, m)
	return skipped, nil
}
