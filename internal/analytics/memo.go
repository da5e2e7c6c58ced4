package analytics

import (
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"lifedash/internal/cache"
)

// Memo caches overviews by their full dependency key: the record store
// version (bumped on every mutation, settings included), the selected
// month and the current calendar day. Any change to one of them is a miss.
type Memo struct {
	cache *cache.LRUCache[memoKey, Overview]
	group singleflight.Group
}

type memoKey struct {
	version uint64
	month   time.Month
	day     string // calendar day and zone of "now"
}

func (k memoKey) String() string {
	return fmt.Sprintf("v%d:m%02d:%s", k.version, k.month, k.day)
}

// NewMemo creates a memo holding at most size overviews for ttl.
func NewMemo(size int, ttl time.Duration) *Memo {
	return &Memo{cache: cache.NewLRUCache[memoKey, Overview](size, ttl)}
}

// Cache exposes the backing cache for registration with a cleanup manager.
func (m *Memo) Cache() *cache.LRUCache[memoKey, Overview] {
	return m.cache
}

// Overview returns the memoized overview, calling load only on a miss.
// Entries built from older store versions can never hit again and are
// dropped on the first miss at a newer version.
func (m *Memo) Overview(version uint64, load func() Input, month time.Month, now time.Time) Overview {
	key := memoKey{version: version, month: month, day: now.Format("2006-01-02") + ":" + now.Location().String()}
	if ov, ok := m.cache.Get(key); ok {
		return ov
	}
	v, _, _ := m.group.Do(key.String(), func() (any, error) {
		m.cache.DeleteFunc(func(k memoKey) bool { return k.version < version })
		ov := BuildOverview(load(), month, now)
		m.cache.Set(key, ov)
		return ov, nil
	})
	return v.(Overview)
}
