package records

import (
	"context"
	"sync"

	"lifedash/internal/storage"
)

// persister writes encoded collections to the key-value store from a single
// goroutine, off the commit path. Writes to the same key coalesce: only the
// newest pending value of a key is written.
type persister struct {
	kv      storage.KV
	onError func(key string, version uint64, err error)

	mu      sync.Mutex
	pending map[string]pendingWrite
	order   []string // keys waiting, oldest first
	busy    bool
	closed  bool
	waiters []chan struct{}

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

type pendingWrite struct {
	data    []byte
	version uint64
}

func newPersister(kv storage.KV, onError func(key string, version uint64, err error)) *persister {
	p := &persister{
		kv:      kv,
		onError: onError,
		pending: make(map[string]pendingWrite),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue must be called in commit order for a given key. After close it
// writes synchronously, once the final drain is over.
func (p *persister) enqueue(key string, data []byte, version uint64) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.stopped
		p.write(key, pendingWrite{data: data, version: version})
		return
	}
	if _, queued := p.pending[key]; !queued {
		p.order = append(p.order, key)
	}
	p.pending[key] = pendingWrite{data: data, version: version}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.done:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	for {
		p.mu.Lock()
		if len(p.order) == 0 {
			p.busy = false
			waiters := p.waiters
			p.waiters = nil
			p.mu.Unlock()
			for _, ch := range waiters {
				close(ch)
			}
			return
		}
		key := p.order[0]
		p.order = p.order[1:]
		w := p.pending[key]
		delete(p.pending, key)
		p.busy = true
		p.mu.Unlock()

		p.write(key, w)
	}
}

func (p *persister) write(key string, w pendingWrite) {
	if err := p.kv.Put(context.Background(), key, w.data); err != nil && p.onError != nil {
		p.onError(key, w.version, err)
	}
}

// flush waits until every write queued before the call has been attempted.
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	if len(p.order) == 0 && !p.busy {
		p.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains the queue and stops the goroutine.
func (p *persister) close(ctx context.Context) error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
	})
	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
