package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is the in-process Store. State is private to one process, so
// limits enforced through it are per instance rather than global.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*memoryItem
	now   func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (i *memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// Creates a store that reads time from now, letting tests move the clock
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*memoryItem),
		now:   now,
		stop:  make(chan struct{}),
	}
}

// Starts a background sweep of expired keys. Expiry is also enforced lazily on read.
func (m *MemoryStore) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryStore) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, item := range m.items {
		if item.expired(now) {
			delete(m.items, key)
		}
	}
}

// Must be called with mu held
func (m *MemoryStore) live(key string) *memoryItem {
	item, ok := m.items[key]
	if !ok {
		return nil
	}
	if item.expired(m.now()) {
		delete(m.items, key)
		return nil
	}
	return item
}

func (m *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.live(key)
	if item == nil {
		m.items[key] = &memoryItem{value: "1"}
		return 1, nil
	}

	n, err := strconv.ParseInt(item.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value at %q is not an integer", key)
	}
	n++
	item.value = strconv.FormatInt(n, 10)

	return n, nil
}

func (m *MemoryStore) ExpireIfUnset(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.live(key)
	if item == nil || !item.expiresAt.IsZero() {
		return nil
	}
	item.expiresAt = m.now().Add(ttl)

	return nil
}

func (m *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.live(key)
	if item == nil || item.expiresAt.IsZero() {
		return NoTTL, nil
	}

	return item.expiresAt.Sub(m.now()), nil
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.live(key) != nil, nil
}

func (m *MemoryStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item

	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.live(key)
	if item == nil {
		return "", ErrNotFound
	}

	return item.value, nil
}

func (m *MemoryStore) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Number of live keys
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for _, item := range m.items {
		if !item.expired(now) {
			n++
		}
	}
	return n
}
