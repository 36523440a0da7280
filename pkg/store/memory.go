package store

import "sync"

// Broadcaster fans store writes out to subscribers. Embed it to satisfy Notifier.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]ChangeFunc
	nextID int
}

func (b *Broadcaster) Subscribe(fn ChangeFunc) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]ChangeFunc)
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Notify calls every subscriber outside the lock.
func (b *Broadcaster) Notify(key, value string) {
	b.mu.Lock()
	subs := make([]ChangeFunc, 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()
	for _, fn := range subs {
		fn(key, value)
	}
}

// Memory is an in-process Store. It notifies subscribers after each Set.
type Memory struct {
	Broadcaster

	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	m.Notify(key, value)
	return nil
}

// Snapshot copies all values; useful in tests.
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

var (
	_ Store    = (*Memory)(nil)
	_ Notifier = (*Memory)(nil)
)
