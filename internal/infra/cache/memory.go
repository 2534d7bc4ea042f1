package cache

import (
	"context"
	"sync"
	"time"
)

// Memory: Once в памяти процесса для запуска без Redis.
type Memory struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewMemory создаёт пустой дедупликатор.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string]time.Time), now: time.Now}
}

// Once выполняет fn, если ключ не встречался в пределах ttl.
func (m *Memory) Once(_ context.Context, key string, ttl time.Duration, fn func() error) error {
	m.mu.Lock()
	now := m.now()
	if exp, ok := m.keys[key]; ok && now.Before(exp) {
		m.mu.Unlock()
		return nil
	}
	m.keys[key] = now.Add(ttl)
	for k, exp := range m.keys {
		if !now.Before(exp) {
			delete(m.keys, k)
		}
	}
	m.mu.Unlock()

	if err := fn(); err != nil {
		m.mu.Lock()
		delete(m.keys, key)
		m.mu.Unlock()
		return err
	}
	return nil
}
