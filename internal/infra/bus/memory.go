package bus

import (
	"context"
	"sync"

	"slack-mock/internal/domain"
)

// Memory: внутрипроцессная шина событий. Подписчик с заполненным буфером пропускает события.
type Memory struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan domain.Event
}

var _ domain.EventPublisher = (*Memory)(nil)

// NewMemory создаёт пустую шину.
func NewMemory() *Memory {
	return &Memory{subs: make(map[int]chan domain.Event)}
}

// Subscribe возвращает канал событий и функцию отписки.
func (m *Memory) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan domain.Event, buffer)
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Publish рассылает событие всем подписчикам без блокировки.
func (m *Memory) Publish(_ context.Context, ev domain.Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribers возвращает число активных подписчиков.
func (m *Memory) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}
