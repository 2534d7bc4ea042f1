package bus

import (
	"context"

	"github.com/rs/zerolog"

	"slack-mock/internal/domain"
	"slack-mock/internal/infra/metrics"
)

// Sink: именованный получатель событий.
type Sink struct {
	Name      string
	Publisher domain.EventPublisher
}

// Multi рассылает событие во все получатели. Ошибки логируются и не прерывают рассылку.
type Multi struct {
	sinks []Sink
	log   zerolog.Logger
}

var _ domain.EventPublisher = (*Multi)(nil)

// NewMulti создаёт веерную рассылку.
func NewMulti(logger zerolog.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, log: logger}
}

// Add подключает ещё одного получателя. Вызывается до начала публикаций.
func (m *Multi) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

// Publish доставляет событие каждому получателю и всегда возвращает nil.
func (m *Multi) Publish(ctx context.Context, ev domain.Event) error {
	for _, s := range m.sinks {
		err := s.Publisher.Publish(ctx, ev)
		metrics.ObservePublish(s.Name, err)
		if err != nil {
			m.log.Warn().Err(err).Str("sink", s.Name).Str("event", string(ev.Type)).Msg("bus: publish failed")
		}
	}
	return nil
}
