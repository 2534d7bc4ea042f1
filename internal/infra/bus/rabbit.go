package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"slack-mock/internal/domain"
)

// Rabbit публикует события в fanout-обменник RabbitMQ.
type Rabbit struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

var _ domain.EventPublisher = (*Rabbit)(nil)

// NewRabbit подключается к брокеру и объявляет обменник.
func NewRabbit(url, exchange string) (*Rabbit, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if exchange == "" {
		return nil, errors.New("exchange name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Rabbit{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish отправляет событие как JSON-сообщение.
func (r *Rabbit) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType: "application/json",
		Type:        string(ev.Type),
		Timestamp:   ev.OccurredAt,
		Body:        payload,
	}
	if ev.Message != nil {
		msg.MessageId = ev.Message.ID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ch.PublishWithContext(ctx, r.exchange, ev.ChatID, false, false, msg); err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (r *Rabbit) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.ch.Close(), r.conn.Close())
}
