package domain

import (
	"context"
	"time"
)

// EventType описывает вид изменения состояния движка.
type EventType string

const (
	// EventMessageAppended: в чат добавлено сообщение.
	EventMessageAppended EventType = "message.appended"
	// EventMessageUpdated: текст или кнопки сообщения изменились (стриминг AI, действия).
	EventMessageUpdated EventType = "message.updated"
	// EventUnreadChanged: изменился счётчик непрочитанных.
	EventUnreadChanged EventType = "unread.changed"
	// EventReactionChanged: изменились реакции сообщения.
	EventReactionChanged EventType = "reaction.changed"
	// EventChatSelected: пользователь открыл чат.
	EventChatSelected EventType = "chat.selected"
)

// MessageSource описывает, кто породил сообщение.
type MessageSource string

const (
	SourceBacklog  MessageSource = "backlog"
	SourceInjector MessageSource = "injector"
	SourcePartner  MessageSource = "partner"
	SourceViewer   MessageSource = "viewer"
	SourceScript   MessageSource = "script"
	SourceAI       MessageSource = "ai"
)

// Event: типизированное уведомление для слоя представления и внешних подписчиков.
type Event struct {
	Type       EventType     `json:"type"`
	ChatID     string        `json:"chat_id"`
	Message    *Message      `json:"message,omitempty"`
	Unread     *int          `json:"unread,omitempty"`
	Source     MessageSource `json:"source,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// EventPublisher доставляет события подписчикам.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
