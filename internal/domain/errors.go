package domain

import "errors"

var (
	// ErrChatNotFound возвращается, когда чат с таким идентификатором не существует.
	ErrChatNotFound = errors.New("chat not found")

	// ErrMessageNotFound возвращается, когда сообщение не найдено в чате.
	ErrMessageNotFound = errors.New("message not found")

	// ErrActionNotFound возвращается, когда кнопка уже нажата или не существует.
	ErrActionNotFound = errors.New("action not found")

	// ErrUnknownTrigger возвращается для неизвестной горячей клавиши.
	ErrUnknownTrigger = errors.New("unknown trigger")

	// ErrTriggerUsed возвращается, если сценарий уже был запущен в этой сессии.
	ErrTriggerUsed = errors.New("trigger already used")

	// ErrEmptyText возвращается при попытке отправить пустое сообщение.
	ErrEmptyText = errors.New("message text is empty")

	// ErrEmptyReaction возвращается, если эмодзи реакции не указан.
	ErrEmptyReaction = errors.New("reaction emoji is empty")
)
