package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"slack-mock/internal/adapters/embeds"
	"slack-mock/internal/domain"
	httpinfra "slack-mock/internal/infra/http"
	"slack-mock/internal/usecase/synthesis"
)

// DefaultTimeout ограничивает обработку обычных запросов API.
const DefaultTimeout = 15 * time.Second

// Engine: операции движка, доступные интерфейсу.
type Engine interface {
	ChatItems() []domain.ChatItem
	Messages(chatID string) ([]domain.Message, error)
	State(chatID string) domain.ChatState
	Selected() string
	Select(chatID string) error
	Send(ctx context.Context, chatID, text string) (domain.Message, error)
	ToggleReaction(chatID, msgID, emoji string) (domain.Message, error)
	ResolveAction(chatID, msgID, actionID string) (domain.Message, error)
	Trigger(key string) ([]domain.Message, error)
	Snapshot() synthesis.Snapshot
}

// Annotator распознаёт ссылки на внешние инструменты.
type Annotator interface {
	Detect(text, sender string) []domain.EmbedConfig
}

// Handler обслуживает REST API демо-чата.
type Handler struct {
	engine    Engine
	annotator Annotator
	dir       domain.Directory
	log       zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(engine Engine, annotator Annotator, dir domain.Directory, logger zerolog.Logger) *Handler {
	return &Handler{engine: engine, annotator: annotator, dir: dir, log: logger}
}

// Register монтирует маршруты /api/v1 с таймаутом на запрос.
func (h *Handler) Register(r chi.Router, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpinfra.Timeout(timeout))

		api.Get("/workspace", h.workspace)
		api.Get("/chats", h.chats)
		api.Get("/snapshot", h.snapshot)
		api.Get("/chats/{id}/messages", h.messages)
		api.Post("/chats/{id}/select", h.selectChat)
		api.Post("/chats/{id}/messages", h.send)
		api.Post("/chats/{id}/messages/{msgID}/reactions", h.react)
		api.Post("/chats/{id}/messages/{msgID}/actions/{actionID}", h.resolveAction)
		api.Post("/triggers/{key}", h.trigger)
		api.Post("/embeds", h.embeds)
	})
}

type workspaceResponse struct {
	Company   domain.Company  `json:"company"`
	Theme     domain.Theme    `json:"theme"`
	Viewer    domain.Person   `json:"viewer"`
	Assistant domain.Person   `json:"assistant"`
	People    []domain.Person `json:"people"`
}

type chatsResponse struct {
	Starred  []domain.ChatItem `json:"starred"`
	Channels []domain.ChatItem `json:"channels"`
	DMs      []domain.ChatItem `json:"dms"`
	Selected string            `json:"selected,omitempty"`
}

type messagesResponse struct {
	ChatID   string           `json:"chat_id"`
	State    domain.ChatState `json:"state"`
	Messages []domain.Message `json:"messages"`
}

type sendRequest struct {
	Text string `json:"text"`
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

type embedsRequest struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

type embedView struct {
	domain.EmbedConfig
	App domain.AppInfo `json:"app"`
}

type triggerResponse struct {
	Key      string           `json:"key"`
	Messages []domain.Message `json:"messages"`
}

func (h *Handler) workspace(w http.ResponseWriter, _ *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, workspaceResponse{
		Company:   h.dir.Company(),
		Theme:     h.dir.Theme(),
		Viewer:    h.dir.Viewer(),
		Assistant: h.dir.Assistant(),
		People:    h.dir.People(),
	})
}

func (h *Handler) chats(w http.ResponseWriter, _ *http.Request) {
	resp := chatsResponse{
		Starred:  []domain.ChatItem{},
		Channels: []domain.ChatItem{},
		DMs:      []domain.ChatItem{},
		Selected: h.engine.Selected(),
	}
	for _, item := range h.engine.ChatItems() {
		switch item.Type {
		case domain.SectionStarred:
			resp.Starred = append(resp.Starred, item)
		case domain.SectionChannel:
			resp.Channels = append(resp.Channels, item)
		default:
			resp.DMs = append(resp.DMs, item)
		}
	}
	httpinfra.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) snapshot(w http.ResponseWriter, _ *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, h.engine.Snapshot())
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	list, err := h.engine.Messages(chatID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, messagesResponse{ChatID: chatID, State: h.engine.State(chatID), Messages: list})
}

func (h *Handler) selectChat(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Select(chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.engine.Send(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, msg)
}

func (h *Handler) react(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.engine.ToggleReaction(chi.URLParam(r, "id"), chi.URLParam(r, "msgID"), req.Emoji)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, msg)
}

func (h *Handler) resolveAction(w http.ResponseWriter, r *http.Request) {
	msg, err := h.engine.ResolveAction(chi.URLParam(r, "id"), chi.URLParam(r, "msgID"), chi.URLParam(r, "actionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, msg)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	msgs, err := h.engine.Trigger(key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, triggerResponse{Key: key, Messages: msgs})
}

func (h *Handler) embeds(w http.ResponseWriter, r *http.Request) {
	var req embedsRequest
	if !decode(w, r, &req) {
		return
	}
	found := h.annotator.Detect(req.Text, req.Sender)
	out := make([]embedView, 0, len(found))
	for _, e := range found {
		out = append(out, embedView{EmbedConfig: e, App: embeds.AppInfo(e.Type)})
	}
	httpinfra.WriteJSON(w, http.StatusOK, out)
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(out); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Str("path", r.URL.Path).Msg("api: request failed")
	} else {
		h.log.Debug().Err(err).Str("path", r.URL.Path).Msg("api: request rejected")
	}
	httpinfra.WriteError(w, status, err)
}

// StatusFor сопоставляет доменную ошибку HTTP-статусу.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrChatNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrUnknownTrigger):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrActionNotFound),
		errors.Is(err, domain.ErrTriggerUsed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyText),
		errors.Is(err, domain.ErrEmptyReaction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
