package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"slack-mock/internal/domain"
	"slack-mock/internal/infra/metrics"
)

// Клавиши сценариев, которые пульт умеет запускать.
const (
	TriggerApproval = "p"
	TriggerLeave    = "l"
)

// Sender: часть tgbotapi.BotAPI, которой пользуется пульт.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Controller: операции движка, доступные презентующему.
type Controller interface {
	Trigger(key string) ([]domain.Message, error)
	ChatItems() []domain.ChatItem
	Selected() string
}

// Deduper отсекает повторные доставки одного апдейта вебхука.
type Deduper interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

const updateTTL = 10 * time.Minute

// Handler превращает команды Telegram-бота в горячие клавиши демо.
type Handler struct {
	bot       Sender
	engine    Controller
	presenter int64
	dedup     Deduper
	log       zerolog.Logger
}

// NewHandler создаёт пульт. Команды принимаются только из чата presenter.
func NewHandler(bot Sender, engine Controller, presenter int64, logger zerolog.Logger) *Handler {
	return &Handler{bot: bot, engine: engine, presenter: presenter, log: logger}
}

// WithDeduper включает дедупликацию апдейтов по update_id.
func (h *Handler) WithDeduper(d Deduper) *Handler {
	h.dedup = d
	return h
}

// ServeHTTP принимает апдейты вебхука.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	if h.dedup == nil {
		h.HandleUpdate(ctx, update)
	} else {
		key := "update:" + strconv.Itoa(update.UpdateID)
		err := h.dedup.Once(ctx, key, updateTTL, func() error {
			h.HandleUpdate(ctx, update)
			return nil
		})
		if err != nil {
			h.log.Warn().Err(err).Int("update_id", update.UpdateID).Msg("remote: dedup unavailable, handling anyway")
			h.HandleUpdate(ctx, update)
		}
	}
	w.WriteHeader(http.StatusOK)
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil && upd.Message.Chat != nil:
		if !h.allowed(upd.Message.Chat.ID) {
			return
		}
		h.handleCommand(ctx, upd.Message.Chat.ID, upd.Message.Text)
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil:
		cb := upd.CallbackQuery
		if !h.allowed(cb.Message.Chat.ID) {
			return
		}
		if _, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			h.log.Debug().Err(err).Msg("remote: callback answer failed")
		}
		h.handleCommand(ctx, cb.Message.Chat.ID, "/"+cb.Data)
	}
}

func (h *Handler) allowed(chatID int64) bool {
	if h.presenter != 0 && chatID == h.presenter {
		return true
	}
	h.log.Warn().Int64("chat", chatID).Msg("remote: update from unknown chat ignored")
	return false
}

func (h *Handler) handleCommand(_ context.Context, chatID int64, text string) {
	cmd := commandOf(text)
	switch cmd {
	case "start", "help":
		h.reply(chatID, helpText, keyboard())
	case "approve":
		h.trigger(chatID, TriggerApproval, "Запрос на согласование CHG-189 отправлен в канал.")
	case "leave":
		h.trigger(chatID, TriggerLeave, "HR Bot прислал заявки на отпуск и расходы.")
	case "status":
		h.status(chatID)
	default:
		cmd = "unknown"
		h.reply(chatID, "Неизвестная команда. Используйте /help", nil)
	}
	metrics.RemoteCommands.WithLabelValues(cmd).Inc()
}

// commandOf выделяет имя команды: "/approve@demo_bot now" → "approve".
func commandOf(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name)
}

func (h *Handler) trigger(chatID int64, key, done string) {
	msgs, err := h.engine.Trigger(key)
	switch {
	case errors.Is(err, domain.ErrTriggerUsed):
		h.reply(chatID, "Этот сценарий уже был показан в текущей сессии.", nil)
	case err != nil:
		h.log.Error().Err(err).Str("key", key).Msg("remote: trigger failed")
		h.reply(chatID, fmt.Sprintf("Не удалось запустить сценарий: %v", err), nil)
	default:
		h.log.Info().Str("key", key).Int("messages", len(msgs)).Msg("remote: scenario triggered")
		h.reply(chatID, done, nil)
	}
}

func (h *Handler) status(chatID int64) {
	items := h.engine.ChatItems()
	unread := make([]domain.ChatItem, 0, len(items))
	for _, item := range items {
		if item.Unread > 0 {
			unread = append(unread, item)
		}
	}
	sort.SliceStable(unread, func(i, j int) bool { return unread[i].Unread > unread[j].Unread })

	lines := []string{fmt.Sprintf("Непрочитанные: %d из %d чатов", len(unread), len(items))}
	if sel := h.engine.Selected(); sel != "" {
		lines = append(lines, "Открыт: "+nameOf(items, sel))
	}
	for _, item := range unread {
		lines = append(lines, fmt.Sprintf("• %s — %d", item.Name, item.Unread))
	}
	h.reply(chatID, strings.Join(lines, "\n"), nil)
}

func nameOf(items []domain.ChatItem, id string) string {
	for _, item := range items {
		if item.ID == id {
			return item.Name
		}
	}
	return id
}

func (h *Handler) reply(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	for i, part := range splitLines(strings.Split(text, "\n"), messageLimit) {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 && markup != nil {
			msg.ReplyMarkup = markup
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("remote: send failed")
			return
		}
	}
}

const helpText = `Пульт демо:
/approve — запрос на согласование CHG-189
/leave — заявки от HR Bot
/status — непрочитанные чаты`

func keyboard() *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Согласование", "approve"),
			tgbotapi.NewInlineKeyboardButtonData("🌴 Отпуск", "leave"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Статус", "status"),
		),
	)
	return &markup
}

// RegisterWebhook сообщает Telegram адрес вебхука.
func RegisterWebhook(bot Sender, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}
