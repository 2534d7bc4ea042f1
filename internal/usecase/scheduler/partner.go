package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"slack-mock/internal/domain"
)

// DefaultPartnerInterval: период, с которым собеседник отвечает в открытом чате.
const DefaultPartnerInterval = 35 * time.Second

// Speaker: часть движка, через которую пишет собеседник.
type Speaker interface {
	AppendToSelected() (domain.Message, bool)
}

// Partner с фиксированным периодом дописывает реплику в открытый чат.
// Смена чата перезапускает отсчёт.
type Partner struct {
	target   Speaker
	interval time.Duration
	after    domain.AfterFunc
	log      zerolog.Logger

	mu      sync.Mutex
	timer   domain.Stopper
	running bool
}

// NewPartner создаёт собеседника.
func NewPartner(target Speaker, interval time.Duration, after domain.AfterFunc, logger zerolog.Logger) *Partner {
	if interval <= 0 {
		interval = DefaultPartnerInterval
	}
	if after == nil {
		after = domain.RealAfterFunc
	}
	return &Partner{target: target, interval: interval, after: after, log: logger}
}

// Start запускает отсчёт. Собеседник останавливается вместе с ctx.
func (p *Partner) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.armLocked()
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
}

// Stop отменяет отсчёт.
func (p *Partner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Follow сбрасывает отсчёт на каждое событие chat.selected, пока не закрыт ctx или канал событий.
func (p *Partner) Follow(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == domain.EventChatSelected {
				p.Reset(ev.ChatID)
			}
		}
	}
}

// Reset начинает период заново.
func (p *Partner) Reset(string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.armLocked()
}

func (p *Partner) armLocked() {
	p.timer = p.after(p.interval, p.fire)
}

func (p *Partner) fire() {
	if msg, ok := p.target.AppendToSelected(); ok {
		p.log.Debug().Str("who", msg.Who).Msg("scheduler: partner replied")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.armLocked()
	}
}
