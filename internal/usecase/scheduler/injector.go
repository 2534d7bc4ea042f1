package scheduler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"slack-mock/internal/domain"
	"slack-mock/internal/infra/metrics"
)

// Target: часть движка, которую оживляет инжектор.
type Target interface {
	InjectRandom() (string, domain.Message, bool)
	UnreadRatio() float64
}

// Injector строит цепочку отложенных вызовов, где каждый тик сам выбирает задержку до следующего.
type Injector struct {
	target Target
	policy Policy
	rng    Source
	after  domain.AfterFunc
	log    zerolog.Logger

	mu      sync.Mutex
	timer   domain.Stopper
	running bool
}

// NewInjector создаёт инжектор. rng не должен использоваться кем-то ещё.
func NewInjector(target Target, policy Policy, rng Source, after domain.AfterFunc, logger zerolog.Logger) *Injector {
	if after == nil {
		after = domain.RealAfterFunc
	}
	return &Injector{target: target, policy: policy, rng: rng, after: after, log: logger}
}

// Start планирует первый тик. Инжектор останавливается вместе с ctx.
func (i *Injector) Start(ctx context.Context) {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return
	}
	i.running = true
	i.scheduleLocked(i.target.UnreadRatio())
	i.mu.Unlock()

	i.log.Info().Msg("scheduler: injector started")
	go func() {
		<-ctx.Done()
		i.Stop()
	}()
}

// Stop отменяет запланированный тик.
func (i *Injector) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.running {
		return
	}
	i.running = false
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.log.Info().Msg("scheduler: injector stopped")
}

// Tick выполняет одну попытку инъекции и планирует следующую.
func (i *Injector) Tick() {
	i.mu.Lock()
	if !i.running {
		i.mu.Unlock()
		return
	}
	skip := i.policy.ShouldSkip(i.target.UnreadRatio(), i.rng)
	i.mu.Unlock()

	switch {
	case skip:
		metrics.IncTick("skipped")
	default:
		if chatID, _, ok := i.target.InjectRandom(); ok {
			metrics.IncTick("injected")
			i.log.Debug().Str("chat", chatID).Msg("scheduler: message injected")
		} else {
			metrics.IncTick("idle")
		}
	}

	ratio := i.target.UnreadRatio()
	i.mu.Lock()
	i.scheduleLocked(ratio)
	i.mu.Unlock()
}

func (i *Injector) scheduleLocked(ratio float64) {
	if !i.running {
		return
	}
	delay := i.policy.NextDelay(ratio, i.rng)
	i.timer = i.after(delay, i.Tick)
}
