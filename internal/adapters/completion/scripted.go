package completion

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"slack-mock/internal/domain"
)

type cannedReply struct {
	keywords []string
	html     string
}

var cannedReplies = []cannedReply{
	{
		keywords: []string{"summar", "digest", "catch me up", "what did i miss"},
		html: "<p>Here's a quick catch-up:</p><ul><li><strong>#itom-4412</strong>: the alert storm is resolved, post-mortem is scheduled for Thursday.</li>" +
			"<li><strong>#CHG-189</strong>: the payments-db upgrade is waiting for your approval.</li><li>2 new DMs need a reply.</li></ul>",
	},
	{
		keywords: []string{"incident", "alert", "outage", "down"},
		html: "<p>There is <strong>1 open incident</strong> right now. Impact is limited and the on-call engineer is on it.</p>" +
			"<p>Want me to draft a status update for the channel?</p>",
	},
	{
		keywords: []string{"change", "chg", "approve", "approval"},
		html:     "<p><strong>CHG-189</strong> is ready for review. All pre-checks passed and the rollback plan is attached. Press the approval button in the channel when you're ready.</p>",
	},
	{
		keywords: []string{"leave", "pto", "vacation", "expense"},
		html:     "<p>You have <strong>12 days</strong> of PTO left this year. I can open a leave request for you in Workday if you tell me the dates.</p>",
	},
	{
		keywords: []string{"hi", "hello", "hey"},
		html:     "<p>Hi! 👋 I can summarize channels, check on incidents and changes, or help with HR requests. What do you need?</p>",
	},
}

const defaultReply = "<p>Good question. I looked through the recent conversations and docs, and I'll need a bit more context. " +
	"Could you tell me which team or ticket this is about?</p>"

// Source: сидируемый источник случайности для темпа печати и синтетических рядов.
type Source interface {
	Duration(lo, hi time.Duration) time.Duration
	Float64() float64
}

// Stage: промежуточный статус перед ответом и пауза после него.
type Stage struct {
	Status   string
	Min, Max time.Duration
}

// DefaultStages повторяют ход живого ассистента: думает, подключается, загружает логи.
var DefaultStages = []Stage{
	{Status: "Thinking…", Min: 900 * time.Millisecond, Max: 1600 * time.Millisecond},
	{Status: "Connecting to Dynatrace…", Min: 1400 * time.Millisecond, Max: 2200 * time.Millisecond},
	{Status: "Fetching error logs…", Min: 1500 * time.Millisecond, Max: 2400 * time.Millisecond},
}

var seriesKeywords = []string{"log", "error", "metric", "graph", "trend", "latency", "dynatrace", "spike"}

// Scripted отвечает заготовками и печатает их по 2–3 символа, как живая модель.
// Запросы про логи и метрики получают сводку по синтетическому ряду ошибок.
type Scripted struct {
	mu       sync.Mutex
	rng      Source
	now      func() time.Time
	minDelay time.Duration
	maxDelay time.Duration
	stages   []Stage
}

var _ domain.StagedCompleter = (*Scripted)(nil)

// NewScripted создаёт локального ассистента с темпом 24–64 мс на фрагмент.
// rng и now задают случайность и часы; nil означает собственный сид и time.Now.
func NewScripted(rng Source, now func() time.Time) *Scripted {
	if rng == nil {
		rng = newSeeded(uint64(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Scripted{
		rng:      rng,
		now:      now,
		minDelay: 24 * time.Millisecond,
		maxDelay: 64 * time.Millisecond,
		stages:   DefaultStages,
	}
}

// Reply подбирает заготовку по ключевым словам запроса.
func Reply(prompt string) string {
	lower := strings.ToLower(prompt)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, c := range cannedReplies {
		for _, kw := range c.keywords {
			if strings.Contains(kw, " ") || len(kw) > 3 {
				if strings.Contains(lower, kw) {
					return c.html
				}
				continue
			}
			for _, w := range words {
				if w == kw {
					return c.html
				}
			}
		}
	}
	return defaultReply
}

func wantsSeries(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, kw := range seriesKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Stream печатает заготовленный ответ. Отмена ctx прерывает печать.
func (s *Scripted) Stream(ctx context.Context, prompt string, onFragment func(string)) error {
	return s.StreamStaged(ctx, prompt, nil, onFragment)
}

// StreamStaged сначала проходит статусы стадий, затем печатает ответ.
// С onStatus == nil стадии пропускаются.
func (s *Scripted) StreamStaged(ctx context.Context, prompt string, onStatus func(string), onFragment func(string)) error {
	if onStatus != nil {
		for _, st := range s.stages {
			onStatus(st.Status)
			if err := s.sleep(ctx, s.jitter(st.Min, st.Max)); err != nil {
				return err
			}
		}
	}
	reply := Reply(prompt)
	if wantsSeries(prompt) {
		now := time.Now
		if s.now != nil {
			now = s.now
		}
		reply = "<p>" + SummarizeSeries(s.series(now())) + "</p>"
	}
	for _, chunk := range Chunks(reply) {
		if err := s.sleep(ctx, s.jitter(s.minDelay, s.maxDelay)); err != nil {
			return err
		}
		onFragment(chunk)
	}
	return nil
}

func (s *Scripted) jitter(lo, hi time.Duration) time.Duration {
	if hi <= 0 || s.rng == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Duration(lo, hi)
}

func (s *Scripted) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Point: одна точка ряда ошибок.
type Point struct {
	At    time.Time
	Count int
}

// series строит 37 точек с шагом 5 минут: случайное блуждание в пределах 3–30.
func (s *Scripted) series(now time.Time) []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	points := make([]Point, 0, 37)
	base := 10.0
	for i := 36; i >= 0; i-- {
		if s.rng != nil {
			base += (s.rng.Float64() - 0.5) * 2
		}
		base = math.Max(3, math.Min(30, base))
		points = append(points, Point{At: now.Add(-time.Duration(i) * 5 * time.Minute), Count: int(math.Round(base))})
	}
	return points
}

// SummarizeSeries описывает пик ряда и тренд последних 30 минут против предыдущих.
func SummarizeSeries(points []Point) string {
	if len(points) == 0 {
		return "Pulled latest error logs from Dynatrace."
	}
	peak := points[0]
	for _, p := range points[1:] {
		if p.Count > peak.Count {
			peak = p
		}
	}
	avg := func(list []Point) float64 {
		if len(list) == 0 {
			return 0
		}
		sum := 0
		for _, p := range list {
			sum += p.Count
		}
		return float64(sum) / float64(len(list))
	}
	n := len(points)
	last := points[max(0, n-6):]
	prev := points[max(0, n-12):max(0, n-6)]
	trend := "holding steady"
	switch d := avg(last) - avg(prev); {
	case d > 0.6:
		trend = "rising"
	case d < -0.6:
		trend = "trending down"
	}
	return fmt.Sprintf("Pulled 3h error logs for payments-api from Dynatrace. Peak %d at %s; last 30 min %s.",
		peak.Count, peak.At.Format("15:04"), trend)
}

type seeded struct {
	r *rand.Rand
}

func newSeeded(seed uint64) *seeded {
	return &seeded{r: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

func (s *seeded) Duration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.r.Int64N(int64(hi-lo)+1))
}

func (s *seeded) Float64() float64 { return s.r.Float64() }

// Chunks режет текст на фрагменты по 2–3 руны, не разрывая HTML-теги.
func Chunks(text string) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); {
		if runes[i] == '<' {
			end := i
			for end < len(runes) && runes[end] != '>' {
				end++
			}
			if end < len(runes) {
				end++
			}
			out = append(out, string(runes[i:end]))
			i = end
			continue
		}
		size := 2 + i%2
		end := i
		for end < len(runes) && end-i < size && runes[end] != '<' {
			end++
		}
		out = append(out, string(runes[i:end]))
		i = end
	}
	return out
}
