package synthesis

import "slack-mock/internal/domain"

// Rotation выбирает следующего говорящего по правилу «дольше всех молчал, но не предыдущий».
type Rotation struct {
	last map[string]int
	slot int
}

// NewRotation восстанавливает очередь по уже существующей истории чата.
func NewRotation(history []domain.Message) *Rotation {
	r := &Rotation{last: make(map[string]int, 8)}
	for _, m := range history {
		r.Observe(m.Who)
	}
	return r
}

// Observe отмечает, что who только что говорил.
func (r *Rotation) Observe(who string) {
	r.last[who] = r.slot
	r.slot++
}

// Next выбирает говорящего из candidates. previous исключается, если есть альтернатива.
// Равные кандидаты разрешаются случайно. Пустой candidates даёт "".
func (r *Rotation) Next(rng *Random, candidates []string, previous string) string {
	pool := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c != previous {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		pool = candidates
	}
	if len(pool) == 0 {
		return ""
	}

	best := make([]string, 0, len(pool))
	bestSlot := 0
	for _, c := range pool {
		slot, ok := r.last[c]
		if !ok {
			slot = -1
		}
		switch {
		case len(best) == 0 || slot < bestSlot:
			best = append(best[:0], c)
			bestSlot = slot
		case slot == bestSlot:
			best = append(best, c)
		}
	}
	return Pick(rng, best)
}
