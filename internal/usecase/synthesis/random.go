package synthesis

import (
	"math/rand/v2"
	"time"
)

// Random: единственный источник случайности движка. Не безопасен для конкурентного
// использования: движок вызывает его под своим мьютексом.
type Random struct {
	r *rand.Rand
}

// NewRandom создаёт генератор с фиксированным сидом. Сид 0 берётся от текущего времени.
func NewRandom(seed uint64) *Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Random{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// IntN возвращает число из [0, n). Для n <= 0 возвращает 0.
func (r *Random) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return r.r.IntN(n)
}

// Range возвращает число из [lo, hi] включительно.
func (r *Random) Range(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.r.IntN(hi-lo+1)
}

// Float64 возвращает число из [0, 1).
func (r *Random) Float64() float64 {
	return r.r.Float64()
}

// Chance возвращает true с вероятностью p.
func (r *Random) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.r.Float64() < p
}

// Duration возвращает длительность из [lo, hi].
func (r *Random) Duration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.r.Int64N(int64(hi-lo)+1))
}

// Pick выбирает случайный элемент непустого среза.
func Pick[T any](r *Random, items []T) T {
	return items[r.IntN(len(items))]
}
