package scheduler

import (
	"fmt"
	"time"
)

// Band: диапазон задержки между тиками.
type Band struct {
	Min time.Duration
	Max time.Duration
}

// Policy выбирает следующую задержку по доле чатов с непрочитанными.
// Чем больше непрочитанных, тем реже и тем чаще пропускаются тики.
type Policy struct {
	LowThreshold  float64
	HighThreshold float64
	Low           Band
	Mid           Band
	High          Band
	HighSkip      float64
}

// Source: то, что нужно политике от генератора случайных чисел.
type Source interface {
	Duration(lo, hi time.Duration) time.Duration
	Chance(p float64) bool
}

// DefaultPolicy возвращает настройки демо по умолчанию.
func DefaultPolicy() Policy {
	return Policy{
		LowThreshold:  0.25,
		HighThreshold: 0.6,
		Low:           Band{Min: 3 * time.Second, Max: 7 * time.Second},
		Mid:           Band{Min: 10 * time.Second, Max: 20 * time.Second},
		High:          Band{Min: 25 * time.Second, Max: 45 * time.Second},
		HighSkip:      0.7,
	}
}

// Validate проверяет пороги и диапазоны.
func (p Policy) Validate() error {
	if p.LowThreshold < 0 || p.HighThreshold > 1 || p.LowThreshold >= p.HighThreshold {
		return fmt.Errorf("пороги политики: ожидали 0 <= low < high <= 1, получили %.2f и %.2f", p.LowThreshold, p.HighThreshold)
	}
	bands := []struct {
		name string
		band Band
	}{{"low", p.Low}, {"mid", p.Mid}, {"high", p.High}}
	for _, b := range bands {
		if b.band.Min <= 0 || b.band.Max < b.band.Min {
			return fmt.Errorf("диапазон %s: некорректные границы %s..%s", b.name, b.band.Min, b.band.Max)
		}
	}
	if p.HighSkip < 0 || p.HighSkip > 1 {
		return fmt.Errorf("доля пропусков %.2f вне [0, 1]", p.HighSkip)
	}
	return nil
}

func (p Policy) band(ratio float64) Band {
	switch {
	case ratio < p.LowThreshold:
		return p.Low
	case ratio > p.HighThreshold:
		return p.High
	default:
		return p.Mid
	}
}

// NextDelay возвращает задержку до следующего тика.
func (p Policy) NextDelay(ratio float64, rng Source) time.Duration {
	b := p.band(ratio)
	return rng.Duration(b.Min, b.Max)
}

// ShouldSkip решает, пропустить ли тик при перегрузке непрочитанными.
func (p Policy) ShouldSkip(ratio float64, rng Source) bool {
	if ratio <= p.HighThreshold {
		return false
	}
	return rng.Chance(p.HighSkip)
}
