package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryOnce(t *testing.T) {
	m := NewMemory()
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	calls := 0
	run := func() error { calls++; return nil }
	for i := 0; i < 3; i++ {
		if err := m.Once(context.Background(), "u:1", time.Minute, run); err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("ожидали один вызов, получили %d", calls)
	}

	now = now.Add(2 * time.Minute)
	_ = m.Once(context.Background(), "u:1", time.Minute, run)
	if calls != 2 {
		t.Fatalf("после истечения TTL ключ должен сработать снова, вызовов %d", calls)
	}
}

func TestMemoryOnceReleasesOnError(t *testing.T) {
	m := NewMemory()
	boom := errors.New("boom")
	if err := m.Once(context.Background(), "k", time.Minute, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("ожидали ошибку fn, получили %v", err)
	}
	called := false
	_ = m.Once(context.Background(), "k", time.Minute, func() error { called = true; return nil })
	if !called {
		t.Fatalf("после ошибки ключ должен быть снят")
	}
}
