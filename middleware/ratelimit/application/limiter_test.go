package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jumble-api/middleware/ratelimit/domain"
	"jumble-api/middleware/ratelimit/infra"
)

type mapStore struct {
	mu   sync.Mutex
	recs map[domain.Key]domain.ClientRecord
}

func newMapStore() *mapStore {
	return &mapStore{recs: make(map[domain.Key]domain.ClientRecord)}
}

func (s *mapStore) Update(key domain.Key, fn domain.UpdateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key]
	if fn(&rec, ok) {
		s.recs[key] = rec
	}
}

func newTestLimiter(t *testing.T, store domain.RecordStore, maxCalls int, window time.Duration) *Limiter {
	t.Helper()
	l, err := NewLimiter(store, maxCalls, window)
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	return l
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewLimiter_RejectsInvalidParams(t *testing.T) {
	cases := []struct {
		name     string
		store    domain.RecordStore
		maxCalls int
		window   time.Duration
	}{
		{"nil store", nil, 5, time.Minute},
		{"zero calls", newMapStore(), 0, time.Minute},
		{"negative calls", newMapStore(), -1, time.Minute},
		{"zero window", newMapStore(), 5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewLimiter(tc.store, tc.maxCalls, tc.window); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLimiter_Check_FirstCallFromNewClient(t *testing.T) {
	l := newTestLimiter(t, newMapStore(), 5, time.Minute)

	dec := l.Check("127.0.0.1", t0)
	if dec.RemainingCalls != 4 || dec.HasReachedLimit {
		t.Fatalf("expected {4 false}, got %+v", dec)
	}
}

func TestLimiter_Check_DecrementsForKnownClient(t *testing.T) {
	l := newTestLimiter(t, newMapStore(), 5, time.Minute)

	l.Check("127.0.0.1", t0)
	dec := l.Check("127.0.0.1", t0.Add(time.Second))
	if dec.RemainingCalls != 3 || dec.HasReachedLimit {
		t.Fatalf("expected {3 false}, got %+v", dec)
	}
}

func TestLimiter_Check_ClientsAreIndependent(t *testing.T) {
	l := newTestLimiter(t, newMapStore(), 5, time.Minute)

	l.Check("127.0.0.1", t0)
	l.Check("127.0.0.1", t0)
	dec := l.Check("128.0.0.1", t0)
	if dec.RemainingCalls != 4 {
		t.Fatalf("expected fresh quota for second client, got %+v", dec)
	}
}

func TestLimiter_Check_ReachesLimitExactlyOnMaxCall(t *testing.T) {
	const maxCalls = 4
	l := newTestLimiter(t, newMapStore(), maxCalls, time.Minute)

	for i := 1; i < maxCalls; i++ {
		dec := l.Check("10.0.0.1", t0)
		if dec.HasReachedLimit {
			t.Fatalf("call %d: limit reached too early: %+v", i, dec)
		}
		if dec.RemainingCalls != maxCalls-i {
			t.Fatalf("call %d: expected remaining %d, got %d", i, maxCalls-i, dec.RemainingCalls)
		}
	}

	dec := l.Check("10.0.0.1", t0)
	if !dec.HasReachedLimit || dec.RemainingCalls != 0 {
		t.Fatalf("expected {0 true} on call %d, got %+v", maxCalls, dec)
	}
}

func TestLimiter_Check_StaysLimitedPastExhaustion(t *testing.T) {
	l := newTestLimiter(t, newMapStore(), 3, time.Minute)

	for i := 0; i < 3; i++ {
		l.Check("10.0.0.1", t0)
	}
	for i := 0; i < 5; i++ {
		dec := l.Check("10.0.0.1", t0.Add(time.Duration(i)*time.Second))
		if !dec.HasReachedLimit || dec.RemainingCalls != 0 {
			t.Fatalf("extra call %d: expected {0 true}, got %+v", i, dec)
		}
	}
}

func TestLimiter_Check_DoesNotPersistExhaustingDecrement(t *testing.T) {
	store := newMapStore()
	l := newTestLimiter(t, store, 2, time.Minute)

	l.Check("k", t0)
	l.Check("k", t0)

	if got := store.recs["k"].RemainingCalls; got != 1 {
		t.Fatalf("expected stored remaining to stay at 1, got %d", got)
	}
}

func TestLimiter_Check_DecrementKeepsLastSeen(t *testing.T) {
	store := newMapStore()
	l := newTestLimiter(t, store, 5, time.Minute)

	l.Check("k", t0)
	l.Check("k", t0.Add(30*time.Second))

	if got := store.recs["k"].LastSeenAt; !got.Equal(t0) {
		t.Fatalf("expected LastSeenAt %s, got %s", t0, got)
	}

	// a janela conta a partir do primeiro contato, não do último
	dec := l.Check("k", t0.Add(time.Minute))
	if dec.RemainingCalls != 4 {
		t.Fatalf("expected reset at window boundary, got %+v", dec)
	}
}

func TestLimiter_Check_ResetsAfterWindowEvenWhenExhausted(t *testing.T) {
	l := newTestLimiter(t, newMapStore(), 3, time.Minute)

	for i := 0; i < 3; i++ {
		l.Check("k", t0)
	}

	dec := l.Check("k", t0.Add(time.Minute))
	if dec.RemainingCalls != 2 || dec.HasReachedLimit {
		t.Fatalf("expected {2 false} after window, got %+v", dec)
	}
}

func TestLimiter_Check_JustInsideWindowDoesNotReset(t *testing.T) {
	l := newTestLimiter(t, newMapStore(), 5, time.Minute)

	l.Check("k", t0)
	dec := l.Check("k", t0.Add(time.Minute-time.Millisecond))
	if dec.RemainingCalls != 3 {
		t.Fatalf("expected decrement inside window, got %+v", dec)
	}
}

func TestLimiter_Check_BackwardClockCountsAsElapsed(t *testing.T) {
	l := newTestLimiter(t, newMapStore(), 5, time.Minute)

	l.Check("k", t0)
	l.Check("k", t0)

	dec := l.Check("k", t0.Add(-2*time.Minute))
	if dec.RemainingCalls != 4 {
		t.Fatalf("expected reset when clock moves back past window, got %+v", dec)
	}

	dec = l.Check("k", t0.Add(-2*time.Minute-10*time.Second))
	if dec.RemainingCalls != 3 {
		t.Fatalf("expected decrement for small backward step, got %+v", dec)
	}
}

// Com maxCalls == 1 a primeira chamada já zera a cota; as seguintes ficam
// negativas, nunca são gravadas e passam até a janela expirar.
func TestLimiter_Check_SingleCallQuota(t *testing.T) {
	l := newTestLimiter(t, newMapStore(), 1, time.Minute)

	first := l.Check("k", t0)
	if first.RemainingCalls != 0 || !first.HasReachedLimit {
		t.Fatalf("expected {0 true} on first call, got %+v", first)
	}
	for i := 0; i < 3; i++ {
		dec := l.Check("k", t0.Add(time.Duration(i+1)*time.Second))
		if dec.RemainingCalls != -1 || dec.HasReachedLimit {
			t.Fatalf("call %d: expected {-1 false}, got %+v", i+2, dec)
		}
	}

	again := l.Check("k", t0.Add(time.Minute))
	if again.RemainingCalls != 0 || !again.HasReachedLimit {
		t.Fatalf("expected {0 true} after window reset, got %+v", again)
	}
}

func TestLimiter_Check_ConcurrentCallsNeverExceedQuota(t *testing.T) {
	assertConcurrentQuota(t, newMapStore())
}

// O janitor roda durante o teste com idleTTL igual à janela; como a janela é
// longa ele não encontra nada para remover e a contagem não muda.
func TestLimiter_Check_ConcurrentCallsWithMemoryStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var evicted atomic.Int64
	store := infra.NewMemoryRecordStore(
		infra.WithIdleTTL(time.Hour),
		infra.WithCleanupEvery(time.Millisecond),
		infra.WithClock(func() time.Time { return t0 }),
	)
	store.StartJanitor(ctx, func(removed int) { evicted.Add(int64(removed)) })

	assertConcurrentQuota(t, store)

	if n := evicted.Load(); n != 0 {
		t.Fatalf("expected janitor to keep live records, removed %d", n)
	}
	if store.Len() != 1 {
		t.Fatalf("expected the shared record to survive, got %d records", store.Len())
	}
}

func assertConcurrentQuota(t *testing.T, store domain.RecordStore) {
	t.Helper()
	const (
		maxCalls   = 20
		goroutines = 16
		perG       = 10
	)
	l := newTestLimiter(t, store, maxCalls, time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
		limited int
	)
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				dec := l.Check("shared", t0)
				mu.Lock()
				if dec.HasReachedLimit {
					limited++
				} else {
					allowed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != maxCalls-1 {
		t.Fatalf("expected exactly %d allowed calls, got %d", maxCalls-1, allowed)
	}
	if limited != goroutines*perG-allowed {
		t.Fatalf("expected remaining calls to be limited, got %d", limited)
	}
}
