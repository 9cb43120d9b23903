package infra

import (
	"context"
	"testing"
	"time"

	"jumble-api/middleware/ratelimit/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func put(s *MemoryRecordStore, key domain.Key, rec domain.ClientRecord) {
	s.Update(key, func(r *domain.ClientRecord, _ bool) bool {
		*r = rec
		return true
	})
}

func TestMemoryRecordStore_UpdatePassesFoundFlag(t *testing.T) {
	s := NewMemoryRecordStore()

	var sawFound bool
	s.Update("k", func(rec *domain.ClientRecord, found bool) bool {
		sawFound = found
		if rec.RemainingCalls != 0 || !rec.LastSeenAt.IsZero() {
			t.Fatalf("expected zero record for new key, got %+v", rec)
		}
		rec.RemainingCalls = 3
		rec.LastSeenAt = t0
		return true
	})
	if sawFound {
		t.Fatalf("expected found=false for new key")
	}

	s.Update("k", func(rec *domain.ClientRecord, found bool) bool {
		if !found || rec.RemainingCalls != 3 {
			t.Fatalf("expected stored record, got found=%v rec=%+v", found, rec)
		}
		return false
	})
}

func TestMemoryRecordStore_UpdateWithoutPersistLeavesRecord(t *testing.T) {
	s := NewMemoryRecordStore()
	put(s, "k", domain.ClientRecord{RemainingCalls: 1, LastSeenAt: t0})

	s.Update("k", func(rec *domain.ClientRecord, _ bool) bool {
		rec.RemainingCalls = 0
		return false
	})

	rec, ok := s.Get("k")
	if !ok || rec.RemainingCalls != 1 {
		t.Fatalf("expected record untouched, got ok=%v rec=%+v", ok, rec)
	}

	s.Update("other", func(*domain.ClientRecord, bool) bool { return false })
	if s.Len() != 1 {
		t.Fatalf("expected no record created without persist, got len=%d", s.Len())
	}
}

func TestMemoryRecordStore_CleanupRemovesIdleEntries(t *testing.T) {
	clock := &fakeClock{t: t0}
	s := NewMemoryRecordStore(WithIdleTTL(time.Minute), WithClock(clock.Now))

	put(s, "old", domain.ClientRecord{RemainingCalls: 4, LastSeenAt: t0.Add(-2 * time.Minute)})
	put(s, "fresh", domain.ClientRecord{RemainingCalls: 4, LastSeenAt: t0.Add(-30 * time.Second)})

	if n := s.Cleanup(); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if _, ok := s.Get("old"); ok {
		t.Fatalf("expected idle record to be removed")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Fatalf("expected fresh record to survive")
	}
}

func TestMemoryRecordStore_CleanupDisabledWithoutTTL(t *testing.T) {
	s := NewMemoryRecordStore()
	put(s, "old", domain.ClientRecord{LastSeenAt: time.Unix(0, 0)})

	if n := s.Cleanup(); n != 0 {
		t.Fatalf("expected cleanup to be a no-op, removed %d", n)
	}
}

func TestMemoryRecordStore_JanitorSweepsPeriodically(t *testing.T) {
	s := NewMemoryRecordStore(WithIdleTTL(time.Millisecond), WithCleanupEvery(2*time.Millisecond))
	put(s, "k", domain.ClientRecord{LastSeenAt: time.Now().Add(-time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	swept := make(chan int, 16)
	s.StartJanitor(ctx, func(n int) {
		select {
		case swept <- n:
		default:
		}
	})

	deadline := time.After(time.Second)
	for {
		select {
		case <-swept:
			if s.Len() == 0 {
				return
			}
		case <-deadline:
			t.Fatalf("janitor did not remove idle record")
		}
	}
}
