package infra

import (
	"context"
	"sync"
	"time"

	"jumble-api/middleware/ratelimit/domain"
)

// MemoryRecordStore guarda os ClientRecord em memória, com limpeza periódica
// de registros inativos.
//
// Um único mutex cobre Update e Cleanup, então o read-modify-write do limiter
// é atômico também em relação ao janitor.
type MemoryRecordStore struct {
	mu           sync.Mutex
	records      map[domain.Key]domain.ClientRecord
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type StoreOption func(*MemoryRecordStore)

// WithIdleTTL define a idade (a partir de LastSeenAt) em que um registro pode ser
// descartado. Zero desliga a limpeza.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *MemoryRecordStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *MemoryRecordStore) { s.cleanupEvery = d }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryRecordStore) { s.now = now }
}

func NewMemoryRecordStore(opts ...StoreOption) *MemoryRecordStore {
	s := &MemoryRecordStore{
		records:      make(map[domain.Key]domain.ClientRecord),
		cleanupEvery: time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.RecordStore = (*MemoryRecordStore)(nil)

// Update implementa domain.RecordStore.
func (s *MemoryRecordStore) Update(key domain.Key, fn domain.UpdateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if fn(&rec, ok) {
		s.records[key] = rec
	}
}

func (s *MemoryRecordStore) Get(key domain.Key) (domain.ClientRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

func (s *MemoryRecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryRecordStore) IdleTTL() time.Duration      { return s.idleTTL }
func (s *MemoryRecordStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Cleanup remove registros com LastSeenAt mais antigo que idleTTL e devolve
// quantos foram removidos.
func (s *MemoryRecordStore) Cleanup() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, rec := range s.records {
		if rec.LastSeenAt.Before(cutoff) {
			delete(s.records, k)
			removed++
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que chama Cleanup periodicamente.
// Pare cancelando o contexto. onSweep (opcional) recebe o total removido.
func (s *MemoryRecordStore) StartJanitor(ctx context.Context, onSweep func(removed int)) {
	if s.cleanupEvery <= 0 || s.idleTTL <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n := s.Cleanup()
				if onSweep != nil {
					onSweep(n)
				}
			}
		}
	}()
}
