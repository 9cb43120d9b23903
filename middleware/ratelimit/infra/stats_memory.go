package infra

import (
	"context"
	"sync"

	"jumble-api/middleware/ratelimit/domain"
)

// MemoryStatsStore é uma implementação em memória, por instância.
//
// Não faz expiração; com WithTrackKeys(true) cresce com o número de clientes.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   domain.Counters
	byRoute map[string]domain.Counters
	byKey   map[domain.Key]domain.Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]domain.Counters),
		byKey:   make(map[domain.Key]domain.Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ domain.StatsStore  = (*MemoryStatsStore)(nil)
	_ domain.StatsReader = (*MemoryStatsStore)(nil)
)

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := routeField(ev.Method, ev.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	bump(&s.total, ev.Allowed)
	if route != "" {
		c := s.byRoute[route]
		bump(&c, ev.Allowed)
		s.byRoute[route] = c
	}
	if s.trackKeys && ev.Key != "" {
		c := s.byKey[ev.Key]
		bump(&c, ev.Allowed)
		s.byKey[ev.Key] = c
	}
	return nil
}

func (s *MemoryStatsStore) Snapshot(_ context.Context) (domain.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := domain.StatsSnapshot{
		Total:   s.total,
		ByRoute: make(map[string]domain.Counters, len(s.byRoute)),
	}
	for k, v := range s.byRoute {
		out.ByRoute[k] = v
	}
	return out, nil
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]domain.Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}

func bump(c *domain.Counters, allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}
