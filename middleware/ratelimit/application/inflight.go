package application

import (
	"context"
	"time"

	"jumble-api/middleware/ratelimit/domain"
)

// Inflight controla quantas requisições podem estar em execução ao mesmo tempo,
// sem saber nada sobre HTTP.
type Inflight struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta reservar uma vaga.
//   - AcquireTimeout <= 0: espera até ctx encerrar.
//   - AcquireTimeout > 0: espera no máximo AcquireTimeout.
//
// Se ok=false nenhuma vaga foi reservada e release é nil.
func (s Inflight) Acquire(ctx context.Context) (release func(), ok bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}
	return s.Pool.Acquire(ctx)
}
