package application

import (
	"errors"
	"time"

	"jumble-api/middleware/ratelimit/domain"
)

// Limiter implementa a cota por cliente com janela que reinicia ao expirar.
//
// Não é uma janela deslizante: o primeiro contato abre a janela e só um contato
// depois de Window (em valor absoluto) a reinicia.
type Limiter struct {
	store    domain.RecordStore
	maxCalls int
	window   time.Duration
}

func NewLimiter(store domain.RecordStore, maxCalls int, window time.Duration) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	if maxCalls < 1 {
		return nil, errors.New("max calls must be >= 1")
	}
	if window <= 0 {
		return nil, errors.New("window must be > 0")
	}
	return &Limiter{store: store, maxCalls: maxCalls, window: window}, nil
}

func (l *Limiter) MaxCalls() int         { return l.maxCalls }
func (l *Limiter) Window() time.Duration { return l.window }

// Check consome uma chamada da cota de key no instante now.
//
// HasReachedLimit é verdadeiro somente quando a cota restante é exatamente 0.
// Um decremento que chegaria a 0 ou menos não é gravado, então o valor guardado
// nunca fica abaixo de 1 quando maxCalls >= 2.
func (l *Limiter) Check(key domain.Key, now time.Time) domain.Decision {
	remaining := l.maxCalls - 1

	l.store.Update(key, func(rec *domain.ClientRecord, found bool) bool {
		if !found || l.expired(rec.LastSeenAt, now) {
			rec.RemainingCalls = remaining
			rec.LastSeenAt = now
			return true
		}

		remaining = rec.RemainingCalls - 1
		if remaining > 0 {
			rec.RemainingCalls = remaining
			return true
		}
		return false
	})

	return domain.Decision{
		RemainingCalls:  remaining,
		HasReachedLimit: remaining == 0,
	}
}

// relógio voltando para trás conta como avanço
func (l *Limiter) expired(lastSeen, now time.Time) bool {
	elapsed := now.Sub(lastSeen)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	return elapsed >= l.window
}
