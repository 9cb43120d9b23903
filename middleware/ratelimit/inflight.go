package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"jumble-api/middleware/ratelimit/application"
	"jumble-api/middleware/ratelimit/domain"
)

type InflightOptions struct {
	// Pool nil desliga o limite.
	Pool           domain.SlotPool
	RejectStatus   int
	AcquireTimeout time.Duration
	Logger         *slog.Logger
}

// InflightMiddleware recusa a requisição quando não há vaga no pool dentro de
// AcquireTimeout (ou antes do cliente desistir).
func InflightMiddleware(opts InflightOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	svc := application.Inflight{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				opts.Logger.Debug("inflight limit reached", slog.String("path", r.URL.Path))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
