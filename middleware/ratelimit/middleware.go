package ratelimit

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"jumble-api/middleware/ratelimit/application"
	"jumble-api/middleware/ratelimit/domain"
)

const (
	HeaderRemainingCalls = "X-Remaining-Calls"
	HeaderLimitKey       = "X-RateLimit-Key"
	HeaderLimit          = "X-RateLimit-Limit"
	HeaderWindow         = "X-RateLimit-Window"
)

type Options struct {
	Limiter            *application.Limiter
	Stats              domain.StatsStore
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RejectStatus       int

	// RetryAfter zero usa a janela do Limiter.
	RetryAfter time.Duration

	AddRateLimitHeaders bool
	Now                 func() time.Time
	Logger              *slog.Logger

	// DenyLogInterval limita os logs de negação a um a cada intervalo.
	DenyLogInterval time.Duration
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = opts.Limiter.Window()
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DenyLogInterval <= 0 {
		opts.DenyLogInterval = 10 * time.Second
	}

	denyLog := &rate.Sometimes{First: 1, Interval: opts.DenyLogInterval}
	var suppressed atomic.Int64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			at := opts.Now()

			if opts.AddRateLimitHeaders {
				w.Header().Set(HeaderLimitKey, key)
				w.Header().Set(HeaderLimit, formatInt(opts.Limiter.MaxCalls()))
				w.Header().Set(HeaderWindow, formatSeconds(opts.Limiter.Window()))
			}

			dec := opts.Limiter.Check(domain.Key(key), at)

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:       domain.Key(key),
					Allowed:   !dec.HasReachedLimit,
					Remaining: dec.RemainingCalls,
					Method:    r.Method,
					Path:      r.URL.Path,
					At:        at,
				})
				if err != nil {
					opts.Logger.Warn("rate limit stats not recorded", slog.String("error", err.Error()))
				}
			}

			if dec.HasReachedLimit {
				suppressed.Add(1)
				denyLog.Do(func() {
					opts.Logger.Warn("rate limit reached",
						slog.String("key", key),
						slog.String("path", r.URL.Path),
						slog.Int64("denied_since_last_log", suppressed.Swap(0)),
					)
				})
				w.Header().Set("Retry-After", formatSeconds(opts.RetryAfter))
				w.WriteHeader(opts.RejectStatus)
				return
			}

			w.Header().Set(HeaderRemainingCalls, formatInt(dec.RemainingCalls))
			next.ServeHTTP(w, r)
		})
	}
}
