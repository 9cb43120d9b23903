// Package api expõe o serviço via HTTP.
//
// Rotas:
//
//	POST /api/jumble/{n}  aplica o deslocamento n em {"message": "..."} (com rate limit)
//	GET  /api/stats       estatísticas do rate limit, se habilitadas
//	GET  /health          status e uptime
package api

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"jumble-api/middleware/ratelimit/domain"
)

// Gauge reporta ocupação de um recurso limitado (ex.: infra.ChanPool).
type Gauge interface {
	InUse() int
	Cap() int
}

type Deps struct {
	// RateLimit envolve apenas as rotas de jumble.
	RateLimit func(http.Handler) http.Handler

	// Inflight envolve todas as rotas.
	Inflight func(http.Handler) http.Handler

	Stats         domain.StatsReader
	InflightGauge Gauge
	Logger        *slog.Logger
	Version       string
}

type Server struct {
	deps      Deps
	logger    *slog.Logger
	validate  *validator.Validate
	startedAt time.Time
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.RateLimit == nil {
		deps.RateLimit = passThrough
	}
	if deps.Inflight == nil {
		deps.Inflight = passThrough
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	// mensagens de validação usam o nome do campo no JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Server{
		deps:      deps,
		logger:    deps.Logger,
		validate:  v,
		startedAt: time.Now(),
	}
}

// Routes monta o router chi com todos os middlewares.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(s.deps.Inflight)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/api/stats", s.handleStats)

	r.Group(func(r chi.Router) {
		r.Use(s.deps.RateLimit)
		r.Post("/api/jumble/{n}", s.handleJumble)
		// sem {n}: responde 400 em vez de 404
		r.Post("/api/jumble", s.handleJumble)
		r.Post("/api/jumble/", s.handleJumble)
	})

	return r
}

func passThrough(next http.Handler) http.Handler { return next }
