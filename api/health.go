package api

import (
	"log/slog"
	"net/http"
	"time"
)

type healthResponse struct {
	Status   string         `json:"status"`
	Version  string         `json:"version,omitempty"`
	Uptime   string         `json:"uptime"`
	Inflight *inflightUsage `json:"inflight,omitempty"`
}

type inflightUsage struct {
	InUse int `json:"in_use"`
	Max   int `json:"max"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: s.deps.Version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
	}
	if g := s.deps.InflightGauge; g != nil {
		resp.Inflight = &inflightUsage{InUse: g.InUse(), Max: g.Cap()}
	}
	_ = writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		writeError(w, http.StatusNotFound, "Stats disabled")
		return
	}

	snap, err := s.deps.Stats.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("read rate limit stats",
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Stats unavailable")
		return
	}
	_ = writeJSON(w, http.StatusOK, snap)
}
