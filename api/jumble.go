package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"jumble-api/cipher"
)

const maxBodyBytes = 1 << 20

const (
	msgMissingBody    = "Missing body"
	msgInvalidJSON    = "Invalid JSON body"
	msgBodyTooLarge   = "Body too large"
	msgMissingMessage = "[Missing body property] - `message`"
	msgMissingShift   = "[Missing path param] - `n`"
	msgInvalidShift   = "[Invalid path param] - `n` must be an integer"
)

type jumbleRequest struct {
	Message string `json:"message" validate:"required"`
}

type jumbleResponse struct {
	Jumbled string `json:"jumbled"`
}

// handleJumble atende POST /api/jumble/{n}. O rate limit já foi aplicado e o
// header X-Remaining-Calls já está na resposta.
func (s *Server) handleJumble(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, msgMissingBody)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, msgMissingBody)
		return
	}

	var req jumbleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	raw := chi.URLParam(r, "n")
	if raw == "" {
		writeError(w, http.StatusBadRequest, msgMissingShift)
		return
	}
	shift, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidShift)
		return
	}

	if err := writeJSON(w, http.StatusOK, jumbleResponse{Jumbled: cipher.Transform(req.Message, shift)}); err != nil {
		s.logger.Error("write jumble response", slog.String("error", err.Error()))
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "message" && fe.Tag() == "required" {
				return msgMissingMessage
			}
		}
		if len(verrs) > 0 {
			return "[Invalid body property] - `" + verrs[0].Field() + "`"
		}
	}
	return msgInvalidJSON
}
