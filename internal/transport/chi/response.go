package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/logger"
)

// Error codes returned to clients.
const (
	CodeBadRequest       = "bad_request"
	CodeValidationFailed = "validation_failed"
	CodeNotFound         = "not_found"
	CodeUnknownEntity    = "unknown_entity"
	CodeStoreUnavailable = "store_unavailable"
	CodeInternal         = "internal_error"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   *ErrorBody     `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any, meta map[string]any) {
	writeJSON(w, status, Response{Success: true, Data: data, Meta: meta})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Error: &ErrorBody{Code: code, Message: message}})
}

// errorMapping maps a sentinel to a status and client code. Order matters:
// the first match wins.
type errorMapping struct {
	sentinel error
	status   int
	code     string
	// expose reports whether err.Error() is safe to show the client.
	expose bool
}

var errorMappings = []errorMapping{
	{domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed, true},
	{domain.ErrUnknownEntity, http.StatusNotFound, CodeUnknownEntity, true},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound, false},
	{domain.ErrStore, http.StatusInternalServerError, CodeStoreUnavailable, false},
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	for _, m := range errorMappings {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		msg := m.sentinel.Error()
		if m.expose {
			msg = err.Error()
		}
		if m.status >= http.StatusInternalServerError {
			log.Error("Request failed", zap.Error(err))
		} else {
			log.Debug("Request rejected", zap.Error(err))
		}
		writeError(w, m.status, m.code, msg)
		return
	}
	log.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
