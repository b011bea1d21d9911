package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"adwatch/internal/domain"

	"go.uber.org/zap"
)

// APIError is the standard error response of the JSON API
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errMsg, codeStr string) {
	writeJSON(w, code, APIError{
		Error:   errMsg,
		Code:    codeStr,
		Message: errMsg,
	})
}

// errorStatus maps domain errors to an HTTP status and an error code
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrValidation, http.StatusBadRequest, "validation_error"},
	{domain.ErrAuth, http.StatusUnauthorized, "auth_required"},
	{domain.ErrDuplicateView, http.StatusConflict, "duplicate_view"},
	{domain.ErrInvalidCode, http.StatusUnprocessableEntity, "invalid_code"},
	{domain.ErrQuotaNotMet, http.StatusForbidden, "quota_not_met"},
	{domain.ErrTransient, http.StatusServiceUnavailable, "temporarily_unavailable"},
	{domain.ErrAdNotFound, http.StatusNotFound, "ad_not_found"},
	{domain.ErrUserExists, http.StatusConflict, "user_exists"},
	{domain.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{domain.ErrNotCloseEligible, http.StatusConflict, "not_close_eligible"},
	{domain.ErrGateClosed, http.StatusConflict, "gate_closed"},
	{domain.ErrCodeConsumed, http.StatusConflict, "code_consumed"},
	{domain.ErrCodeNotIssued, http.StatusConflict, "code_not_issued"},
	{domain.ErrCodeHidden, http.StatusConflict, "code_hidden"},
}

// writeDomainError writes err with the status of the first matching domain
// error. Anything else is logged and reported as an internal error.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorStatus {
		if !errors.Is(err, m.err) {
			continue
		}
		body := APIError{Error: m.err.Error(), Code: m.code, Message: err.Error()}
		var fe *domain.FieldError
		if errors.As(err, &fe) {
			body.Field = fe.Field
		}
		if m.status >= http.StatusInternalServerError {
			s.log.Warn("request failed", zap.String("path", r.URL.Path), zap.Error(err))
			body.Message = m.err.Error()
		}
		writeJSON(w, m.status, body)
		return
	}

	s.log.Error("unexpected error", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error", "internal")
}
