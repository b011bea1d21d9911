package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"adwatch/internal/domain"

	"go.uber.org/zap"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// apiRegister creates a member account and logs it in
func (s *Server) apiRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.store.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeAuth(w, r, http.StatusCreated, user)
}

// apiLogin exchanges credentials for a token, also set as a cookie
func (s *Server) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.store.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeAuth(w, r, http.StatusOK, user)
}

// apiLogout discards the viewer's open sessions and clears the cookie
func (s *Server) apiLogout(w http.ResponseWriter, r *http.Request) {
	claims := getUserClaims(r)
	n := s.sessions.DropViewer(claims.UserID)
	clearAuthCookie(w)
	s.log.Info("user logged out", zap.Int64("user_id", claims.UserID), zap.Int("sessions_dropped", n))
	writeJSON(w, http.StatusOK, map[string]int{"sessionsDropped": n})
}

func (s *Server) writeAuth(w http.ResponseWriter, r *http.Request, status int, user *domain.User) {
	token, err := s.generateToken(user)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.setAuthCookie(w, token)
	writeJSON(w, status, authResponse{Token: token, User: user})
}

// decodeJSON reads a JSON body into v and writes a 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "body_too_large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "bad_request")
		return false
	}
	return true
}
