package server

import (
	"net/http"
	"time"

	"adwatch/internal/domain"
	"adwatch/internal/watch"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// sessionResponse is the JSON form of a viewing session
type sessionResponse struct {
	ID             string  `json:"id"`
	AdID           int64   `json:"adId"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	Playing        bool    `json:"playing"`
	Revealed       bool    `json:"revealed"`
	Code           string  `json:"code,omitempty"`
	Closable       bool    `json:"closable"`
	Closed         bool    `json:"closed"`
	Completed      bool    `json:"completed"`
	Gate           string  `json:"gate,omitempty"`
	Consumed       bool    `json:"consumed"`
	Attempts       int     `json:"attempts"`
}

type eventResponse struct {
	Kind string `json:"kind"`
	Code string `json:"code,omitempty"`
}

type sessionEnvelope struct {
	Session sessionResponse `json:"session"`
	Events  []eventResponse `json:"events,omitempty"`
}

// maxPosition bounds reported playhead positions
const maxPosition = 24 * time.Hour

type eventRequest struct {
	Kind     watch.InputKind `json:"kind"`
	Position float64         `json:"position"`
}

type verifyRequest struct {
	Code string `json:"code"`
}

type verifyResponse struct {
	Outcome string             `json:"outcome"`
	Session sessionResponse    `json:"session"`
	View    *domain.ViewRecord `json:"view,omitempty"`
	Quota   *quotaResponse     `json:"quota,omitempty"`
}

func newSessionResponse(snap watch.Snapshot) sessionResponse {
	resp := sessionResponse{
		ID:             snap.ID.String(),
		AdID:           snap.AdID,
		ElapsedSeconds: snap.Elapsed.Seconds(),
		Playing:        snap.Playing,
		Revealed:       snap.Revealed,
		Code:           snap.Code,
		Closable:       snap.Closable,
		Closed:         snap.Closed,
		Completed:      snap.Completed,
		Consumed:       snap.Consumed,
		Attempts:       snap.Attempts,
	}
	if snap.Closed {
		resp.Gate = snap.Gate.String()
	}
	return resp
}

// apiOpenSession starts watching an ad
func (s *Server) apiOpenSession(w http.ResponseWriter, r *http.Request) {
	adID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	snap, err := s.sessions.Open(r.Context(), getUserClaims(r).Viewer(), adID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionEnvelope{Session: newSessionResponse(snap)})
}

func (s *Server) apiGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	snap, err := s.sessions.Get(getUserClaims(r).Viewer(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope{Session: newSessionResponse(snap)})
}

// apiSessionEvent feeds one playback event to the session
func (s *Server) apiSessionEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Position < 0 {
		s.writeDomainError(w, r, &domain.FieldError{Field: "position", Message: "must not be negative"})
		return
	}
	if req.Position > maxPosition.Seconds() {
		s.writeDomainError(w, r, &domain.FieldError{Field: "position", Message: "must not exceed " + maxPosition.String()})
		return
	}

	in := watch.Input{Kind: req.Kind, Position: time.Duration(req.Position * float64(time.Second))}
	snap, events, err := s.sessions.Apply(r.Context(), getUserClaims(r).Viewer(), id, in)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := sessionEnvelope{Session: newSessionResponse(snap)}
	for _, ev := range events {
		resp.Events = append(resp.Events, eventResponse{Kind: ev.Kind.String(), Code: ev.Code})
	}
	writeJSON(w, http.StatusOK, resp)
}

// apiSessionCodeQR renders the code as a QR PNG while it is displayed
func (s *Server) apiSessionCodeQR(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	snap, err := s.sessions.Get(getUserClaims(r).Viewer(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !snap.Revealed {
		s.writeDomainError(w, r, domain.ErrCodeNotIssued)
		return
	}
	if snap.Code == "" {
		s.writeDomainError(w, r, domain.ErrCodeHidden)
		return
	}

	png, err := qrcode.Encode(snap.Code, qrcode.Medium, 256)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// apiCloseSession opens the verification gate
func (s *Server) apiCloseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	snap, err := s.sessions.Close(r.Context(), getUserClaims(r).Viewer(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope{Session: newSessionResponse(snap)})
}

// apiVerifySession submits a code. A mismatch is a normal 200 outcome.
func (s *Server) apiVerifySession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.sessions.Verify(r.Context(), getUserClaims(r).Viewer(), id, req.Code)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		Outcome: res.Outcome.String(),
		Session: newSessionResponse(res.Snapshot),
		View:    res.Record,
		Quota:   newQuotaResponse(res.Quota),
	})
}

// apiDiscardSession drops a session after success or cancel
func (s *Server) apiDiscardSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Discard(getUserClaims(r).Viewer(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id", "bad_request")
		return uuid.Nil, false
	}
	return id, true
}
