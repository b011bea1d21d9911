package server

import (
	"net/http"
	"strconv"

	"adwatch/internal/domain"

	"github.com/go-chi/chi/v5"
)

// apiListAds returns the catalog filtered by ?q= and ?category=
func (s *Server) apiListAds(w http.ResponseWriter, r *http.Request) {
	filter := domain.AdFilter{
		Query:    r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
	}
	ads, err := s.store.ListAds(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ads": ads})
}

func (s *Server) apiGetAd(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ad, err := s.store.GetAd(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ad)
}

// apiCreateAd stores a listing once the viewing quota is met
func (s *Server) apiCreateAd(w http.ResponseWriter, r *http.Request) {
	var draft domain.AdDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	ad, err := s.store.CreateAd(r.Context(), getUserClaims(r).UserID, draft)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ad)
}

func (s *Server) apiListViews(w http.ResponseWriter, r *http.Request) {
	views, err := s.store.ListValidatedViews(r.Context(), getUserClaims(r).UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"views": views})
}

func (s *Server) apiGetQuota(w http.ResponseWriter, r *http.Request) {
	q, err := s.store.GetQuota(r.Context(), getUserClaims(r).UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuotaResponse(q))
}

// apiResetQuota zeroes a user's validated-view count
func (s *Server) apiResetQuota(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q, err := s.store.ResetQuota(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuotaResponse(q))
}

type quotaResponse struct {
	*domain.QuotaCounter
	Met       bool `json:"met"`
	Remaining int  `json:"remaining"`
}

func newQuotaResponse(q *domain.QuotaCounter) *quotaResponse {
	if q == nil {
		return nil
	}
	return &quotaResponse{QuotaCounter: q, Met: q.Met(), Remaining: q.Remaining()}
}

// pathID parses a positive integer URL parameter and writes a 400 otherwise
func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+key, "bad_request")
		return 0, false
	}
	return id, true
}
