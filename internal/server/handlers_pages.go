package server

import (
	"net/http"
	"time"

	"adwatch/internal/domain"

	"go.uber.org/zap"
)

// PageData holds common data for all page templates
type PageData struct {
	Title string
	Year  int
	User  *Claims
	Flash *FlashMessage
	Data  interface{}
}

// FlashMessage represents a flash message
type FlashMessage struct {
	Type    string // success, error
	Message string
}

// newPageData creates a new PageData with common fields
func (s *Server) newPageData(r *http.Request, title string) *PageData {
	return &PageData{
		Title: title,
		Year:  time.Now().Year(),
		User:  getUserClaims(r),
	}
}

// render renders a template with the given data
func (s *Server) render(w http.ResponseWriter, r *http.Request, template string, data *PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := s.templates.Render(w, template, data); err != nil {
		s.log.Error("render page", zap.String("template", template), zap.Error(err))
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
	}
}

// handleLoginPage renders the login page
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to dashboard
	if _, ok := s.parseRequestToken(w, r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, "pages/login.html", s.newPageData(r, "Log in"))
}

// handleLoginForm processes the login form
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error processing form", http.StatusBadRequest)
		return
	}

	user, err := s.store.Authenticate(r.Context(), r.FormValue("email"), r.FormValue("password"))
	if err != nil {
		data := s.newPageData(r, "Log in")
		data.Flash = &FlashMessage{Type: "error", Message: "Invalid credentials"}
		s.render(w, r, "pages/login.html", data)
		return
	}

	token, err := s.generateToken(user)
	if err != nil {
		http.Error(w, "Error generating token", http.StatusInternalServerError)
		return
	}
	s.setAuthCookie(w, token)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleLogoutPage drops the viewer's sessions and returns to the login page
func (s *Server) handleLogoutPage(w http.ResponseWriter, r *http.Request) {
	if claims, ok := s.parseRequestToken(w, r); ok {
		s.sessions.DropViewer(claims.UserID)
	}
	clearAuthCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleDashboard shows the catalog with the viewer's progress
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	claims := getUserClaims(r)
	ctx := r.Context()

	filter := domain.AdFilter{
		Query:    r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
	}
	ads, err := s.store.ListAds(ctx, filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	quota, err := s.store.GetQuota(ctx, claims.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	views, err := s.store.ListValidatedViews(ctx, claims.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	viewed := make(map[int64]bool, len(views))
	for _, v := range views {
		viewed[v.AdID] = true
	}

	data := s.newPageData(r, "Dashboard")
	data.Data = map[string]interface{}{
		"Ads":        ads,
		"Quota":      quota,
		"Viewed":     viewed,
		"Filter":     filter,
		"Categories": domain.Categories,
	}
	s.render(w, r, "pages/dashboard.html", data)
}

// handleWatchPage renders the player for one ad
func (s *Server) handleWatchPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ad, err := s.store.GetAd(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	data := s.newPageData(r, ad.Title)
	data.Data = map[string]interface{}{"Ad": ad}
	s.render(w, r, "pages/watch.html", data)
}
