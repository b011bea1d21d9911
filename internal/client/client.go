// Package client is a Go client of the adwatch JSON API
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"adwatch/internal/domain"
)

// APIError is an error response of the server. It unwraps to the matching
// domain error so callers can use errors.Is.
type APIError struct {
	Status  int    `json:"-"`
	Err     string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d %s)", e.Err, e.Status, e.Code)
}

var codeErrors = map[string]error{
	"validation_error":        domain.ErrValidation,
	"auth_required":           domain.ErrAuth,
	"duplicate_view":          domain.ErrDuplicateView,
	"invalid_code":            domain.ErrInvalidCode,
	"quota_not_met":           domain.ErrQuotaNotMet,
	"temporarily_unavailable": domain.ErrTransient,
	"ad_not_found":            domain.ErrAdNotFound,
	"user_exists":             domain.ErrUserExists,
	"session_not_found":       domain.ErrSessionNotFound,
	"not_close_eligible":      domain.ErrNotCloseEligible,
	"gate_closed":             domain.ErrGateClosed,
	"code_consumed":           domain.ErrCodeConsumed,
	"code_not_issued":         domain.ErrCodeNotIssued,
	"code_hidden":             domain.ErrCodeHidden,
}

func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}

// Session is the server view of a viewing session
type Session struct {
	ID             string  `json:"id"`
	AdID           int64   `json:"adId"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	Playing        bool    `json:"playing"`
	Revealed       bool    `json:"revealed"`
	Code           string  `json:"code"`
	Closable       bool    `json:"closable"`
	Closed         bool    `json:"closed"`
	Completed      bool    `json:"completed"`
	Gate           string  `json:"gate"`
	Consumed       bool    `json:"consumed"`
	Attempts       int     `json:"attempts"`
}

// Event is a threshold event raised by a playback report
type Event struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
}

// Quota is a viewer's validated-view progress
type Quota struct {
	UserID      int64     `json:"userId"`
	Count       int       `json:"count"`
	Required    int       `json:"required"`
	LastResetAt time.Time `json:"lastResetAt"`
	Met         bool      `json:"met"`
	Remaining   int       `json:"remaining"`
}

// VerifyResult is the answer to a code submission
type VerifyResult struct {
	Outcome string             `json:"outcome"`
	Session Session            `json:"session"`
	View    *domain.ViewRecord `json:"view"`
	Quota   *Quota             `json:"quota"`
}

// Matched reports whether the submission matched
func (v VerifyResult) Matched() bool { return v.Outcome == "match" }

// Client calls the API with a bearer token
type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for baseURL. A nil httpClient uses a 15s timeout client.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// SetToken sets the bearer token used for authenticated calls
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type authResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Register creates an account and keeps its token
func (c *Client) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	return c.authenticate(ctx, "/api/auth/register", map[string]string{"email": email, "password": password, "name": name})
}

// Login authenticates and keeps the token
func (c *Client) Login(ctx context.Context, email, password string) (*domain.User, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{"email": email, "password": password})
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}) (*domain.User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return resp.User, nil
}

// Logout drops the server-side sessions and forgets the token
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// ListAds returns the catalog matching filter
func (c *Client) ListAds(ctx context.Context, filter domain.AdFilter) ([]domain.Ad, error) {
	q := url.Values{}
	if filter.Query != "" {
		q.Set("q", filter.Query)
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	path := "/api/ads"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Ads []domain.Ad `json:"ads"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Ads, nil
}

// CreateAd submits a new listing
func (c *Client) CreateAd(ctx context.Context, draft domain.AdDraft) (*domain.Ad, error) {
	var ad domain.Ad
	if err := c.do(ctx, http.MethodPost, "/api/ads", draft, &ad); err != nil {
		return nil, err
	}
	return &ad, nil
}

// Views returns the viewer's validated views
func (c *Client) Views(ctx context.Context) ([]domain.ViewRecord, error) {
	var resp struct {
		Views []domain.ViewRecord `json:"views"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/me/views", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Views, nil
}

// Quota returns the viewer's quota counter
func (c *Client) Quota(ctx context.Context) (*Quota, error) {
	var q Quota
	if err := c.do(ctx, http.MethodGet, "/api/me/quota", nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

type sessionEnvelope struct {
	Session Session `json:"session"`
	Events  []Event `json:"events"`
}

// OpenSession starts watching adID
func (c *Client) OpenSession(ctx context.Context, adID int64) (*Session, error) {
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/ads/%d/sessions", adID), nil, &env); err != nil {
		return nil, err
	}
	return &env.Session, nil
}

// Report sends a playback event at position
func (c *Client) Report(ctx context.Context, sessionID, kind string, position time.Duration) (*Session, []Event, error) {
	body := map[string]interface{}{"kind": kind, "position": position.Seconds()}
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(sessionID)+"/events", body, &env); err != nil {
		return nil, nil, err
	}
	return &env.Session, env.Events, nil
}

// CloseSession opens the verification gate
func (c *Client) CloseSession(ctx context.Context, sessionID string) (*Session, error) {
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(sessionID)+"/close", nil, &env); err != nil {
		return nil, err
	}
	return &env.Session, nil
}

// Verify submits a code
func (c *Client) Verify(ctx context.Context, sessionID, code string) (*VerifyResult, error) {
	var res VerifyResult
	body := map[string]string{"code": code}
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(sessionID)+"/verify", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ResetQuota restarts userID's quota window. Requires an admin token.
func (c *Client) ResetQuota(ctx context.Context, userID int64) (*Quota, error) {
	var q Quota
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/quota/reset", userID), nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// DiscardSession drops a session
func (c *Client) DiscardSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(sessionID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Transient(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Err = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
