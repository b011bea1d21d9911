package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adwatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginStoresTokenAndSendsBearer(t *testing.T) {
	var gotAuth string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "a@example.com", body["email"])
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"token": "tok-1",
				"user":  map[string]interface{}{"id": 7, "email": "a@example.com", "role": "member"},
			})
		case "/api/me/quota":
			gotAuth = r.Header.Get("Authorization")
			writeJSON(w, http.StatusOK, map[string]interface{}{"userId": 7, "count": 2, "required": 5, "met": false, "remaining": 3})
		default:
			http.NotFound(w, r)
		}
	})

	user, err := c.Login(context.Background(), "a@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "tok-1", c.Token())

	q, err := c.Quota(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, 2, q.Count)
	assert.Equal(t, 3, q.Remaining)
}

func TestErrorResponseUnwrapsToDomainError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":   "quota not met: 4 of 5 validated views",
			"code":    "quota_not_met",
			"message": "watch more videos",
		})
	})

	_, err := c.CreateAd(context.Background(), domain.AdDraft{Title: "Bike"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuotaNotMet)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "watch more videos")
}

func TestUnknownErrorBodyKeepsStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Views(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Err)
}

func TestListAdsEncodesFilter(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ads", r.URL.Path)
		assert.Equal(t, "red bike", r.URL.Query().Get("q"))
		assert.Equal(t, "Sports", r.URL.Query().Get("category"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ads": []map[string]interface{}{{"id": 3, "title": "Red bike", "category": "Sports", "price": "120.50"}},
		})
	})

	ads, err := c.ListAds(context.Background(), domain.AdFilter{Query: "red bike", Category: "Sports"})
	require.NoError(t, err)
	require.Len(t, ads, 1)
	assert.Equal(t, "120.5", ads[0].Price.Decimal.String())
}

func TestSessionCalls(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/ads/4/sessions":
			writeJSON(w, http.StatusCreated, map[string]interface{}{"session": map[string]interface{}{"id": "s1", "adId": 4}})
		case r.URL.Path == "/api/sessions/s1/events":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "progress", body["kind"])
			assert.InDelta(t, 3.0, body["position"], 0.0001)
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"session": map[string]interface{}{"id": "s1", "adId": 4, "revealed": true, "code": "AB12CD"},
				"events":  []map[string]string{{"kind": "code_appear", "code": "AB12CD"}},
			})
		case r.URL.Path == "/api/sessions/s1/close":
			writeJSON(w, http.StatusOK, map[string]interface{}{"session": map[string]interface{}{"id": "s1", "closed": true, "gate": "awaiting_input"}})
		case r.URL.Path == "/api/sessions/s1/verify":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"outcome": "match",
				"session": map[string]interface{}{"id": "s1", "consumed": true},
				"quota":   map[string]interface{}{"count": 1, "required": 5},
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/sessions/s1":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	sess, err := c.OpenSession(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)

	sess, events, err := c.Report(ctx, "s1", "progress", 3*time.Second)
	require.NoError(t, err)
	assert.True(t, sess.Revealed)
	require.Len(t, events, 1)
	assert.Equal(t, "AB12CD", events[0].Code)

	sess, err = c.CloseSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "awaiting_input", sess.Gate)

	res, err := c.Verify(ctx, "s1", "AB12CD")
	require.NoError(t, err)
	assert.True(t, res.Matched())
	assert.Equal(t, 1, res.Quota.Count)

	assert.NoError(t, c.DiscardSession(ctx, "s1"))
}

func TestTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := New(srv.URL, nil)
	srv.Close()

	_, err := c.Quota(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransient)
}
