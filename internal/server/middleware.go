package server

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"adwatch/internal/domain"
	"adwatch/internal/watch"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	userContextKey contextKey = "user"
	authCookieName            = "auth_token"
	tokenIssuer               = "adwatch"
)

// Claims represents JWT claims
type Claims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Viewer returns the identity the viewing workflow acts for
func (c *Claims) Viewer() watch.Viewer {
	return watch.Viewer{UserID: c.UserID, Email: c.Email}
}

// authMiddleware protects API routes. Missing or invalid identity is a 401
// and nothing else runs.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return s.requireIdentity(next, func(w http.ResponseWriter, r *http.Request) {
		s.writeDomainError(w, r, domain.ErrAuth)
	})
}

// pageAuthMiddleware protects HTML pages by redirecting to the login page
func (s *Server) pageAuthMiddleware(next http.Handler) http.Handler {
	return s.requireIdentity(next, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

func (s *Server) requireIdentity(next http.Handler, deny http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.parseRequestToken(w, r)
		if !ok {
			deny(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, claims)))
	})
}

// parseRequestToken reads the token from the auth cookie or a Bearer header.
// An invalid cookie is cleared.
func (s *Server) parseRequestToken(w http.ResponseWriter, r *http.Request) (*Claims, bool) {
	var tokenString string
	fromCookie := false
	if cookie, err := r.Cookie(authCookieName); err == nil && cookie.Value != "" {
		tokenString = cookie.Value
		fromCookie = true
	} else {
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return nil, false
		}
		tokenString = parts[1]
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))

	if err != nil || !token.Valid || claims.UserID <= 0 {
		if fromCookie {
			clearAuthCookie(w)
		}
		return nil, false
	}
	return claims, true
}

// roleMiddleware admits admins and the listed roles
func (s *Server) roleMiddleware(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := getUserClaims(r)
			switch {
			case claims == nil:
				s.writeDomainError(w, r, domain.ErrAuth)
			case claims.Role != domain.RoleAdmin && !slices.Contains(allowedRoles, claims.Role):
				writeError(w, http.StatusForbidden, "forbidden", "forbidden")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// getUserClaims extracts user claims from request context
func getUserClaims(r *http.Request) *Claims {
	claims, ok := r.Context().Value(userContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// generateToken creates a new JWT token for a user
func (s *Server) generateToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWT.Secret))
}

// setAuthCookie sets the authentication cookie
func (s *Server) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.config.TokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   !s.config.Debug,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearAuthCookie removes the authentication cookie
func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// loggingMiddleware logs every request with its status and duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
