package middleware

import (
	"net/http"
	"strings"

	"biolink/internal/auth"
	"biolink/internal/config"
	"biolink/internal/util"

	"github.com/gorilla/sessions"
)

type Middleware struct {
	Config   *config.Config
	Sessions *sessions.CookieStore
}

func NewMiddleware(cfg *config.Config, sessionStore *sessions.CookieStore) *Middleware {
	return &Middleware{Config: cfg, Sessions: sessionStore}
}

// AuthMiddleware accepts a bearer token or the session cookie and stores the
// user ID in the request context.
func (m *Middleware) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.userFromBearer(r)
		if userID == "" {
			userID = m.userFromSession(r)
		}
		if userID == "" {
			util.WriteError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	})
}

func (m *Middleware) userFromBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}

	claims, err := auth.ParseToken(strings.TrimPrefix(authHeader, "Bearer "), m.Config.JwtKey)
	if err != nil {
		return ""
	}
	return claims.UserID
}

func (m *Middleware) userFromSession(r *http.Request) string {
	if m.Sessions == nil {
		return ""
	}
	session, err := m.Sessions.Get(r, auth.SessionName)
	if err != nil {
		return ""
	}
	userID, _ := session.Values["user_id"].(string)
	return userID
}
