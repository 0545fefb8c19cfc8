package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"biolink/db"
	"biolink/internal/config"
	"biolink/internal/util"
	"biolink/models"

	"github.com/dgrijalva/jwt-go"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

const (
	SessionName   = "biolink-session"
	tokenLifetime = 3600 * time.Minute
	maxLoginBody  = 4 << 10
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrCodeRequired       = errors.New("two-factor code required")
	ErrInvalidCode        = errors.New("invalid two-factor code")
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	jwt.StandardClaims
}

// SecondFactor is consulted on login for accounts with 2FA enabled.
type SecondFactor interface {
	IsEnabled(ctx context.Context, userID string) (bool, error)
	VerifyLoginCode(ctx context.Context, userID, code string) (bool, error)
}

// EventRecorder stores account events.
type EventRecorder interface {
	CreateOne(ctx context.Context, eventType models.EEventLogType, userID string) error
}

type AuthHandlers struct {
	Config       *config.Config
	Users        db.UserRepository
	SecondFactor SecondFactor
	Sessions     *sessions.CookieStore
	Events       EventRecorder
}

func NewAuthHandlers(cfg *config.Config, users db.UserRepository, sessionStore *sessions.CookieStore) *AuthHandlers {
	return &AuthHandlers{Config: cfg, Users: users, Sessions: sessionStore}
}

// NewSessionStore returns the cookie store shared by login and the auth middleware.
func NewSessionStore(secret []byte) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteStrictMode,
	}
	return store
}

// EnsureUser creates the bootstrap account from the configured credentials if
// it does not exist yet.
func EnsureUser(ctx context.Context, users db.UserRepository, username, password string) (*models.User, error) {
	user, err := users.FindByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user = &models.User{ID: db.GenerateID(), Username: username, PasswordHash: string(hash)}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Printf("Created account %q", username)
	return user, nil
}

// CheckPassword compares password against the user's bcrypt hash.
func CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (h *AuthHandlers) GenerateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(tokenLifetime)
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expirationTime.Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.Config.JwtKey)
}

// ParseToken validates a signed token and returns its claims.
func ParseToken(tokenStr string, key []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Authenticate checks the password and, when 2FA is enabled, the code.
func (h *AuthHandlers) Authenticate(ctx context.Context, creds Credentials) (*models.User, error) {
	user, err := h.Users.FindByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(user, creds.Password) {
		return nil, ErrInvalidCredentials
	}
	if h.SecondFactor == nil {
		return user, nil
	}

	enabled, err := h.SecondFactor.IsEnabled(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return user, nil
	}
	if strings.TrimSpace(creds.Code) == "" {
		return nil, ErrCodeRequired
	}
	ok, err := h.SecondFactor.VerifyLoginCode(ctx, user.ID, strings.TrimSpace(creds.Code))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCode
	}
	return user, nil
}

func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := util.DecodeJSON(w, r, maxLoginBody, &creds); err != nil {
		util.WriteError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	user, err := h.Authenticate(r.Context(), creds)
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidCode):
		h.record(r.Context(), models.LoginFailed, "")
		util.WriteError(w, http.StatusUnauthorized, "Invalid username, password or code")
		return
	case errors.Is(err, ErrCodeRequired):
		util.WriteJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success":       false,
			"message":       "Two-factor code required",
			"code_required": true,
		})
		return
	case err != nil:
		log.Printf("Login failed: %v", err)
		util.WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	tokenString, err := h.GenerateJWT(user)
	if err != nil {
		util.WriteError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	if h.Sessions != nil {
		session, _ := h.Sessions.Get(r, SessionName)
		session.Values["user_id"] = user.ID
		session.Values["username"] = user.Username
		if err := session.Save(r, w); err != nil {
			log.Printf("Failed to save session: %v", err)
		}
	}

	h.record(r.Context(), models.LoginSucceeded, user.ID)
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "token": tokenString})
}

func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if h.Sessions != nil {
		session, _ := h.Sessions.Get(r, SessionName)
		session.Values = make(map[interface{}]interface{})
		session.Options.MaxAge = -1
		if err := session.Save(r, w); err != nil {
			log.Printf("Failed to clear session: %v", err)
		}
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *AuthHandlers) record(ctx context.Context, eventType models.EEventLogType, userID string) {
	if h.Events == nil {
		return
	}
	if err := h.Events.CreateOne(ctx, eventType, userID); err != nil {
		log.Printf("Failed to record %s event: %v", eventType, err)
	}
}
