package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LocalUserID is the Fiber locals key holding the authenticated user's ID.
const LocalUserID = "userID"

const (
	sessionIssuer   = "yatube"
	sessionAudience = "yatube-web"
	revokedPrefix   = "session:revoked:"
)

// ErrInvalidSession is returned for any session token that cannot be trusted.
var ErrInvalidSession = errors.New("invalid session")

// SessionConfig configures cookie-based sessions.
type SessionConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Secure     bool
	// Redis is optional; without it sessions cannot be revoked before expiry.
	Redis *redis.Client
}

// SessionManager issues and verifies signed session tokens carried in a cookie.
type SessionManager struct {
	secret []byte
	cookie string
	ttl    time.Duration
	secure bool
	rdb    *redis.Client
}

// Session is a verified session token.
type Session struct {
	UserID    uint
	Username  string
	ID        string
	ExpiresAt time.Time
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(cfg SessionConfig) *SessionManager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &SessionManager{
		secret: []byte(cfg.Secret),
		cookie: cfg.CookieName,
		ttl:    ttl,
		secure: cfg.Secure,
		rdb:    cfg.Redis,
	}
}

// CookieName returns the name of the session cookie.
func (m *SessionManager) CookieName() string {
	return m.cookie
}

// Issue signs a new session token for the user.
func (m *SessionManager) Issue(userID uint, username string) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("session secret not configured")
	}

	now := time.Now()
	expiresAt := now.Add(m.ttl)
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      sessionIssuer,
		"aud":      sessionAudience,
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies a session token and returns its contents.
func (m *SessionManager) Parse(ctx context.Context, tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return m.secret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidSession
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidSession
	}

	session := &Session{UserID: uint(userID)}
	session.Username, _ = claims["username"].(string)
	session.ID, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpiresAt = exp.Time
	}

	if session.ID != "" && m.rdb != nil {
		revoked, err := m.rdb.Exists(ctx, revokedPrefix+session.ID).Result()
		if err == nil && revoked > 0 {
			return nil, ErrInvalidSession
		}
	}

	return session, nil
}

// Revoke blacklists a session until its natural expiry.
func (m *SessionManager) Revoke(ctx context.Context, session *Session) error {
	if m.rdb == nil || session == nil || session.ID == "" {
		return nil
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return m.rdb.Set(ctx, revokedPrefix+session.ID, session.UserID, ttl).Err()
}

// SetCookie attaches the session token to the response.
func (m *SessionManager) SetCookie(c *fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on the client.
func (m *SessionManager) ClearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Current returns the verified session attached to the request, if any.
func (m *SessionManager) Current(c *fiber.Ctx) (*Session, bool) {
	token := c.Cookies(m.cookie)
	if token == "" {
		return nil, false
	}
	session, err := m.Parse(c.UserContext(), token)
	if err != nil {
		return nil, false
	}
	return session, true
}

// Identify resolves the optional viewer from the session cookie. Invalid cookies are treated as anonymous.
func (m *SessionManager) Identify() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if session, ok := m.Current(c); ok {
			c.Locals(LocalUserID, session.UserID)
			ctx := context.WithValue(c.UserContext(), UserIDKey, session.UserID)
			c.SetUserContext(ctx)
		}
		return c.Next()
	}
}

// CurrentUserID returns the authenticated user's ID, or false for anonymous requests.
func CurrentUserID(c *fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals(LocalUserID).(uint)
	if !ok || userID == 0 {
		return 0, false
	}
	return userID, true
}

// LoginRequired redirects anonymous requests to loginURL, carrying the original location in "next".
// It must run after SessionManager.Identify. When active is set, a session it rejects (e.g. one whose
// user was deleted) counts as anonymous too.
func LoginRequired(loginURL string, active func(c *fiber.Ctx) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentUserID(c); ok && (active == nil || active(c)) {
			return c.Next()
		}
		return c.Redirect(LoginRedirectURL(loginURL, c.OriginalURL()), fiber.StatusFound)
	}
}

// LoginRedirectURL builds "<loginURL>?next=<next>", keeping slashes readable.
func LoginRedirectURL(loginURL, next string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
	return loginURL + "?next=" + escaped
}

// SafeNext returns next when it is a local absolute path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return fallback
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}
