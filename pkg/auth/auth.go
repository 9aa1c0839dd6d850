package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bedmatch/pkg/config"
	"bedmatch/pkg/session"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// ContextKey is where Middleware stores the logged-in username
const ContextKey = "username"

// Claims represents the signed session cookie
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Auth handles password hashing and session cookies
type Auth struct {
	config   *config.AuthConfig
	sessions session.Store
	method   jwt.SigningMethod
}

// New creates a new Auth instance
func New(cfg *config.AuthConfig, sessions session.Store) *Auth {
	return &Auth{config: cfg, sessions: sessions, method: jwt.SigningMethodHS256}
}

// HashPassword hashes a plaintext password with bcrypt
func (a *Auth) HashPassword(password string) (string, error) {
	cost := a.config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword reports whether password matches the stored hash
func (a *Auth) ComparePassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login opens a server-side session for username and sets the cookie
func (a *Auth) Login(c *gin.Context, username string) error {
	sid, err := a.sessions.Create(c.Request.Context(), username)
	if err != nil {
		return err
	}
	token, err := a.GenerateToken(sid)
	if err != nil {
		if derr := a.sessions.Destroy(context.WithoutCancel(c.Request.Context()), sid); derr != nil {
			return errors.Join(err, fmt.Errorf("destroy session %s: %w", sid, derr))
		}
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(a.config.CookieName, token, int(a.config.SessionTTL/time.Second), "/", "", a.config.SecureCookie, true)
	return nil
}

// Logout destroys the current session, if any, and clears the cookie
func (a *Auth) Logout(c *gin.Context) error {
	defer c.SetCookie(a.config.CookieName, "", -1, "/", "", a.config.SecureCookie, true)

	tokenString := a.tokenFrom(c)
	if tokenString == "" {
		return nil
	}
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return nil
	}
	return a.sessions.Destroy(c.Request.Context(), claims.SessionID)
}

// GenerateToken signs a cookie value for the session id
func (a *Auth) GenerateToken(sessionID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(a.method, claims)
	return token.SignedString([]byte(a.config.SessionSecret))
}

// ValidateToken validates a cookie value and returns the claims
func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.config.SessionSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.SessionID != "" {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

func (a *Auth) tokenFrom(c *gin.Context) string {
	if tokenString, err := c.Cookie(a.config.CookieName); err == nil && tokenString != "" {
		return tokenString
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Middleware resolves the session cookie, if any, and stores the username
// under ContextKey. Anonymous requests pass through (see RequireLogin); a
// failing session store aborts with 500.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := a.tokenFrom(c)
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			c.Next()
			return
		}

		username, err := a.sessions.Lookup(c.Request.Context(), claims.SessionID)
		switch {
		case err == nil:
			c.Set(ContextKey, username)
		case !errors.Is(err, session.ErrNoSession):
			// logged by logger.Middleware
			c.Error(fmt.Errorf("session lookup: %w", err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
			return
		}
		c.Next()
	}
}

// RequireLogin aborts with 401 unless Middleware found a live session
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextKey) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// Username returns the logged-in username, or "" for anonymous requests
func Username(c *gin.Context) string {
	return c.GetString(ContextKey)
}
