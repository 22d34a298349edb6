package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "autoads"

// ErrNoSecret is returned when a token is requested but no JWT secret is configured.
var ErrNoSecret = errors.New("jwt secret not configured")

// Claims are the claims carried by command tokens.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	JWTSecret     string
	AllowedTokens []string
}

// Authenticator accepts HS256 bearer tokens signed with the configured
// secret, or any of the static tokens. With neither configured every
// request is allowed.
type Authenticator struct {
	jwtSecret     []byte
	allowedTokens [][]byte
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	a := &Authenticator{}
	if cfg.JWTSecret != "" {
		a.jwtSecret = []byte(cfg.JWTSecret)
	}
	for _, t := range cfg.AllowedTokens {
		if t != "" {
			a.allowedTokens = append(a.allowedTokens, []byte(t))
		}
	}
	return a
}

// Open reports whether no authentication is configured.
func (a *Authenticator) Open() bool {
	return a.jwtSecret == nil && len(a.allowedTokens) == 0
}

// Authenticate checks a raw token.
func (a *Authenticator) Authenticate(token string) bool {
	if a.Open() {
		return true
	}
	if token == "" {
		return false
	}
	if a.jwtSecret != nil {
		if _, err := a.ValidateJWT(token); err == nil {
			return true
		}
	}
	for _, allowed := range a.allowedTokens {
		if subtle.ConstantTimeCompare([]byte(token), allowed) == 1 {
			return true
		}
	}
	return false
}

// ValidateJWT parses and verifies a token, including its expiry.
func (a *Authenticator) ValidateJWT(tokenString string) (*Claims, error) {
	if a.jwtSecret == nil {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// GenerateJWT issues a command token for subject.
func (a *Authenticator) GenerateJWT(subject, scope string, expiry time.Duration) (string, error) {
	if a.jwtSecret == nil {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		Scope: scope,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// Middleware returns a gin middleware rejecting unauthenticated requests.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Authenticate(extractToken(c)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or missing token",
			})
			return
		}
		c.Next()
	}
}

// extractToken reads the Authorization header, then X-API-Key, then the
// token query parameter used by WebSocket clients.
func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 {
			switch strings.ToLower(parts[0]) {
			case "bearer", "token":
				return parts[1]
			}
		}
	}
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("token")
}
