// Package auth provides the JWT authentication gate and login rate limiting.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vodflow/vodflow/internal/metrics"
)

// TokenLifetime is how long an issued token remains valid.
const TokenLifetime = 24 * time.Hour

const tokenIssuer = "vodflow"

// Claims are the JWT claims issued at login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTService issues and validates tokens.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a JWTService. The secret must be non-empty.
func NewJWTService(secret []byte) (*JWTService, error) {
	if len(secret) == 0 {
		return nil, errors.New("JWT secret must not be empty")
	}
	return &JWTService{secret: secret}, nil
}

// GenerateToken creates a signed token for the username.
func (s *JWTService) GenerateToken(username string) (string, error) {
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies a token string.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Middleware returns the authenticated-request gate for protected endpoints.
// Rate-limited IPs are rejected before token validation.
func (s *JWTService) Middleware(limiter *RateLimiter) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			clientIP := GetClientIP(r)

			if limiter != nil && limiter.IsLimited(clientIP) {
				metrics.AuthFailures.WithLabelValues("rate_limited").Inc()
				http.Error(w, "Too many failed attempts", http.StatusTooManyRequests)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				metrics.AuthFailures.WithLabelValues("missing_header").Inc()
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				metrics.AuthFailures.WithLabelValues("malformed_header").Inc()
				http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
				return
			}

			if _, err := s.ValidateToken(parts[1]); err != nil {
				metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
				if limiter != nil {
					limiter.RecordFailure(clientIP)
				}
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			if limiter != nil {
				limiter.Reset(clientIP)
			}
			next.ServeHTTP(w, r)
		}
	}
}
