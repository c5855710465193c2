package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"streamshare/internal/infra/metrics"
)

const adminRole = "admin"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("admin role required")
)

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthManager mints and verifies HS256 admin bearer tokens.
type AuthManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	return &AuthManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Mint signs an admin token for subject valid for the configured TTL.
func (a *AuthManager) Mint(subject string) (string, error) {
	now := a.now()
	claims := AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, ErrMissingToken
	}
	return a.Parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) Parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != adminRole {
		return nil, ErrForbidden
	}
	return claims, nil
}

// Guard rejects requests without a valid admin token.
func (a *AuthManager) Guard() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := a.ParseFromRequest(r)
			switch {
			case err == nil:
				metrics.IncAdminAuth("authorized")
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrForbidden):
				metrics.IncAdminAuth("forbidden")
				writeJSON(w, http.StatusForbidden, errorBody{Code: "forbidden", Message: err.Error()})
			default:
				metrics.IncAdminAuth("unauthorized")
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				writeJSON(w, http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: err.Error()})
			}
		})
	}
}
