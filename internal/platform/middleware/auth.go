package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"fides/pkg/secrets"
)

type contextKeyCaller struct{}

// Caller identifies the authenticated machine caller for audit purposes.
type Caller struct {
	Subject string // JWT sub, or "service-token"
}

// GetCaller retrieves the authenticated caller from the context.
func GetCaller(ctx context.Context) Caller {
	if c, ok := ctx.Value(contextKeyCaller{}).(Caller); ok {
		return c
	}
	return Caller{}
}

// WithCaller injects a caller into a context. Useful in tests.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKeyCaller{}, c)
}

// Auth validates bearer credentials on API routes. Two credential shapes are
// accepted: an HS256 JWT signed with the configured key, or the static
// service token checked against its bcrypt hash. Either may be disabled by
// leaving its config empty; at least one must be configured (enforced by
// config.Validate).
type Auth struct {
	SigningKey       string
	ServiceTokenHash string
	Logger           *slog.Logger
}

// Middleware returns the chi-compatible wrapper.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			a.deny(w, r, "missing bearer token")
			return
		}

		if caller, ok := a.authenticate(token); ok {
			ctx := context.WithValue(r.Context(), contextKeyCaller{}, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		a.deny(w, r, "invalid credentials")
	})
}

func (a *Auth) authenticate(token string) (Caller, bool) {
	if a.ServiceTokenHash != "" && secrets.Verify(a.ServiceTokenHash, token) {
		return Caller{Subject: "service-token"}, true
	}
	if a.SigningKey != "" {
		if sub, ok := a.validateJWT(token); ok {
			return Caller{Subject: sub}, true
		}
	}
	return Caller{}, false
}

func (a *Auth) validateJWT(tokenString string) (string, bool) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return []byte(a.SigningKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", false
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", false
	}
	return sub, true
}

func (a *Auth) deny(w http.ResponseWriter, r *http.Request, reason string) {
	if a.Logger != nil {
		a.Logger.WarnContext(r.Context(), "request denied",
			"reason", reason,
			"path", r.URL.Path,
			"client_ip", GetClientIP(r.Context()),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
