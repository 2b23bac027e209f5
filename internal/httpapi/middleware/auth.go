package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hamed0406/netmanager/internal/auth"
)

type Keys struct {
	Admin []string
}

func readAuth(r *http.Request) string {
	if t := readBearer(r); t != "" {
		return t
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return strings.TrimSpace(k)
	}
	return ""
}

func readBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func hasKey(given string, set []string) bool {
	if given == "" || len(set) == 0 {
		return false
	}
	for _, k := range set {
		if k == given {
			return true
		}
	}
	return false
}

// RequireAdmin only permits requests that present an admin key.
// If no admin keys are configured, it allows all requests (dev).
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	enabled := len(keys.Admin) > 0
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := readAuth(r)
			if key == "" {
				writeJSON(w, http.StatusUnauthorized, `{"error":"unauthorized"}`)
				return
			}
			if hasKey(key, keys.Admin) {
				next.ServeHTTP(w, r)
				return
			}
			writeJSON(w, http.StatusForbidden, `{"error":"forbidden"}`)
		})
	}
}

// TokenParser is satisfied by *auth.Service.
type TokenParser interface {
	ParseAccess(ctx context.Context, raw string) (auth.Principal, error)
}

type principalKey struct{}

// RequireUser demands a valid bearer access token and stores the principal
// in the request context.
func RequireUser(p TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := readBearer(r)
			if raw == "" {
				writeJSON(w, http.StatusUnauthorized, `{"detail":"Authentication credentials were not provided."}`)
				return
			}
			pr, err := p.ParseAccess(r.Context(), raw)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, `{"detail":"Given token not valid for any token type"}`)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey{}, pr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom returns the principal set by RequireUser.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
