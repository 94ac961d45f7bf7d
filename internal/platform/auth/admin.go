package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/yuya-sudo/yuya-api/internal/platform/httpx"
)

const bearerPrefix = "Bearer "

// AdminTokenMiddleware guards administrative routes with a single shared
// bearer token. Comparison happens over SHA-256 digests so the check is
// constant time regardless of token length.
func AdminTokenMiddleware(token string) func(http.Handler) http.Handler {
	expected := sha256.Sum256([]byte(strings.TrimSpace(token)))
	configured := strings.TrimSpace(token) != ""

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !configured {
				httpx.WriteError(r.Context(), w, httpx.NewError("admin_disabled", "administrative access is not configured", http.StatusForbidden))
				return
			}

			presented, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthorized", "missing bearer token", http.StatusUnauthorized))
				return
			}

			digest := sha256.Sum256([]byte(presented))
			if subtle.ConstantTimeCompare(expected[:], digest[:]) != 1 {
				httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "invalid admin token", http.StatusForbidden))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
