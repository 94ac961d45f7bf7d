package handlers

import (
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/yuya-sudo/yuya-api/internal/platform/requestctx"
)

// DefaultSessionHeader carries the browsing session identifier between client
// and server. Carts are keyed by this value, not by an authenticated user.
const DefaultSessionHeader = "X-Session-ID"

const maxSessionIDLength = 64

// SessionMiddleware reads the session identifier from the request header,
// minting a fresh one when the client has none yet. The identifier is echoed
// back on every response so clients can persist it.
func SessionMiddleware(header string, generate func() string) func(http.Handler) http.Handler {
	header = strings.TrimSpace(header)
	if header == "" {
		header = DefaultSessionHeader
	}
	if generate == nil {
		generate = func() string { return ulid.Make().String() }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := sanitizeSessionID(r.Header.Get(header))
			if sessionID == "" {
				sessionID = generate()
			}
			w.Header().Set(header, sessionID)
			ctx := requestctx.WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sanitizeSessionID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxSessionIDLength {
		return ""
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ""
		}
	}
	return id
}
