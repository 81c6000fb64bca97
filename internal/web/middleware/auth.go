package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/stocksync/internal/core"
)

// APIKeyAuth validates the X-API-Key header against keys and records who
// made the request for import sessions and history.
//
// With required=false every request passes; a valid key is still used to
// identify the caller, otherwise the client IP is.
func APIKeyAuth(keys []string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			idx := matchAPIKey(apiKey, keys)

			if required {
				switch {
				case apiKey == "":
					slog.Warn("auth: missing API key",
						"path", r.URL.Path,
						"method", r.Method,
						"remote_addr", r.RemoteAddr,
					)
					writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH001")
					return
				case idx < 0:
					slog.Warn("auth: invalid API key",
						"path", r.URL.Path,
						"method", r.Method,
						"remote_addr", r.RemoteAddr,
					)
					writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH002")
					return
				}
			}

			who := clientHost(r.RemoteAddr)
			if idx >= 0 {
				who = "api-key-" + strconv.Itoa(idx+1)
			}
			ctx := core.ContextWithRequestedBy(r.Context(), who)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// matchAPIKey returns the index of the matching key or -1.
// Every key is compared so timing does not reveal which one matched.
func matchAPIKey(key string, validKeys []string) int {
	if key == "" {
		return -1
	}
	found := -1
	for i, validKey := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			found = i
		}
	}
	return found
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
