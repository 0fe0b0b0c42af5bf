package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/medallion/internal/logging"
)

// APIKeyHeader carries the client key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth rejects requests whose X-API-Key matches none of keys. With no
// keys configured every request passes.
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			switch {
			case key == "":
				logging.FromContext(r.Context()).Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method)
				deny(w, http.StatusUnauthorized, "missing API key", "AUTH001")
			case !validKey(key, keys):
				logging.FromContext(r.Context()).Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method)
				deny(w, http.StatusForbidden, "invalid API key", "AUTH002")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// validKey compares against every configured key in constant time.
func validKey(key string, keys []string) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return match == 1
}

func deny(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
