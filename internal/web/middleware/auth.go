package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/masterfile/internal/config"
	"github.com/JonMunkholm/masterfile/internal/core"
)

// apiKey is one configured key. Entries in API_KEYS are either "secret" or
// "operator:secret"; the operator name is attached to the request context
// and ends up in publication logs.
type apiKey struct {
	operator string
	secret   []byte
}

func parseAPIKeys(entries []string) []apiKey {
	keys := make([]apiKey, 0, len(entries))
	for _, e := range entries {
		operator, secret, ok := strings.Cut(e, ":")
		if !ok {
			operator, secret = "", e
		}
		if secret == "" {
			continue
		}
		keys = append(keys, apiKey{operator: strings.TrimSpace(operator), secret: []byte(secret)})
	}
	return keys
}

// APIKeyAuth returns middleware that validates the X-API-Key header.
// If RequireAPIKey is false, all requests pass through.
// If RequireAPIKey is true but no keys are configured, all requests are rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	keys := parseAPIKeys(cfg.APIKeys)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get("X-API-Key")
			if presented == "" {
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}

			operator, ok := matchAPIKey(presented, keys)
			if !ok {
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			if operator != "" {
				recordOperator(r.Context(), operator)
				r = r.WithContext(core.ContextWithOperator(r.Context(), operator))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// matchAPIKey compares against every key in constant time and returns the
// operator of the matching one.
func matchAPIKey(presented string, keys []apiKey) (string, bool) {
	var operator string
	found := 0
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(presented), k.secret) == 1 {
			operator = k.operator
			found = 1
		}
	}
	return operator, found == 1
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","code":"` + code + `"}`))
}
