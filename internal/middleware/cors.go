package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows the configured browser origins. A "*" entry allows any origin
// without credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Locale", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: !allowAll,
		MaxAge:           600,
	})
	return c.Handler
}

// OriginAllowed reports whether origin may open a WebSocket. An empty
// origin is a non-browser client and is allowed.
func OriginAllowed(allowedOrigins []string) func(r *http.Request) bool {
	allow := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allow[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allow["*"]; ok {
			return true
		}
		_, ok := allow[origin]
		return ok
	}
}
