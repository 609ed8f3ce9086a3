package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS admits cross-origin requests from allowedOrigin only, with
// credentials, any method and any header. It wraps the whole router so
// preflight requests are answered before routing.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{strings.TrimRight(strings.TrimSpace(allowedOrigin), "/")},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
