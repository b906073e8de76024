package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/ndewijer/portfolio-valuation-backend/internal/config"
)

// corsMaxAge is how long, in seconds, browsers may cache a preflight answer.
const corsMaxAge = 300

// NewCORS allows the configured browser origins to call the API. The owner
// header must be allowed for any owner-scoped route to work cross-origin, and
// Retry-After is exposed so clients can back off on lock and provider errors.
func NewCORS(cfg config.CORSConfig) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", OwnerHeader},
		ExposedHeaders: []string{"Content-Type", "Retry-After", "X-Request-Id"},
		MaxAge:         corsMaxAge,
	})
}
