package httpkit

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// RouterConfig configures the standard middleware stack NewRouter attaches
// ahead of application routes.
type RouterConfig struct {
	AllowedOrigins  []string
	RateLimit       int
	RateLimitWindow time.Duration
}

func (c RouterConfig) withDefaults() RouterConfig {
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = time.Minute
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 300
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = []string{"*"}
	}
	return c
}

// NewRouter builds a chi.Router carrying the kernel's standard HTTP
// ambient middleware (request id, recoverer, CORS, per-client rate
// limiting) ahead of whatever routes the caller registers.
func NewRouter(cfg RouterConfig) chi.Router {
	cfg = cfg.withDefaults()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(cfg.RateLimit, cfg.RateLimitWindow))
	return r
}
