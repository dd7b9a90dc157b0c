package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// NewRouter serves the blend endpoint and health check on both "/" and "/api/server", so the service works
// whether or not a proxy strips the base path.
func NewRouter(h *BlendHandler, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Health)
	mux.HandleFunc("GET /api/server", h.Health)
	mux.HandleFunc("POST /{$}", h.Blend)
	mux.HandleFunc("POST /api/server", h.Blend)

	var handler http.Handler = mux
	handler = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request finished")
	})(handler)
	handler = hlog.RequestIDHandler("requestId", "X-Request-Id")(handler)
	handler = hlog.RemoteAddrHandler("remote")(handler)
	handler = hlog.NewHandler(logger)(handler)

	return handler
}
