package http

import (
	"net/http"

	"github.com/cwrk-planet/chat-relay/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           int
}

// NewRouter mounts the relay endpoints. ws may be nil to disable /ws.
func NewRouter(h *Handler, ws http.HandlerFunc, c CORSConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(httputil.MiddlewareRequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httputil.MiddlewareLogging)
	r.Use(middlewareChi.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   []string{"POST", "GET", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{httputil.HeaderRequestID},
		AllowCredentials: c.AllowCredentials,
		MaxAge:           c.MaxAge,
	}))

	r.With(middlewareChi.AllowContentType("application/json")).Post("/message", h.PostMessage)
	r.Get("/messages", h.GetMessages)
	r.Get("/events", h.Events)
	if ws != nil {
		r.Get("/ws", ws)
	}
	r.Options("/*", h.Options)

	r.Get("/healthz", healthz)

	return r
}
