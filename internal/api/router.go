// Package api exposes the punch clock and the weekly summaries over HTTP.
package api

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"

	"github.com/Tiliavir/epunch/internal/tracker"
)

// Options configures the router.
type Options struct {
	// JWTSecret enables HS256 bearer tokens. Empty = trust X-User-ID.
	JWTSecret      string
	AllowedOrigins []string
	// LogOutput receives the request log. Defaults to os.Stdout.
	LogOutput io.Writer
	Version   string
	// RequestTimeout bounds every request's context. Defaults to 30s.
	RequestTimeout time.Duration
}

const defaultRequestTimeout = 30 * time.Second

func NewRouter(svc *tracker.Service, opts Options) *chi.Mux {
	r := chi.NewRouter()

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "epunch"),
		slog.String("version", opts.Version),
	)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", userHeader},
		MaxAge:         300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	r.Use(chiMiddleware.Timeout(timeout))
	r.Use(chiMiddleware.Heartbeat("/healthz"))

	h := &ShiftHandler{svc: svc}

	r.Route("/api/v1", func(r chi.Router) {
		if opts.JWTSecret != "" {
			ja := jwtauth.New("HS256", []byte(opts.JWTSecret), nil)
			r.Use(jwtauth.Verifier(ja))
			r.Use(TokenIdentity)
		} else {
			r.Use(HeaderIdentity)
		}

		r.Route("/shifts", func(r chi.Router) {
			r.Post("/punch-in", h.PunchIn)
			r.Post("/punch-out", h.PunchOut)
			r.Get("/active", h.Active)
			r.Get("/history", h.History)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
		})

		r.Route("/summary", func(r chi.Router) {
			r.Get("/week", h.Week)
			r.Get("/team", h.Team)
		})
	})
	return r
}
