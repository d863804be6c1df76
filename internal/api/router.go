package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/accounts-be/internal/api/handlers"
	"github.com/isdelr/accounts-be/internal/api/respond"
	"github.com/isdelr/accounts-be/internal/auth"
	"github.com/isdelr/accounts-be/internal/services"
	"github.com/isdelr/accounts-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options carries the settings the router needs from the configuration.
type Options struct {
	AllowedOrigins []string
	SecureCookies  bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(
	opts Options,
	db Pinger,
	issuer *auth.TokenIssuer,
	authService services.AuthServiceProvider,
	userService services.UserServiceProvider,
	auditService services.AuditServiceProvider,
	hub *websocket.Hub,
) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	policy := auth.Policy{}
	authHandler := handlers.NewAuthHandler(authService, userService, issuer.TTL(), opts.SecureCookies)
	userHandler := handlers.NewUserHandler(userService, auditService, policy)
	eventsHandler := handlers.NewEventsHandler(hub, opts.AllowedOrigins)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			respond.Error(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.With(auth.Authenticate(issuer)).Get("/me", authHandler.Me)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(auth.Authenticate(issuer))

			r.With(auth.RequireAction(policy, auth.ActionList)).Get("/", userHandler.List)
			r.With(auth.RequireAction(policy, auth.ActionCreate)).Post("/", userHandler.Create)
			r.With(auth.RequireAction(policy, auth.ActionListInactive)).Get("/inactive", userHandler.ListInactive)
			r.With(auth.RequireAction(policy, auth.ActionList)).Get("/events", eventsHandler.Serve)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.Get)
				r.Patch("/", userHandler.Update)
				r.With(auth.RequireAction(policy, auth.ActionDelete)).Delete("/", userHandler.Delete)
			})
		})
	})

	return r
}
