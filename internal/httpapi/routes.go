package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/hub"
	"github.com/DoyleJ11/pug-queue-backend/internal/ws"
)

func SetupRoutes(mm Matchmaker, h *hub.Hub, jwtSecret []byte, log *zap.Logger, opts ...Option) http.Handler {
	api := &API{mm: mm, log: log.Named("http")}
	for _, opt := range opts {
		opt(api)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(api.log))
	r.Use(middleware.Recoverer)
	r.Use(authenticate(jwtSecret))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(mm, h, log.Named("ws")))

	r.Route("/queues", func(r chi.Router) {
		r.Use(requireActor)
		r.Post("/", api.CreateQueue)
		r.Get("/", api.ListQueues)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", api.GetQueue)
			r.Delete("/", api.DeleteQueue)
			r.Post("/join", api.Join)
			r.Post("/leave", api.Leave)
			r.Post("/picks", api.Pick)
			r.Post("/veto/start", api.StartVeto)
			r.Post("/veto/bans", api.Ban)
			r.Post("/veto/resolve", api.ResolveVeto)
			r.Put("/server", api.AssignServer)
			r.Post("/allocate", api.RetryAllocation)
			r.Post("/materialize", api.Materialize)
		})
	})

	if api.matches != nil {
		r.With(requireActor).Get("/matches/{queueID}", api.GetMatch)
	}
	if api.players != nil {
		r.With(requireActor).Put("/players/{id}", api.UpsertPlayer)
	}
	return r
}
