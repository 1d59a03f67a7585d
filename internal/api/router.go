package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"dotflow/internal/api/handlers"
	"dotflow/internal/backend"
	"dotflow/internal/services"
	"dotflow/internal/websocket"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Hub      *websocket.Hub
	Backend  backend.API
	Tasks    services.TaskServiceProvider
	Ordering services.OrderingServiceProvider
	Events   services.EventServiceProvider
	Queue    handlers.QueueProvider
	Location *time.Location
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration for development
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	taskHandler := handlers.NewTaskHandler(deps.Tasks, deps.Queue)
	automationHandler := handlers.NewAutomationHandler(deps.Tasks)
	orderingHandler := handlers.NewOrderingHandler(deps.Ordering)
	queueHandler := handlers.NewQueueHandler(deps.Queue, deps.Ordering, deps.Location)
	eventHandler := handlers.NewEventHandler(deps.Events)
	logsHandler := handlers.NewLogsHandler(deps.Backend, deps.Queue)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub)

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		// Live update feed
		r.Get("/ws", wsHandler.Serve)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.GetAll)
			r.Post("/", taskHandler.Create)
			r.Get("/next-runs", taskHandler.NextRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.Get)
				r.Put("/", taskHandler.Update)
				r.Delete("/", taskHandler.Delete)
				r.Post("/execute", taskHandler.Execute)
			})
		})

		r.Route("/automation", func(r chi.Router) {
			r.Get("/", automationHandler.GetEnabled)
			r.Put("/", automationHandler.SetEnabled)
		})

		r.Route("/ordering", func(r chi.Router) {
			r.Get("/", orderingHandler.Get)
			r.Post("/move", orderingHandler.Move)
		})

		r.Route("/queue/{date}", func(r chi.Router) {
			r.Get("/", queueHandler.Get)
			r.Post("/refresh", queueHandler.Refresh)
			r.Delete("/", queueHandler.Clear)
			r.Get("/timeline", queueHandler.Timeline)
		})

		r.Get("/events", eventHandler.GetRecent)
		r.Get("/logs", logsHandler.GetRecent)
	})

	return r
}
