package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"treeview-ai/interfaces/http/rest/handlers"
	"treeview-ai/interfaces/http/rest/middleware"
)

// RouterConfig carries what the router needs besides the view.
type RouterConfig struct {
	AllowedOrigins []string
	// Metrics serves GET /metrics when non-nil.
	Metrics http.Handler
	// Recorder observes every request when non-nil.
	Recorder middleware.Recorder
	// WebSocket serves GET /ws when non-nil.
	WebSocket http.HandlerFunc
}

// Router creates and configures the HTTP router
type Router struct {
	view   handlers.ViewService
	config RouterConfig
	logger *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(view handlers.ViewService, config RouterConfig, logger *zap.Logger) *Router {
	return &Router{view: view, config: config, logger: logger}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestIDHeader)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger, rt.config.Recorder))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	if rt.config.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.config.Metrics)
	}
	if rt.config.WebSocket != nil {
		router.Get("/ws", rt.config.WebSocket)
	}

	h := handlers.NewViewHandler(rt.view, rt.logger)
	router.Route("/api/view", func(r chi.Router) {
		r.Get("/", h.GetView)
		r.Get("/transcript", h.GetTranscript)
		r.Post("/session", h.MountSession)
		r.Post("/save", h.Save)
		r.Post("/commands", h.SubmitCommand)
		r.Post("/replies", h.DeliverReply)

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", h.InsertNode)
			r.Delete("/{ref}", h.DeleteNode)
			r.Put("/{id}/position", h.MoveNode)
		})
		r.Route("/edges", func(r chi.Router) {
			r.Post("/", h.Connect)
			r.Delete("/{id}", h.DeleteEdge)
		})

		r.Post("/highlight", h.Highlight)
		r.Post("/traverse", h.Traverse)
		r.Post("/search", h.Search)
		r.Post("/reset", h.Reset)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
