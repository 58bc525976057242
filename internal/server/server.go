package server

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/claude/replog/internal/workout"
	"github.com/go-chi/chi/v5"
	"tailscale.com/client/local"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	lb     *workout.Logbook
	log    *slog.Logger
	apiKey string
	router chi.Router
	stream *broadcaster
	lc     *local.Client
}

// New creates a new Server with all routes configured. The server registers
// itself as the logbook's update consumer and fans recomputed view models
// out to SSE clients.
func New(lb *workout.Logbook, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		lb:     lb,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
		stream: newBroadcaster(),
	}
	lb.OnUpdate(s.stream.publish)
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale enables whois-based identity on the tsnet listener.
func (s *Server) SetTailscale(lc *local.Client) {
	s.lc = lc
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Read endpoints
		r.Get("/history", s.handleHistory)
		r.Get("/history/stream", s.handleHistoryStream)
		r.Get("/exercises", s.handleExercises)
		r.Get("/session", s.handleCurrentSession)
		r.Get("/entries/{id}", s.handleGetEntry)
		r.Get("/me", s.handleMe)

		// Mutating endpoints (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/session/start", s.handleStartSession)
			r.Post("/session/finish", s.handleRequestFinish)
			r.Post("/session/finalize", s.handleFinalize)
			r.Post("/session/discard", s.handleDiscard)
			r.Post("/entries", s.handleCreateEntry)
			r.Put("/entries/{id}", s.handleUpdateEntry)
			r.Delete("/entries/{id}", s.handleDeleteEntry)
			r.Post("/history/order", s.handleSetSortOrder)
		})
	})
}

// identity resolves the caller: Tailscale whois when available, the local
// dev identity otherwise. Checked per request because SetTailscale runs
// after route construction.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.lc != nil {
			TailscaleIdentity(s.lc, s.log)(next).ServeHTTP(w, r)
			return
		}
		dev.ServeHTTP(w, r)
	})
}

// SetFrontend mounts the embedded SPA filesystem.
// Unmatched routes serve index.html for client-side routing.
func (s *Server) SetFrontend(webFS fs.FS) {
	fileServer := http.FileServerFS(webFS)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		// Try to serve the exact file first
		f, err := webFS.Open(r.URL.Path[1:]) // strip leading /
		if err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}
		// Fallback to index.html for SPA routing
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
