package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	deerflow "github.com/chansky6/deer-flow"
	"github.com/chansky6/deer-flow/conversation"
	"github.com/chansky6/deer-flow/stream"
	"github.com/chansky6/deer-flow/workflow"
)

const (
	// UserHeader is where the default UserFunc reads the caller's ID.
	UserHeader = "X-User-ID"

	// DefaultUserID identifies callers when no identity is present,
	// mirroring the single-user mode of a deployment without auth.
	DefaultUserID = "anonymous"

	// DefaultListLimit bounds conversation listings with no explicit
	// limit parameter.
	DefaultListLimit = 50
)

// ProducerFactory builds the workflow producer for one chat request.
type ProducerFactory func(threadID, query string) workflow.Producer

// UserFunc extracts the caller's user ID from a request. Implementations
// own authentication; the server only carries the result in the request
// context.
type UserFunc func(r *http.Request) string

// Server wires the workflow manager, durable event log, and conversation
// metadata service into the HTTP surface.
type Server struct {
	manager       *workflow.Manager
	log           *stream.Log
	conversations *conversation.Service
	producerFor   ProducerFactory
	userFor       UserFunc
	logger        *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithUserFunc replaces the default header-based identity extraction.
func WithUserFunc(fn UserFunc) Option {
	return func(s *Server) {
		if fn != nil {
			s.userFor = fn
		}
	}
}

// New creates the HTTP server over its collaborators. producerFor decides
// what workload a chat request launches; api stays agnostic of it.
func New(manager *workflow.Manager, log *stream.Log, conversations *conversation.Service, producerFor ProducerFactory, opts ...Option) *Server {
	s := &Server{
		manager:       manager,
		log:           log,
		conversations: conversations,
		producerFor:   producerFor,
		userFor:       headerUser,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes assembles the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.identity)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat/stream", s.startChatStream)
		r.Get("/chat/stream/{threadID}", s.resumeChatStream)
		r.Get("/chat/stream/{threadID}/history", s.chatHistory)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.listConversations)
			r.Get("/{threadID}", s.getConversation)
			r.Patch("/{threadID}", s.updateConversation)
			r.Delete("/{threadID}", s.deleteConversation)
		})
	})

	r.Get("/healthz", s.healthz)
	return r
}

// identity resolves the caller and stores the user ID in the request
// context for every handler downstream.
func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := deerflow.WithUserID(r.Context(), s.userFor(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func headerUser(r *http.Request) string {
	if id := r.Header.Get(UserHeader); id != "" {
		return id
	}
	return DefaultUserID
}
