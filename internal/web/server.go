package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/project-penguin/notify-console/internal/credstore"
	"github.com/project-penguin/notify-console/internal/dispatch"
)

// CredentialPolicy tells the server how to resolve a credential store
// for each request.
type CredentialPolicy struct {
	// SessionScope selects the per-session cookie store over the shared
	// in-process store.
	SessionScope bool

	// APIKey is the static key attached to backend calls unless the
	// submission overrides it.
	APIKey string

	// Cookie configures the session token cookie (session scope only).
	Cookie credstore.CookieOptions
}

// Server renders the notification form and relays submissions through
// the dispatcher.
type Server struct {
	router *chi.Mux
	server *http.Server

	dispatcher *dispatch.Dispatcher
	policy     CredentialPolicy
	shared     *credstore.MemoryStore
	views      *views
	logger     *slog.Logger
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates the web server.
func New(dispatcher *dispatch.Dispatcher, policy CredentialPolicy, logger *slog.Logger) (*Server, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("missing dispatcher")
	}
	if logger == nil {
		logger = slog.Default()
	}

	v, err := newViews()
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		dispatcher: dispatcher,
		policy:     policy,
		views:      v,
		logger:     logger,
	}
	if !policy.SessionScope {
		s.shared = credstore.NewMemoryStore(policy.APIKey)
	}

	r := chi.NewRouter()
	r.Use(Logging(logger), Recovery)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/request/new", http.StatusFound)
	})
	r.Get("/request/new", s.handleNewRequest)
	r.Post("/request", s.handleSubmit)
	r.Get("/health", s.handleHealth)
	r.Post("/logout", s.handleLogout)
	if policy.SessionScope {
		r.Get("/login", s.handleLoginForm)
		r.Post("/login", s.handleLogin)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	s.router = r
	return s, nil
}

// credentials resolves the store for one request. Session scope builds a
// fresh cookie-backed store per request; process scope shares one token
// across all requests.
func (s *Server) credentials(w http.ResponseWriter, r *http.Request) credstore.Store {
	if s.policy.SessionScope {
		return credstore.NewCookieStore(w, r, s.policy.Cookie, s.policy.APIKey)
	}
	return s.shared
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Startup errors (port in use, permission denied) are returned directly;
// runtime errors are sent to the returned channel. The caller is
// responsible for calling Shutdown.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
