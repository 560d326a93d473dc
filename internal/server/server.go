// Package server hosts the handler plugin on a gin engine. It resolves
// models through a store, keeps the registry of handler methods and mounts
// the routes of the models file.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/crudkit/internal/modeldef"
	"github.com/mesh-intelligence/crudkit/pkg/handler"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Registry errors.
var (
	ErrMethodExists  = errors.New("method already registered")
	ErrMethodUnknown = errors.New("unknown method")
)

// ShutdownTimeout bounds graceful shutdown in Run.
var ShutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// Logger receives request logs and handler failures. Defaults to
	// slog.Default().
	Logger *slog.Logger
	// JWTSecret verifies bearer tokens. Routes requiring auth reject every
	// request when it is empty.
	JWTSecret []byte
	// Mode is the gin mode (debug, release, test). Empty keeps gin's.
	Mode string
}

// Server implements handler.Host over a model store.
type Server struct {
	models types.ModelLookup
	engine *gin.Engine
	log    *slog.Logger
	auth   *Authenticator

	mu      sync.RWMutex
	methods map[string]handler.Factory
}

// New creates a Server and registers the handler plugin on it.
func New(models types.ModelLookup, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	s := &Server{
		models:  models,
		engine:  gin.New(),
		log:     log,
		auth:    NewAuthenticator(opts.JWTSecret),
		methods: make(map[string]handler.Factory),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	if _, err := handler.Register(s, handler.PluginOptions{Logger: log}); err != nil {
		return nil, err
	}
	return s, nil
}

// GetModel resolves name through the store.
func (s *Server) GetModel(name string) (types.Model, error) {
	return s.models.GetModel(name)
}

// RegisterMethod adds a named handler factory.
func (s *Server) RegisterMethod(name string, f handler.Factory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.methods[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrMethodExists)
	}
	s.methods[name] = f
	return nil
}

// Method returns the factory registered under name.
func (s *Server) Method(name string) (handler.Factory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.methods[name]
	return f, ok
}

// Methods returns the registered method names in sorted order.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mount builds a handler for every route and adds it to the engine.
func (s *Server) Mount(routes []modeldef.Route) error {
	for _, r := range routes {
		f, ok := s.Method(r.Handler)
		if !ok {
			return fmt.Errorf("route %s %s: %s: %w", r.Method, r.Path, r.Handler, ErrMethodUnknown)
		}
		h := f(handler.Options{
			Model:            r.Model,
			CriteriaResolver: criteriaResolver(r.Criteria),
			UniqueID:         r.UniqueID,
			CredentialKey:    r.CredentialKey,
		})
		s.engine.Handle(r.Method, r.Path, s.auth.middleware(r.Auth), serve(h))
		s.log.Debug("route mounted", "method", r.Method, "path", r.Path, "handler", r.Handler, "model", r.Model)
	}
	return nil
}

// Handler returns the HTTP handler serving the mounted routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Authenticator returns the token verifier used by the server.
func (s *Server) Authenticator() *Authenticator {
	return s.auth
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP())
	}
}

// criteriaResolver merges the configured criteria sources. Nil when none is
// configured, so handlers that need criteria report the misconfiguration.
func criteriaResolver(c modeldef.Criteria) handler.CriteriaResolver {
	if c.IsZero() {
		return nil
	}

	var rs []handler.CriteriaResolver
	if c.Static != nil {
		rs = append(rs, handler.StaticCriteria(types.Criteria(c.Static)))
	}
	for _, attr := range sortedKeys(c.Params) {
		rs = append(rs, handler.CriteriaFromParams(attr, c.Params[attr]))
	}
	for _, attr := range sortedKeys(c.Credentials) {
		rs = append(rs, handler.CriteriaFromCredentials(attr, c.Credentials[attr]))
	}
	if len(c.Query) > 0 {
		rs = append(rs, handler.CriteriaFromQuery(c.Query...))
	}
	return handler.MergeCriteria(rs...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
