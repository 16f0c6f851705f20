// Package server exposes sessions and the RAG engine over HTTP, with a
// websocket endpoint for streamed replies.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/embedding"
	"github.com/becomeliminal/chat-go-sdk/rag"
	"github.com/becomeliminal/chat-go-sdk/session"
	"github.com/becomeliminal/chat-go-sdk/vectorstore"
)

// SessionFactory creates a session for a model name; empty means the
// default model.
type SessionFactory func(model string) (*session.Session, error)

// EngineFactory builds a RAG engine answering through llm.
type EngineFactory func(llm rag.Asker) (*rag.Engine, error)

// Server holds live conversations and routes requests to them.
type Server struct {
	echo     *echo.Echo
	sessions SessionFactory
	registry *session.Registry
	logger   *log.Logger
	upgrader websocket.Upgrader

	engines   EngineFactory
	embedder  embedding.Embedder
	store     vectorstore.Store
	textField string

	mu    sync.RWMutex
	convs map[string]*session.Session
}

// Option configures a Server.
type Option func(*Server)

// WithRegistry lets GET /v1/models list the registered models.
func WithRegistry(r *session.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// WithRAG enables the retrieval endpoints.
func WithRAG(engines EngineFactory, embedder embedding.Embedder, store vectorstore.Store, textField string) Option {
	return func(s *Server) {
		s.engines = engines
		s.embedder = embedder
		s.store = store
		s.textField = textField
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAccessLog enables echo's request logger.
func WithAccessLog() Option {
	return func(s *Server) { s.echo.Use(middleware.Logger()) }
}

// New creates a server.
func New(sessions SessionFactory, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))

	s := &Server{
		echo:     e,
		sessions: sessions,
		logger:   log.Default(),
		convs:    make(map[string]*session.Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.echo.Group("/v1")
	v1.GET("/models", s.ListModels)
	v1.POST("/sessions", s.CreateSession)
	v1.GET("/sessions/:id", s.GetSession)
	v1.DELETE("/sessions/:id", s.DeleteSession)
	v1.POST("/sessions/:id/ask", s.Ask)
	v1.POST("/sessions/:id/reset", s.Reset)
	v1.POST("/sessions/:id/rag", s.AskRAG)
	v1.GET("/sessions/:id/stream", s.Stream)
	v1.POST("/documents", s.IndexDocuments)
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Printf("[SERVER] Listening on %s", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) conversation(id string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	return conv, ok
}

// statusFor maps domain errors to HTTP status codes and stable codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "quota_exceeded"
	case errors.Is(err, core.ErrModelUnavailable):
		return http.StatusNotFound, "model_unavailable"
	case errors.Is(err, core.ErrConfiguration):
		return http.StatusBadRequest, "configuration"
	case errors.Is(err, core.ErrRequestFailed):
		return http.StatusBadGateway, "request_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "cancelled"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) fail(c echo.Context, err error) error {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Printf("[SERVER] %s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: "not_found"})
}
