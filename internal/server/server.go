// Package server exposes hosted model nodes and the model cache over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/tfmodel/tfmodel/internal/engine"
	"github.com/tfmodel/tfmodel/internal/logging"
	"github.com/tfmodel/tfmodel/internal/modelcache"
	"github.com/tfmodel/tfmodel/internal/node"
)

// shutdownTimeout bounds the graceful drain on Shutdown.
const shutdownTimeout = 30 * time.Second

// Server hosts a set of model nodes and the cache's admin surface.
type Server struct {
	echo  *echo.Echo
	cache *modelcache.Cache
	nodes map[string]*node.Node
	log   zerolog.Logger
}

// nodeStatus is the wire form of one node in list responses.
type nodeStatus struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	ModelURL string `json:"model_url,omitempty"`
	Status   string `json:"status"`
}

// New builds a Server over an already started set of nodes.
func New(cache *modelcache.Cache, nodes []*node.Node, log zerolog.Logger) *Server {
	s := &Server{
		echo:  echo.New(),
		cache: cache,
		nodes: make(map[string]*node.Node, len(nodes)),
		log:   logging.ComponentLogger(log, "server"),
	}
	for _, n := range nodes {
		s.nodes[n.Definition().ID] = n
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger)

	s.echo.GET("/healthz", s.health)
	s.echo.GET("/nodes", s.listNodes)
	s.echo.POST("/nodes/:id/predict", s.predict)
	s.echo.GET("/cache", s.listCache)
	s.echo.DELETE("/cache", s.removeCache)

	return s
}

// requestLogger tags every request with a ULID trace ID, injects the logger
// into the request context, and emits one line per request.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		traceID := logging.NewTraceID()
		log := s.log.With().Str("trace_id", traceID).Logger()

		ctx := logging.ContextWithTraceID(c.Request().Context(), traceID)
		ctx = logging.ContextWithLogger(ctx, log)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set("X-Trace-Id", traceID)

		start := time.Now()
		err := next(c)

		log.Info().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", c.Response().Status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
		return err
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("server starting")
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes every node.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	for _, n := range s.nodes {
		if err := n.Close(); err != nil {
			s.log.Warn().Err(err).Str("node_id", n.Definition().ID).Msg("closing node")
		}
	}
	s.log.Info().Msg("shutdown complete")
	return nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listNodes(c echo.Context) error {
	statuses := make([]nodeStatus, 0, len(s.nodes))
	for _, n := range s.nodes {
		def := n.Definition()
		statuses = append(statuses, nodeStatus{
			ID:       def.ID,
			Name:     def.Name,
			ModelURL: def.ModelURL,
			Status:   n.Status(),
		})
	}
	sort.Slice(statuses, func(a, b int) bool { return statuses[a].ID < statuses[b].ID })
	return c.JSON(http.StatusOK, statuses)
}

func (s *Server) predict(c echo.Context) error {
	n, ok := s.nodes[c.Param("id")]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown node")
	}

	var msg node.Message
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed message")
	}

	result, err := n.Input(c.Request().Context(), &msg)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, result)
	case errors.Is(err, node.ErrNoModel), errors.Is(err, node.ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrShapeMismatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) listCache(c echo.Context) error {
	return c.JSON(http.StatusOK, s.cache.Entries())
}

func (s *Server) removeCache(c echo.Context) error {
	url := c.QueryParam("url")
	if url == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url query parameter is required")
	}
	if err := s.cache.Remove(c.Request().Context(), url); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
