// Package server exposes one page session over HTTP: navigate the page, then
// resolve observe/act/extract instructions against it remotely. The session
// model is one logical thread of control, so requests that touch the page are
// serialized behind a mutex rather than rejected.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MaTriXy/stagehand/api/schemas"
)

// drainTimeout bounds how long in-flight requests may run after shutdown
// begins.
const drainTimeout = 10 * time.Second

// Resolver is the slice of the resolution engine the HTTP surface drives.
type Resolver interface {
	Observe(ctx context.Context, instruction string) (schemas.CacheKey, bool, error)
	Act(ctx context.Context, instruction string) error
	Extract(ctx context.Context, instruction string) (json.RawMessage, error)
}

// Navigator points the served page at a new document.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Server routes instruction requests to a single live page session.
type Server struct {
	resolver  Resolver
	navigator Navigator
	logger    *zap.Logger

	// One live document, one logical thread of control.
	mu sync.Mutex
}

// New wires the HTTP surface to a resolver and the page it controls.
func New(resolver Resolver, navigator Navigator, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		resolver:  resolver,
		navigator: navigator,
		logger:    logger.Named("server"),
	}
}

// Router builds the route table. Exposed separately from Run so tests can
// drive the handlers through httptest without a listener.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(s.logRequests(), gin.Recovery())

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/v1")
	v1.POST("/navigate", s.handleNavigate)
	v1.POST("/observe", s.handleObserve)
	v1.POST("/act", s.handleAct)
	v1.POST("/extract", s.handleExtract)

	return router
}

// Run serves the API on addr until ctx is canceled, then drains in-flight
// requests before returning.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("session server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("session server draining")
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := httpServer.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("drain http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
