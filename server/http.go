package server

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
	"github.com/saiset-co/sai-interaction/utils"
)

// EventPublisher is the slice of the publisher the HTTP layer needs.
type EventPublisher interface {
	Publish(event types.InteractionEvent) error
}

type Dependencies struct {
	Catalog   types.ProductCache
	Recency   types.RecencyTracker
	Sessions  types.SessionStore
	Publisher EventPublisher
	Activity  types.ActivityBroadcaster
	Records   types.RecordStore
	Health    types.HealthManager
	Metrics   types.MetricsManager
}

type Server struct {
	ctx        context.Context
	logger     types.Logger
	config     *types.ServerConfig
	deps       Dependencies
	collection string
	httpServer *fasthttp.Server
	started    int32
}

func NewServer(ctx context.Context, config types.ConfigManager, logger types.Logger, deps Dependencies) *Server {
	serviceConfig := config.GetConfig()

	collection := "products"
	if serviceConfig.Catalog != nil && serviceConfig.Catalog.Collection != "" {
		collection = serviceConfig.Catalog.Collection
	}

	s := &Server{
		ctx:        ctx,
		logger:     logger,
		config:     serviceConfig.Server,
		deps:       deps,
		collection: collection,
	}

	s.httpServer = &fasthttp.Server{
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.IdleTimeout) * time.Second,
	}

	return s
}

// Handler returns the full middleware-wrapped request handler.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.withRecovery(s.withLogging(s.route))
}

func (s *Server) Start() error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	go func() {
		if err := s.httpServer.ListenAndServe(addr); err != nil {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	s.logger.Info("HTTP server started", zap.String("addr", addr))
	return nil
}

func (s *Server) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.started, 1, 0) {
		return types.ErrServerNotRunning
	}

	shutdownTimeout := time.Duration(s.config.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.ShutdownWithContext(ctx); err != nil {
		s.logger.Warn("HTTP server shutdown timeout", zap.Error(err))
		return types.WrapError(err, "http server shutdown failed")
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

func (s *Server) IsRunning() bool {
	return atomic.LoadInt32(&s.started) == 1
}

func (s *Server) withRecovery(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Panic in request handler",
					zap.ByteString("path", ctx.Path()),
					zap.Any("panic", r))
				s.writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
			}
		}()
		next(ctx)
	}
}

func (s *Server) withLogging(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)

		s.logger.Debug("Request handled",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, value interface{}) {
	data, err := utils.Marshal(value)
	if err != nil {
		s.logger.Error("Failed to marshal response", zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
		return
	}

	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(fmt.Sprintf(`{"error":%q}`, message))
}
