// Package api exposes the comparison engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TFMV/recon/logger"
	"github.com/TFMV/recon/metrics"
	"github.com/TFMV/recon/pkg/reconcile"
	"github.com/TFMV/recon/version"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ServerOptions configures the server.
type ServerOptions struct {
	Port    string
	Prefork bool
	// Workers is the number of comparison workers per request.
	Workers int
	// BodyLimit caps request bodies in bytes. Defaults to 64 MiB.
	BodyLimit int
	Logger    *zap.Logger
	Collector *metrics.Collector
}

// Server holds the Fiber app instance
type Server struct {
	app       *fiber.App
	port      string
	logger    *zap.Logger
	engine    *reconcile.Engine
	collector *metrics.Collector
}

// NewServer initializes a new Fiber instance with the recon routes.
func NewServer(opts ServerOptions) *Server {
	if opts.Port == "" {
		opts.Port = "3000"
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 64 << 20
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Collector == nil {
		opts.Collector = metrics.NewCollector()
	}

	app := fiber.New(fiber.Config{
		IdleTimeout:           10 * time.Second,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		Prefork:               opts.Prefork,
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		app:       app,
		port:      opts.Port,
		logger:    opts.Logger,
		engine:    reconcile.NewEngine(reconcile.WithLogger(opts.Logger), reconcile.WithWorkers(opts.Workers)),
		collector: opts.Collector,
	}

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(s.requestLogger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Recon API",
			"version": version.Version,
			"build":   version.BuildDate,
			"commit":  version.Commit,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.collector.Registry(), promhttp.HandlerOpts{})))
	app.Post("/compare", s.compare)

	return s
}

// GetApp returns the underlying Fiber app.
func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	logger.WithRequestID(s.logger, c).Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
	)
	return err
}

// errorHandler renders errors as JSON.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// Start runs the Fiber server until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("recon API listening", zap.String("port", s.port))
		errCh <- s.app.Listen(":" + s.port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}
	s.logger.Info("received shutdown signal, stopping server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down: %w", err)
	}
	s.logger.Info("server shutdown successfully")
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
