// Package server provides HTTP server initialization and management.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mikahq/mika-go/internal/application/container"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/presentation/http/routes"
	"github.com/mikahq/mika-go/pkg/config"
)

// Beacon payloads are small; oversized headers are rejected before routing.
const maxHeaderBytes = 64 << 10

// Server owns the listener and the gin router of the tracking API.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *logging.ChanneledLogger
}

// New builds the router from the container. Port "0" picks a free port.
func New(port string, app *container.Container) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           routes.SetupRoutes(app),
			ReadTimeout:       config.ServerReadTimeout,
			ReadHeaderTimeout: headerTimeout(config.ServerReadTimeout),
			WriteTimeout:      config.ServerWriteTimeout,
			IdleTimeout:       config.ServerIdleTimeout,
			MaxHeaderBytes:    maxHeaderBytes,
		},
		logger: app.Logger,
	}
}

// Listen binds the configured address. Start calls it when needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr is the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Start serves until Stop is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.System().Info("HTTP server listening", "address", s.Addr())

	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Shutdown().Info("Draining HTTP connections", "address", s.Addr())
	return s.httpServer.Shutdown(ctx)
}

func headerTimeout(read time.Duration) time.Duration {
	if read <= 0 || read > 10*time.Second {
		return 10 * time.Second
	}
	return read
}
