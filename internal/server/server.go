// Package server provides the sandbox's TCP accept loop and its admin HTTP
// surface; cmd/sandboxd runs the two as a coordinated actor group.
package server

import (
	"context"
	"net"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/apex-sandbox/sandboxd/internal/config"
	"github.com/apex-sandbox/sandboxd/internal/denylist"
	"github.com/apex-sandbox/sandboxd/internal/metrics"
	"github.com/apex-sandbox/sandboxd/internal/protocol"
	"github.com/apex-sandbox/sandboxd/internal/session"
)

// Server owns the TCP listener that accepts untrusted submissions.
type Server struct {
	cfg      *config.Config
	screener *denylist.Screener
	logger   *zap.Logger
	limiter  *rate.Limiter

	listener net.Listener
}

// New builds a Server bound to cfg. The admission limiter caps new
// connections to one per 50ms with a burst equal to the configured
// concurrency ceiling, so a connection storm queues at accept() rather
// than spawning unbounded sessions.
func New(cfg *config.Config, screener *denylist.Screener, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		screener: screener,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(timePerConnection), cfg.MaxConcurrentSessions),
	}
}

const timePerConnection = 50_000_000 // 50ms, in time.Duration's unit (ns)

// Run accepts connections until ctx is canceled or the listener fails.
// Each accepted connection is screened by the admission limiter and
// dispatched to its own goroutine; Run itself returns once listening
// stops, leaving in-flight connections to finish on their own.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("sandbox listener started", zap.String("addr", s.cfg.ListenAddr))

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down sandbox listener")
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		if !s.limiter.Allow() {
			s.logger.Warn("rejecting connection: admission limit exceeded", zap.String("remote", conn.RemoteAddr().String()))
			_, _ = conn.Write([]byte(protocol.ErrorMessage("Server busy, try again later", protocol.ExitInfrastructure)))
			_ = conn.Close()
			continue
		}

		metrics.Get().SessionsTotal.Inc()
		metrics.Get().SessionsInFlight.Inc()
		go s.handleConnection(ctx, conn)
	}
}

// Close stops the listener if it is active.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
