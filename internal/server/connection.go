package server

import (
	"context"
	"net"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/apex-sandbox/sandboxd/internal/metrics"
	"github.com/apex-sandbox/sandboxd/internal/protocol"
	"github.com/apex-sandbox/sandboxd/internal/session"
)

// handleConnection owns one client connection end to end: read the
// one-shot request, parse it, clamp its limits, and run it through the
// session package. Exactly one terminal message is written before the
// connection is closed.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	start := time.Now()
	logger := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))

	defer func() {
		metrics.Get().SessionsInFlight.Dec()
		metrics.Get().SessionDuration.Observe(time.Since(start).Seconds())
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	buf := make([]byte, protocol.MaxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil {
		logger.Debug("failed to read submission", zap.Error(err))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	sub := protocol.ParseSubmission(string(buf[:n]))
	timeLimit := s.cfg.ClampTimeLimit(sub.TimeLimitSec)
	memoryLimit := s.cfg.ClampMemoryLimit(sub.MemoryLimitMB)

	sess := session.New(conn, s.cfg.WorkspaceRoot, s.cfg.CompilerPath, s.screener, timeLimit, memoryLimit, logger)

	if sub.MultiFile {
		names := make([]string, 0, len(sub.Files))
		for name := range sub.Files {
			names = append(names, name)
		}
		sort.Strings(names)
		sess.RunMultiFile(ctx, names, sub.Files)
		return
	}

	sess.RunSingleFile(ctx, sub.Code)
}
