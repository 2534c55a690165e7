// Package session implements the interactive execution engine: the
// per-connection workflow from screening through compiling, launching,
// and streaming a child process, down to the input-request heuristic and
// final verdict classification.
package session

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/apex-sandbox/sandboxd/internal/compiler"
	"github.com/apex-sandbox/sandboxd/internal/denylist"
	"github.com/apex-sandbox/sandboxd/internal/metrics"
	"github.com/apex-sandbox/sandboxd/internal/protocol"
	"github.com/apex-sandbox/sandboxd/internal/runner"
	"github.com/apex-sandbox/sandboxd/internal/workspace"
)

// Session holds the per-connection state: the client socket, resource
// limits, wall-clock start, and the heuristic accumulators described in
// the data model (current_line, consecutive_silence_cycles, and the three
// session flags).
type Session struct {
	conn          net.Conn
	workspaceRoot string
	compilerPath  string
	screener      *denylist.Screener
	logger        *zap.Logger

	timeLimitSec  int
	memoryLimitMB int
	startTime     time.Time

	waitingForInput bool
	inputSent       bool
	currentLine     []byte
	lastActivity    time.Time
	silenceCycles   int
	hasOutput       bool
}

// New builds a Session bound to conn with already-clamped resource
// limits.
func New(conn net.Conn, workspaceRoot, compilerPath string, screener *denylist.Screener, timeLimitSec, memoryLimitMB int, logger *zap.Logger) *Session {
	return &Session{
		conn:          conn,
		workspaceRoot: workspaceRoot,
		compilerPath:  compilerPath,
		screener:      screener,
		logger:        logger,
		timeLimitSec:  timeLimitSec,
		memoryLimitMB: memoryLimitMB,
	}
}

func (s *Session) send(msg string) {
	if _, err := s.conn.Write([]byte(msg)); err != nil {
		s.logger.Debug("write to client failed", zap.Error(err))
	}
}

// RunSingleFile executes the single-source submission path: screen,
// compile, launch, stream.
func (s *Session) RunSingleFile(ctx context.Context, code string) {
	s.startTime = time.Now()
	s.logger.Debug("starting single file execution")

	if s.screener.IsDangerous(code) {
		s.logger.Warn("dangerous code detected - execution blocked")
		metrics.Get().SecurityBlocksTotal.Inc()
		s.send(protocol.ErrorMessage("Dangerous code detected: execution blocked", protocol.ExitSecurityError))
		return
	}

	ws, err := workspace.New(s.workspaceRoot, s.logger)
	if err != nil {
		s.logger.Error("failed to create workspace", zap.Error(err))
		s.send(protocol.ErrorMessage("Failed to create sandbox workspace", protocol.ExitInfrastructure))
		return
	}
	defer ws.Cleanup()

	if _, err := ws.WriteSingleSource(code); err != nil {
		s.logger.Error("failed to write source", zap.Error(err))
		s.send(protocol.ErrorMessage("Cannot create source file", protocol.ExitInfrastructure))
		return
	}

	s.compileAndRun(ctx, ws, false, nil)
}

// RunMultiFile executes the multi-file submission path. names must be
// supplied in a stable order (callers sort the map's keys) so main
// selection is deterministic across calls with the same inputs.
func (s *Session) RunMultiFile(ctx context.Context, names []string, files map[string]string) {
	s.startTime = time.Now()
	s.logger.Debug("starting multi-file execution", zap.Int("file_count", len(files)))

	if s.screener.IsDangerousFiles(files) {
		s.logger.Warn("dangerous code detected - execution blocked")
		metrics.Get().SecurityBlocksTotal.Inc()
		s.send(protocol.ErrorMessage("Dangerous code detected: execution blocked", protocol.ExitSecurityError))
		return
	}

	ws, err := workspace.New(s.workspaceRoot, s.logger)
	if err != nil {
		s.logger.Error("failed to create workspace", zap.Error(err))
		s.send(protocol.ErrorMessage("Failed to create sandbox workspace", protocol.ExitInfrastructure))
		return
	}
	defer ws.Cleanup()

	compileList, err := ws.WriteMultiFile(names, files)
	if err != nil {
		s.logger.Error("failed to write multi-file sources", zap.Error(err))
		s.send(protocol.ErrorMessage("Cannot create source files", protocol.ExitInfrastructure))
		return
	}

	s.compileAndRun(ctx, ws, true, compileList)
}

// compileAndRun is shared by both entry points. multiFile distinguishes
// the two compile paths explicitly rather than inferring it from
// compileList's nil-ness: a multi-file submission with no compilable
// source must still reach CompileMulti's empty-list guard (so it reports
// "No C++ source files found") instead of falling through to CompileSingle
// and failing on a program.cpp that was never written.
func (s *Session) compileAndRun(ctx context.Context, ws *workspace.Workspace, multiFile bool, compileList []string) {
	drv := compiler.New(s.compilerPath, s.logger)

	var result compiler.Result
	var err error
	if multiFile {
		result, err = drv.CompileMulti(ctx, ws, compileList)
	} else {
		result, err = drv.CompileSingle(ctx, ws)
	}
	if err != nil {
		s.logger.Error("compiler invocation failed", zap.Error(err))
		metrics.Get().CompilationsTotal.WithLabelValues("error").Inc()
		s.send(protocol.ErrorMessage("Compilation failed: "+err.Error(), protocol.ExitCompilationError))
		return
	}
	if !result.OK {
		s.logger.Warn("compilation failed", zap.String("diagnostics", result.Diagnostics))
		metrics.Get().CompilationsTotal.WithLabelValues("failure").Inc()
		s.send(protocol.ErrorMessage("Compilation failed: "+result.Diagnostics, protocol.ExitCompilationError))
		return
	}
	metrics.Get().CompilationsTotal.WithLabelValues("success").Inc()

	s.logger.Debug("sending compile success")
	s.send(protocol.CompileSuccess())

	child, err := runner.Launch(ctx, ws, s.timeLimitSec, s.memoryLimitMB, s.logger)
	if err != nil {
		s.logger.Error("failed to launch child", zap.Error(err))
		s.send(protocol.ErrorMessage(err.Error(), protocol.ExitInfrastructure))
		return
	}

	s.logger.Debug("running program")
	outcome := s.runInteractiveLoop(child)
	if outcome.disconnected {
		s.logger.Debug("client disconnected during session")
		s.send(protocol.ErrorMessage("Client disconnected during input", protocol.ExitClientDisconnect))
		return
	}
	metrics.Get().ExecutionResultsTotal.WithLabelValues(statusFromResult(outcome.result)).Inc()
	s.send(protocol.ExecutionResult(outcome.result))
	s.logger.Debug("program execution completed")
}
