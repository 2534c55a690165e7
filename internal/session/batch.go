package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/apex-sandbox/sandboxd/internal/compiler"
	"github.com/apex-sandbox/sandboxd/internal/denylist"
	"github.com/apex-sandbox/sandboxd/internal/protocol"
	"github.com/apex-sandbox/sandboxd/internal/runner"
	"github.com/apex-sandbox/sandboxd/internal/workspace"
)

// RunBatch compiles code, feeds it input once, and returns the final
// verdict without streaming. It is the non-interactive convenience
// entry point: the original ships a second, non-streaming Sandbox
// alongside the interactive one for callers that just want one request
// and one response (batch scoring, this package's own tests). Unlike the
// original, output is always sourced from the pipe capture — the
// original's fallback reads of output.txt/runtime_errors.txt are not
// reproduced, since the child here never writes those files.
func RunBatch(ctx context.Context, workspaceRoot, compilerPath string, screener *denylist.Screener, code, input string, timeLimitSec, memoryLimitMB int, logger *zap.Logger) protocol.Result {
	start := time.Now()

	if screener.IsDangerous(code) {
		return protocol.Result{
			Error:    "Dangerous code detected: execution blocked",
			ExitCode: protocol.ExitSecurityError,
		}
	}

	ws, err := workspace.New(workspaceRoot, logger)
	if err != nil {
		return protocol.Result{Error: "Failed to create sandbox workspace", ExitCode: protocol.ExitInfrastructure}
	}
	defer ws.Cleanup()

	if _, err := ws.WriteSingleSource(code); err != nil {
		return protocol.Result{Error: "Cannot create source file", ExitCode: protocol.ExitInfrastructure}
	}

	drv := compiler.New(compilerPath, logger)
	result, err := drv.CompileSingle(ctx, ws)
	if err != nil {
		return protocol.Result{Error: "Compilation failed: " + err.Error(), ExitCode: protocol.ExitCompilationError}
	}
	if !result.OK {
		return protocol.Result{Error: "Compilation failed: " + result.Diagnostics, ExitCode: protocol.ExitCompilationError}
	}

	child, err := runner.Launch(ctx, ws, timeLimitSec, memoryLimitMB, logger)
	if err != nil {
		return protocol.Result{Error: err.Error(), ExitCode: protocol.ExitInfrastructure}
	}

	if input != "" {
		if _, err := child.Stdin.Write([]byte(input)); err != nil {
			logger.Debug("failed writing batch input", zap.Error(err))
		}
	}
	child.Stdin.Close()

	var output []byte
	buf := make([]byte, readChunkSize)
	done := make(chan waitResult, 1)
	go func() {
		code, err := child.Wait()
		done <- waitResult{exitCode: code, err: err}
	}()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			n, err := child.Stdout.Read(buf)
			if n > 0 {
				output = append(output, buf[:n]...)
			}
			if err != nil {
				return
			}
		}
	}()

	timedOut := false
	deadline := time.Duration(timeLimitSec) * time.Second

	select {
	case wr := <-done:
		<-readDone
		exitCode := wr.exitCode
		if wr.err != nil {
			exitCode = -1
		}
		return buildVerdict(exitCode, string(output), "", false, false, time.Since(start), timeLimitSec, memoryLimitMB)
	case <-time.After(deadline):
		runner.Kill(child.Pid)
		<-done
		<-readDone
		timedOut = true
	}

	return buildVerdict(protocol.ExitTimeLimitExceeded, string(output), "", timedOut, false, time.Since(start), timeLimitSec, memoryLimitMB)
}
