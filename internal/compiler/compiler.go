// Package compiler drives the host C++ toolchain: writing is the
// workspace's job, this package only invokes g++, captures diagnostics,
// and verifies the resulting artifact. It never executes what it builds.
package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/apex-sandbox/sandboxd/internal/workspace"
)

// Driver invokes the compiler at Path (default "g++") with a fixed
// UTF-8/C++17 command line, matching the original sandbox's invocation.
type Driver struct {
	Path   string
	logger *zap.Logger
}

// New returns a Driver. An empty path defaults to "g++".
func New(path string, logger *zap.Logger) *Driver {
	if path == "" {
		path = "g++"
	}
	return &Driver{Path: path, logger: logger}
}

// Result is the outcome of one compile attempt.
type Result struct {
	OK         bool
	Diagnostics string
}

// CompileSingle compiles workspace/program.cpp into workspace/program.
func (d *Driver) CompileSingle(ctx context.Context, ws *workspace.Workspace) (Result, error) {
	d.logger.Debug("compiling single file")
	return d.run(ctx, ws, []string{"program.cpp"})
}

// CompileMulti compiles an ordered list of translation units (as returned
// by workspace.WriteMultiFile) into workspace/program.
func (d *Driver) CompileMulti(ctx context.Context, ws *workspace.Workspace, sources []string) (Result, error) {
	if len(sources) == 0 {
		return Result{OK: false, Diagnostics: "No C++ source files found"}, nil
	}
	d.logger.Debug("compiling multiple files", zap.Int("count", len(sources)))
	return d.run(ctx, ws, sources)
}

func (d *Driver) run(ctx context.Context, ws *workspace.Workspace, sources []string) (Result, error) {
	args := append([]string{"-std=c++17", "-finput-charset=UTF-8", "-fexec-charset=UTF-8"}, sources...)
	args = append(args, "-o", workspace.ArtifactName)

	cmd := exec.CommandContext(ctx, d.Path, args...)
	cmd.Dir = ws.Dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.logger.Debug("compile command",
		zap.String("path", d.Path),
		zap.Strings("args", args),
		zap.String("dir", ws.Dir),
	)

	runErr := cmd.Run()
	diagnostics := stderr.String()

	if err := writeCompileLog(ws.CompileErrorsPath(), diagnostics); err != nil {
		d.logger.Warn("failed to write compile log", zap.Error(err))
	}

	_, statErr := os.Stat(ws.ArtifactPath())
	ok := runErr == nil && statErr == nil

	if ok {
		if err := os.Chmod(ws.ArtifactPath(), 0755); err != nil {
			return Result{}, fmt.Errorf("marking artifact executable: %w", err)
		}
		d.logger.Debug("compilation successful")
	} else {
		d.logger.Debug("compilation failed", zap.String("diagnostics", diagnostics))
	}

	return Result{OK: ok, Diagnostics: diagnostics}, nil
}

func writeCompileLog(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
