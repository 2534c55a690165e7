package runner

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apex-sandbox/sandboxd/internal/workspace"
)

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available in this environment")
	}
}

// buildEchoProgram compiles a tiny C++ program if g++ is available,
// otherwise falls back to a shell script named "program" so the launcher
// itself can still be exercised without a compiler present.
func buildEchoProgram(t *testing.T, ws *workspace.Workspace) {
	t.Helper()
	path := ws.ArtifactPath()

	if _, err := exec.LookPath("g++"); err == nil {
		src := ws.Dir + "/program.cpp"
		require.NoError(t, os.WriteFile(src, []byte(
			`#include <iostream>
int main(){ std::cout << "hi\n"; return 0; }`), 0644))
		cmd := exec.Command("g++", "-std=c++17", "program.cpp", "-o", "program")
		cmd.Dir = ws.Dir
		require.NoError(t, cmd.Run())
		return
	}

	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0755))
}

func TestLaunchRunsArtifactAndCapturesOutput(t *testing.T) {
	requireBash(t)

	root := t.TempDir()
	ws, err := workspace.New(root, zap.NewNop())
	require.NoError(t, err)
	buildEchoProgram(t, ws)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	child, err := Launch(ctx, ws, 5, 256, zap.NewNop())
	require.NoError(t, err)
	require.NotZero(t, child.Pid)

	scanner := bufio.NewScanner(child.Stdout)
	require.True(t, scanner.Scan())
	assert.Equal(t, "hi", scanner.Text())

	exitCode, err := child.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
}

func TestKillTerminatesProcessGroup(t *testing.T) {
	requireBash(t)

	root := t.TempDir()
	ws, err := workspace.New(root, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ws.ArtifactPath(), []byte("#!/bin/sh\nwhile true; do sleep 1; done\n"), 0755))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	child, err := Launch(ctx, ws, 30, 256, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, Kill(child.Pid))

	done := make(chan struct{})
	go func() {
		child.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("child was not reaped after Kill")
	}
}
