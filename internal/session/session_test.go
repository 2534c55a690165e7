package session

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/apex-sandbox/sandboxd/internal/denylist"
)

func TestRunSingleFileBlocksDangerousCode(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	screener := denylist.New(zap.NewNop())
	s := New(serverConn, t.TempDir(), "g++", screener, 5, 256, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunSingleFile(context.Background(), `int main() { system("rm -rf /"); }`)
	}()

	buf := make([]byte, 4096)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientConn.Read(buf)
	assert.NoError(t, err)

	msg := string(buf[:n])
	assert.Contains(t, msg, `"type":"ERROR"`)
	assert.Contains(t, msg, "Dangerous code detected")
	assert.Contains(t, msg, `"exit_code":-3`)

	<-done
}

func TestRunMultiFileBlocksDangerousCodeInAnyFile(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	screener := denylist.New(zap.NewNop())
	s := New(serverConn, t.TempDir(), "g++", screener, 5, 256, zap.NewNop())

	files := map[string]string{
		"main.cpp": `#include "helper.h"\nint main(){ return helper(); }`,
		"helper.h": `int helper() { return system("ls"); }`,
	}
	names := []string{"main.cpp", "helper.h"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunMultiFile(context.Background(), names, files)
	}()

	buf := make([]byte, 4096)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientConn.Read(buf)
	assert.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "Dangerous code detected")

	<-done
}

func TestRunMultiFileWithNoCompilableSourceReportsCompilationError(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	screener := denylist.New(zap.NewNop())
	s := New(serverConn, t.TempDir(), "g++", screener, 5, 256, zap.NewNop())

	files := map[string]string{"readme.txt": "not a source file"}
	names := []string{"readme.txt"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunMultiFile(context.Background(), names, files)
	}()

	buf := make([]byte, 4096)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientConn.Read(buf)
	assert.NoError(t, err)

	msg := string(buf[:n])
	assert.Contains(t, msg, `"type":"ERROR"`)
	assert.Contains(t, msg, "No C++ source files found")
	assert.Contains(t, msg, `"exit_code":-2`)

	<-done
}

func TestSendLogsWriteFailureWithoutPanicking(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	clientConn.Close()

	s := New(serverConn, t.TempDir(), "g++", denylist.New(zap.NewNop()), 5, 256, zap.NewNop())
	assert.NotPanics(t, func() {
		s.send("anything")
	})
	serverConn.Close()
}

func TestSessionZeroValueFieldsBeforeRun(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	s := New(serverConn, "./tmp", "g++", denylist.New(zap.NewNop()), 5, 256, zap.NewNop())
	assert.False(t, s.waitingForInput)
	assert.False(t, s.inputSent)
	assert.Empty(t, s.currentLine)
	assert.Equal(t, 0, s.silenceCycles)
	assert.False(t, s.hasOutput)
	assert.True(t, bytes.Equal(s.currentLine, nil))
}
