package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apex-sandbox/sandboxd/internal/config"
)

func TestAdminServerHealthz(t *testing.T) {
	cfg := config.Default()
	cfg.AdminAddr = "127.0.0.1:0"

	admin := NewAdminServer(&cfg, zap.NewNop())

	ln, err := net.Listen("tcp", cfg.AdminAddr)
	require.NoError(t, err)
	admin.httpServer.Addr = ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- admin.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get("http://" + admin.httpServer.Addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("admin server did not shut down in time")
	}
}
