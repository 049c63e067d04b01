package serverrun

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/brugmanjoost/drumbeat/internal/config"
)

func TestOptionsApply(t *testing.T) {
	cfg := cfgpkg.Default()
	Options{HTTPAddr: ":9999", Backend: "memory", LogLevel: "debug"}.apply(&cfg)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "empty overrides keep configured values")
	assert.Empty(t, cfg.GRPCAddr)
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	_, err := LoadConfig(Options{Backend: "sqlite"})
	assert.Error(t, err)
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRunServesUntilCancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("starts real listeners")
	}
	cfg := cfgpkg.Default()
	cfg.Storage.Backend = cfgpkg.BackendMemory
	cfg.HTTPAddr = freePort(t)
	cfg.GRPCAddr = freePort(t)
	cfg.Log.Level = "error"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunWithConfig(ctx, cfg) }()

	url := fmt.Sprintf("http://%s/v1/healthz", cfg.HTTPAddr)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunReportsListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := cfgpkg.Default()
	cfg.Storage.Backend = cfgpkg.BackendMemory
	cfg.HTTPAddr = l.Addr().String()
	cfg.Log.Level = "error"

	err = RunWithConfig(context.Background(), cfg)
	assert.Error(t, err)
}
