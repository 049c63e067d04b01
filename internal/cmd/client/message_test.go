package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brugmanjoost/drumbeat/internal/access"
	"github.com/brugmanjoost/drumbeat/internal/cmd/client/transports"
	cfgpkg "github.com/brugmanjoost/drumbeat/internal/config"
	"github.com/brugmanjoost/drumbeat/internal/message"
	"github.com/brugmanjoost/drumbeat/internal/runtime"
	httpserver "github.com/brugmanjoost/drumbeat/internal/server/http"
	"github.com/brugmanjoost/drumbeat/internal/storage/memory"
)

func startServer(t *testing.T) BaseURLFunc {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Credentials = []access.Credential{
		{Token: "admin", Queue: "builds", IsAdmin: true},
		{Token: "worker", Queue: "builds", IsWorker: true},
	}
	rt, err := runtime.Open(context.Background(), runtime.Options{Config: cfg, Store: memory.New()})
	require.NoError(t, err)
	ts := httptest.NewServer(httpserver.New(rt, nil).Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = rt.Close()
	})
	return func() string { return ts.URL }
}

func run(t *testing.T, baseURL BaseURLFunc, args ...string) (string, error) {
	t.Helper()
	cmd := NewRoot(baseURL)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestMessageLifecycleCLI(t *testing.T) {
	base := startServer(t)

	out, err := run(t, base, "message", "create", "-q", "builds", "--token", "admin", "--subject", "build-42", "--body", `{"ref":"main"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "id: 1")

	_, err = run(t, base, "message", "create", "-q", "builds", "--token", "admin", "--subject", "build-42")
	var rerr *transports.ResultError
	require.True(t, errors.As(err, &rerr), "got %v", err)
	assert.Equal(t, "error-already-scheduled", rerr.Result)

	out, err = run(t, base, "message", "list", "-q", "builds", "--token", "worker")
	require.NoError(t, err)
	var list []message.Message
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "build-42", list[0].Subject)
	assert.JSONEq(t, `{"ref":"main"}`, string(list[0].RequestBody))

	out, err = run(t, base, "message", "postback", "-q", "builds", "--token", "worker", "1", "--status", "completed", "--body", `{"ok":true}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Message 1 completed")

	out, err = run(t, base, "message", "get", "-q", "builds", "--token", "admin", "1")
	require.NoError(t, err)
	var m message.Message
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, message.StatusCompleted, m.Status)
	assert.NotNil(t, m.TimeEnd)

	_, err = run(t, base, "message", "get", "-q", "builds", "--token", "worker", "1")
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "error-access-denied", rerr.Result)
	assert.Equal(t, 403, rerr.StatusCode)

	_, err = run(t, base, "message", "cancel", "-q", "builds", "--token", "admin", "1")
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "error-not-pending", rerr.Result)

	out, err = run(t, base, "message", "delete", "-q", "builds", "--token", "admin", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted from queue builds")
}

func TestTokenFromEnv(t *testing.T) {
	base := startServer(t)
	t.Setenv(TokenEnv, "admin")

	out, err := run(t, base, "message", "create", "-q", "builds", "--subject", "s")
	require.NoError(t, err)
	assert.Contains(t, out, "id: 1")

	out, err = run(t, base, "message", "list", "-q", "builds", "--status", "pending")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "["))
}

func TestCLIValidation(t *testing.T) {
	base := startServer(t)
	cases := map[string][]string{
		"missing queue":   {"message", "list", "--token", "admin"},
		"missing subject": {"message", "create", "-q", "builds", "--token", "admin"},
		"bad body":        {"message", "create", "-q", "builds", "--token", "admin", "--subject", "s", "--body", "{"},
		"bad id":          {"message", "get", "-q", "builds", "--token", "admin", "abc"},
		"missing id":      {"message", "cancel", "-q", "builds", "--token", "admin"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := run(t, base, args...)
			assert.Error(t, err)
		})
	}
}

func TestHealthCommand(t *testing.T) {
	base := startServer(t)
	out, err := run(t, base, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "status: OK")
}

func TestRootWiresClientCommands(t *testing.T) {
	root := NewRoot(func() string { return "http://127.0.0.1:0" })
	assert.True(t, root.SilenceUsage)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"message", "health"})

	msg, _, err := root.Find([]string{"message", "postback"})
	require.NoError(t, err)
	assert.Equal(t, "postback", msg.Name())
}
