package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/autonomy-edge/compilerd/internal/config"
	"github.com/autonomy-edge/compilerd/internal/workspace"
)

func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o750))
	return path
}

func startTestServer(t *testing.T, cfg *config.Config) (*Server, string) {
	t.Helper()
	cfg.Server.Listen = "127.0.0.1:0"
	s := New(cfg, "test")
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s, "http://" + s.Addr()
}

func TestEndToEndGenerateST(t *testing.T) {
	tool := fakeTool(t, `
echo "PROGRAM prog0" > program.st
echo "generated"
`)
	base := t.TempDir()
	cfg := config.Default()
	cfg.Toolchain.Xml2st = tool
	cfg.Toolchain.Iec2c = tool
	cfg.Workspace.BaseDir = base

	_, url := startTestServer(t, cfg)

	resp, err := http.Post(url+"/generate-st", "application/json",
		bytes.NewBufferString(`{"plc_xml": "<project/>"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Output    string  `json:"output"`
		ExitCode  int     `json:"exit_code"`
		ProgramST *string `json:"program_st"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 0, body.ExitCode)
	require.NotNil(t, body.ProgramST)
	require.Contains(t, *body.ProgramST, "PROGRAM prog0")

	// Isolation invariant: the request's workspace is gone.
	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), workspace.Prefix))
	}
}

func TestEndToEndValidationBeforeOrchestration(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	// Deliberately broken tool paths: validation must reject first.
	cfg.Toolchain.Xml2st = "/nonexistent/xml2st"
	cfg.Toolchain.Iec2c = "/nonexistent/iec2c"
	cfg.Workspace.BaseDir = base

	_, url := startTestServer(t, cfg)

	resp, err := http.Post(url+"/generate-st", "application/json",
		bytes.NewBufferString(`{"plc_xml": ""}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Empty(t, entries, "no workspace may be created for a rejected request")
}

func TestEndToEndMissingToolIs500(t *testing.T) {
	cfg := config.Default()
	cfg.Toolchain.Xml2st = "/nonexistent/xml2st"
	cfg.Toolchain.Iec2c = "/nonexistent/iec2c"
	cfg.Workspace.BaseDir = t.TempDir()

	_, url := startTestServer(t, cfg)

	resp, err := http.Post(url+"/generate-st", "application/json",
		bytes.NewBufferString(`{"plc_xml": "<project/>"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestMonitoringEndpoints(t *testing.T) {
	tool := fakeTool(t, "exit 0\n")
	cfg := config.Default()
	cfg.Toolchain.Xml2st = tool
	cfg.Toolchain.Iec2c = tool
	cfg.Workspace.BaseDir = t.TempDir()

	_, url := startTestServer(t, cfg)

	for _, path := range []string{"/healthz", "/readyz", "/status", "/metrics"} {
		resp, err := http.Get(url + path)
		require.NoError(t, err, path)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestApplyConfigSwitchesToolPaths(t *testing.T) {
	oldTool := fakeTool(t, "echo old-tool\necho x > program.st\n")
	newTool := fakeTool(t, "echo new-tool\necho x > program.st\n")

	cfg := config.Default()
	cfg.Toolchain.Xml2st = oldTool
	cfg.Toolchain.Iec2c = oldTool
	cfg.Workspace.BaseDir = t.TempDir()

	s, url := startTestServer(t, cfg)

	generate := func() string {
		resp, err := http.Post(url+"/generate-st", "application/json",
			bytes.NewBufferString(`{"plc_xml": "<project/>"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		var body struct {
			Output string `json:"output"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body.Output
	}

	require.Contains(t, generate(), "old-tool")

	updated := *cfg
	updated.Toolchain.Xml2st = newTool
	s.ApplyConfig(&updated)

	require.Contains(t, generate(), "new-tool")
}

func TestCORSHeadersOnCompileEndpoints(t *testing.T) {
	tool := fakeTool(t, "echo x > program.st\n")
	cfg := config.Default()
	cfg.Toolchain.Xml2st = tool
	cfg.Toolchain.Iec2c = tool
	cfg.Server.CORSOrigins = []string{"http://localhost:5173"}
	cfg.Workspace.BaseDir = t.TempDir()

	_, url := startTestServer(t, cfg)

	req, err := http.NewRequest(http.MethodOptions, fmt.Sprintf("%s/compile-st", url), nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
