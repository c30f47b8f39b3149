package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/api"
	"loom/internal/config"
	"loom/internal/runstatus"
)

func testConfig(t *testing.T, bind string) *config.Config {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.DataDir = base + "/data"
	cfg.Paths.ArtifactDir = base + "/artifacts"
	cfg.Paths.LogDir = base + "/logs"
	cfg.Paths.APIBind = bind
	require.NoError(t, cfg.EnsureDirectories())
	return &cfg
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t, "")
	d, err := New(cfg, nil)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start(context.Background()))
	assert.True(t, d.Status(context.Background()).Running)
	assert.Error(t, d.Start(context.Background()), "double start is rejected")

	d.Stop()
	assert.False(t, d.Status(context.Background()).Running)
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testConfig(t, "")
	first, err := New(cfg, nil)
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.Start(context.Background()))

	second, err := New(cfg, nil)
	require.NoError(t, err)
	defer second.Close()
	err = second.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestAPIServerCampaignLifecycle(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:0")
	d, err := New(cfg, nil)
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	base := "http://" + d.apiServer.listener.Addr().String()

	body, err := json.Marshal(api.StartRequest{Page: "leadgen", UserID: "acme"})
	require.NoError(t, err)
	resp, err := http.Post(base+"/api/campaign/start", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started api.StartResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	require.NotEmpty(t, started.Prefix)

	statusResp, err := http.Get(fmt.Sprintf("%s/api/campaign/status?prefix=%s", base, started.Prefix))
	require.NoError(t, err)
	defer statusResp.Body.Close()
	require.Equal(t, http.StatusOK, statusResp.StatusCode)
	var status api.StatusResponse
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	assert.Equal(t, runstatus.StateQueued, status.Status.State)

	runsResp, err := http.Get(base + "/api/runs")
	require.NoError(t, err)
	defer runsResp.Body.Close()
	var runs api.RunsResponse
	require.NoError(t, json.NewDecoder(runsResp.Body).Decode(&runs))
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, started.RunID, runs.Runs[0].RunID)

	missingResp, err := http.Get(base + "/api/campaign/status?prefix=runs/x/y/2025/01/05/zz/")
	require.NoError(t, err)
	defer missingResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, missingResp.StatusCode)
}

func TestAPIServerAuth(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:0")
	cfg.Paths.APIToken = "secret"
	d, err := New(cfg, nil)
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	base := "http://" + d.apiServer.listener.Addr().String()

	resp, err := http.Get(base + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/api/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}
