package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/guard"
	logsvc "github.com/TTR-x/ttr-gestion-sub002/services/logger"
	"github.com/TTR-x/ttr-gestion-sub002/storage/localcache"
)

func setup(t *testing.T) *commandLine {
	conf := core.NewTestConfig()
	conf.Device.CachePath = filepath.Join(t.TempDir(), "cache.db")
	conf.Device.ProbeInterval = 20 * time.Millisecond
	return &commandLine{conf: conf, logger: logsvc.NewDiscardLogger(conf)}
}

func (cli *commandLine) exec(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	root := cli.newRootCommand()
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestRoot(t *testing.T) {
	cli := setup(t)

	out, err := cli.exec(context.Background())
	assert.Equal(t, errHelp, err)
	assert.Contains(t, out, "guard")
}

func TestCache(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	out, err := cli.exec(ctx, "cache", "show")
	require.NoError(t, err)
	assert.Equal(t, "known devices: 0\n", out)

	for _, arg := range []string{"lol", "-1"} {
		_, err = cli.exec(ctx, "cache", "set-devices", "--", arg)
		var verr *core.ValidationError
		if assert.ErrorAs(t, err, &verr, arg) {
			assert.Contains(t, verr.FieldMap(), "count")
		}
	}

	out, err = cli.exec(ctx, "cache", "set-devices", "3")
	require.NoError(t, err)
	assert.Equal(t, "known devices: 3\n", out)

	store, err := localcache.Open(ctx, cli.conf.Device.CachePath)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, localcache.Record{
		EntityType:  "stock",
		EntityID:    "item42",
		BusinessID:  "biz1",
		WorkspaceID: "ws1",
		Payload:     []byte(`{}`),
		Version:     4,
		UpdatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		DeviceID:    "devA",
	}))
	require.NoError(t, store.Close())

	out, err = cli.exec(ctx, "cache", "show", "--workspace", "ws1")
	require.NoError(t, err)
	assert.Contains(t, out, "known devices: 3")
	assert.Contains(t, out, "item42")
	assert.Contains(t, out, "2026-03-01T10:00:00Z")

	out, err = cli.exec(ctx, "cache", "show", "--workspace", "ws1", "--type", "client")
	require.NoError(t, err)
	assert.Contains(t, out, "no cached records")
}

func TestGuardCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	tests := []struct {
		name     string
		devices  int
		probeURL string
		args     []string
		wantErr  error
		wantOut  []string
	}{
		{name: "online, many devices", devices: 3, args: []string{"--online"}, wantOut: []string{"guard: online"}},
		{name: "offline, single device", devices: 1, args: []string{"--offline"}, wantOut: []string{"guard: offline_allowed"}},
		{name: "offline, never synced", devices: 0, args: []string{"--offline"}, wantOut: []string{"guard: offline_allowed"}},
		{
			name:    "offline, two devices",
			devices: 2,
			args:    []string{"--offline"},
			wantErr: guard.ErrBlockedOfflineMultiDevice,
			wantOut: []string{"guard: offline_blocked", "Offline changes disabled", "Known devices: 2"},
		},
		{name: "probe reachable", devices: 2, probeURL: healthy.URL, wantOut: []string{"guard: online"}},
		{
			name:     "probe failing",
			devices:  2,
			probeURL: down.URL,
			wantErr:  guard.ErrBlockedOfflineMultiDevice,
			wantOut:  []string{"guard: offline_blocked"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := setup(t)
			cli.conf.Device.ProbeURL = tt.probeURL
			ctx := context.Background()

			_, err := cli.exec(ctx, "cache", "set-devices", strconv.Itoa(tt.devices))
			require.NoError(t, err)

			out, err := cli.exec(ctx, append([]string{"guard", "check"}, tt.args...)...)
			assert.Equal(t, tt.wantErr, err)
			for _, want := range tt.wantOut {
				assert.Contains(t, out, want)
			}
		})
	}

	t.Run("conflicting flags", func(t *testing.T) {
		cli := setup(t)
		_, err := cli.exec(context.Background(), "guard", "check", "--online", "--offline")
		assert.ErrorContains(t, err, "none of the others can be")
	})
}

func TestGuardWatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cli := setup(t)
	cli.conf.Device.ProbeURL = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, err := cli.exec(ctx, "guard", "watch", "--interval", "20ms")
	require.NoError(t, err)
	assert.Contains(t, out, "watching "+srv.URL)
	assert.Contains(t, out, " online\n")
}

func TestRegister(t *testing.T) {
	var got device.Registration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/v1/devices" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid or expired jwt"}`))
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"device":{"device_id":"devA"},"known_device_count":2}`))
	}))
	defer srv.Close()

	cli := setup(t)
	ctx := context.Background()

	_, err := cli.exec(ctx, "register", "--server", srv.URL)
	assert.Equal(t, errHelp, err)

	_, err = cli.exec(ctx, "register", "--server", srv.URL, "--token", "bad-token", "--device-id", "devA")
	assert.EqualError(t, err, "registering device: 401 invalid or expired jwt")

	out, err := cli.exec(ctx, "register", "--server", srv.URL, "--token", "good-token", "--device-id", "devA", "--label", "Caisse")
	require.NoError(t, err)
	assert.Equal(t, "device devA registered; known devices: 2\n", out)
	assert.Equal(t, device.Registration{DeviceID: "devA", Label: "Caisse", UserAgent: "ttr-device"}, got)

	out, err = cli.exec(ctx, "cache", "show")
	require.NoError(t, err)
	assert.Equal(t, "known devices: 2\n", out)
}
