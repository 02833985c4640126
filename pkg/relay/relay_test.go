// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Thermoquad/aerostat/pkg/config"
	"github.com/Thermoquad/aerostat/pkg/link"
	"github.com/Thermoquad/aerostat/pkg/relay"
	"github.com/Thermoquad/aerostat/pkg/telemetry"
)

func testRelayConfig() config.RelayConfig {
	cfg := config.Default().Relay
	cfg.Enabled = true
	return cfg
}

// handlers outlive each test, so their logs stay out of t.Log
func startServer(t *testing.T, cfg config.RelayConfig) (*relay.Server, string) {
	t.Helper()
	srv := relay.NewServer(cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ts.Close()
	})
	return srv, ts.URL
}

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestFrame_RoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 123456000, time.UTC)
	rec := telemetry.Record{
		Fields: []string{"21.5", "40.1"},
		Raw:    "21.5;40.1",
		Time:   at,
		Source: telemetry.SourceDevice,
	}

	data, err := relay.Encode(relay.RecordFrame(rec))
	require.NoError(t, err)

	f, err := relay.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, relay.KindRecord, f.Kind)
	assert.Equal(t, rec.Fields, f.Fields)
	assert.Equal(t, "21.5;40.1", f.Text)
	assert.True(t, at.Equal(f.Timestamp()))
}

func TestDecode_Invalid(t *testing.T) {
	_, err := relay.Decode(nil)
	assert.Error(t, err)

	_, err = relay.Decode([]byte{0xff, 0x00})
	assert.Error(t, err)

	data, err := relay.Encode(relay.Frame{Kind: 42})
	require.NoError(t, err)
	_, err = relay.Decode(data)
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind relay.Kind
		want string
	}{
		{relay.KindRecord, "RECORD"},
		{relay.KindText, "TEXT"},
		{relay.KindEvent, "EVENT"},
		{relay.Kind(9), "UNKNOWN(9)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	_, base := startServer(t, testRelayConfig())

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 0, body.Clients)
}

func TestTap_ReceivesBroadcast(t *testing.T) {
	cfg := testRelayConfig()
	srv, base := startServer(t, cfg)

	tap, err := relay.Dial(context.Background(), wsURL(base, cfg.Path), "", "", false)
	require.NoError(t, err)
	defer tap.Close()

	require.Eventually(t, func() bool { return srv.Hub().Count() == 1 }, time.Second, time.Millisecond)

	rec := telemetry.Record{Fields: []string{"1", "2"}, Raw: "1;2", Time: time.Now(), Source: telemetry.SourceDummy}
	require.NoError(t, srv.Hub().Broadcast(relay.RecordFrame(rec)))
	require.NoError(t, srv.Hub().Broadcast(relay.TextFrame("// !! Unplugged !!", time.Now())))
	require.NoError(t, srv.Hub().Broadcast(relay.EventFrame(link.Event{
		Kind: link.EventReplugged, Message: "// !! Replugged !!", Time: time.Now(),
	})))

	require.NoError(t, tap.SetDeadline(time.Now().Add(2*time.Second)))

	f, err := tap.Next()
	require.NoError(t, err)
	assert.Equal(t, relay.KindRecord, f.Kind)
	assert.Equal(t, []string{"1", "2"}, f.Fields)
	assert.Equal(t, "dummy", f.Source)

	f, err = tap.Next()
	require.NoError(t, err)
	assert.Equal(t, relay.KindText, f.Kind)
	assert.Equal(t, "// !! Unplugged !!", f.Text)

	f, err = tap.Next()
	require.NoError(t, err)
	assert.Equal(t, relay.KindEvent, f.Kind)
	assert.Equal(t, link.EventReplugged.String(), f.Event)
}

func TestTap_ServerShutdown(t *testing.T) {
	cfg := testRelayConfig()
	srv, base := startServer(t, cfg)

	tap, err := relay.Dial(context.Background(), wsURL(base, cfg.Path), "", "", false)
	require.NoError(t, err)
	defer tap.Close()
	require.Eventually(t, func() bool { return srv.Hub().Count() == 1 }, time.Second, time.Millisecond)

	srv.Hub().Close()
	assert.Equal(t, 0, srv.Hub().Count())

	require.NoError(t, tap.SetDeadline(time.Now().Add(2*time.Second)))
	_, err = tap.Next()
	assert.ErrorIs(t, err, relay.ErrTapClosed)
}

func TestBasicAuth(t *testing.T) {
	cfg := testRelayConfig()
	cfg.Username = "ops"
	cfg.Password = "secret"
	_, base := startServer(t, cfg)
	url := wsURL(base, cfg.Path)

	_, err := relay.Dial(context.Background(), url, "", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")

	_, err = relay.Dial(context.Background(), url, "ops", "wrong", false)
	require.Error(t, err)

	tap, err := relay.Dial(context.Background(), url, "ops", "secret", false)
	require.NoError(t, err)
	tap.Close()
}

func TestDial_BadScheme(t *testing.T) {
	_, err := relay.Dial(context.Background(), "http://localhost:1/telemetry", "", "", false)
	assert.ErrorContains(t, err, "unsupported URL scheme")
}

func TestServer_StartAddr(t *testing.T) {
	cfg := testRelayConfig()
	cfg.Listen = "127.0.0.1:0"
	srv := relay.NewServer(cfg, zap.NewNop())
	require.NoError(t, srv.Start())
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
