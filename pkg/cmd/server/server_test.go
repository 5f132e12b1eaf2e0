package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/lapsim/pkg/config"
	"github.com/mpapenbr/lapsim/pkg/endpoints/api"
	"github.com/mpapenbr/lapsim/pkg/model"
	"github.com/mpapenbr/lapsim/pkg/store"
	"github.com/mpapenbr/lapsim/pkg/utils/broadcast"
)

func TestNewHandler_CORS(t *testing.T) {
	mux := http.NewServeMux()
	api.NewServer(store.New()).Register(mux)
	h := newHandler(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/track?type=location", http.NoBody)
	req.Header.Set("Origin", "http://dashboard.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/track", http.NoBody)
	preflight.Header.Set("Origin", "http://dashboard.example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
}

func TestWaitForRequiredServices_NoNats(t *testing.T) {
	prev := config.NatsURL
	t.Cleanup(func() { config.NatsURL = prev })
	config.NatsURL = ""
	assert.NoError(t, waitForRequiredServices(context.Background()))
}

func TestNewServerCmd(t *testing.T) {
	cmd := NewServerCmd()
	assert.Equal(t, "serve", cmd.Use)
	for _, name := range []string{"addr", "log-level", "nats-url", "enable-telemetry"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "localhost:5000", cmd.Flags().Lookup("addr").DefValue)
}

func TestHTTPServer_ShutdownWithOpenStream(t *testing.T) {
	src := make(chan model.Lap)
	bs := broadcast.NewBroadcastServer("laps", "server-test", src)
	defer bs.Close()

	mux := http.NewServeMux()
	api.NewServer(store.New(), api.WithLapStream(bs)).Register(mux)
	srv := newHTTPServer(context.Background(), "", newHandler(mux), bs.Close)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	rd := bufio.NewReader(resp.Body)
	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	began := time.Now()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Less(t, time.Since(began), time.Second)
	assert.True(t, errors.Is(<-served, http.ErrServerClosed))

	// the stream ends once the server is gone
	_, err = io.ReadAll(rd)
	assert.NoError(t, err)
}

func TestHTTPServer_BaseContextEndsRequests(t *testing.T) {
	src := make(chan model.Lap)
	bs := broadcast.NewBroadcastServer("laps", "server-test", src)
	defer bs.Close()

	mux := http.NewServeMux()
	api.NewServer(store.New(), api.WithLapStream(bs)).Register(mux)
	base, stop := context.WithCancel(context.Background())
	srv := newHTTPServer(base, "", newHandler(mux))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	rd := bufio.NewReader(resp.Body)
	_, err = rd.ReadString('\n')
	require.NoError(t, err)

	stop()
	done := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(rd)
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after the base context ended")
	}
}

func TestEnableTelemetry(t *testing.T) {
	prevSetup, prevStart := setupTelemetry, startRuntimeMetrics
	t.Cleanup(func() { setupTelemetry, startRuntimeMetrics = prevSetup, prevStart })

	started := 0
	startRuntimeMetrics = func() error {
		started++
		return nil
	}

	t.Run("setup fails", func(t *testing.T) {
		setupTelemetry = func(context.Context) (*config.Telemetry, error) {
			return nil, errors.New("collector unavailable")
		}
		shutdown := enableTelemetry(context.Background())
		require.NotNil(t, shutdown)
		shutdown()
		assert.Equal(t, 0, started)
	})
	t.Run("setup succeeds", func(t *testing.T) {
		setupTelemetry = prevSetup
		prevEndpoint := config.TelemetryEndpoint
		t.Cleanup(func() { config.TelemetryEndpoint = prevEndpoint })
		config.TelemetryEndpoint = config.StdoutEndpoint

		shutdown := enableTelemetry(context.Background())
		defer shutdown()
		assert.Equal(t, 1, started)
	})
}
