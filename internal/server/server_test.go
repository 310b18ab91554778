package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/helmsman/internal/core/events/bus"
	"github.com/zeusync/helmsman/internal/core/fleet"
	"github.com/zeusync/helmsman/internal/core/observability/log"
	"github.com/zeusync/helmsman/internal/core/systems/movement"
	"github.com/zeusync/helmsman/internal/core/systems/physics"
)

const t0 int64 = 1_700_000_000_000

type fixture struct {
	server *Server
	http   *httptest.Server
	clock  *movement.ManualClock
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	clock := movement.NewManualClock(t0)
	events := bus.New()
	registry, err := fleet.NewRegistry(fleet.Config{
		Disperse: 10,
		Classes:  []fleet.Class{{Name: "corvette", Speed: 10, TurnAccel: 1}},
	}, clock, rand.New(rand.NewSource(1)), nil, events)
	require.NoError(t, err)

	s := NewServer(cfg, registry, events, clock, nil)
	require.NoError(t, s.subscribe())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.unsubscribe()
		s.hub.closeAll()
		ts.Close()
	})
	return &fixture{server: s, http: ts, clock: clock}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.http.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) spawn(t *testing.T, x, y float64) fleet.Snapshot {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/vessels", SpawnRequest{Class: "corvette", X: x, Y: y})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[fleet.Snapshot](t, resp)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, DefaultServerConfig())
	f.spawn(t, 0, 0)

	resp := f.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	health := decodeBody[HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Vessels)
	assert.Equal(t, t0, health.Now)
	require.NotNil(t, health.Events)
	assert.Equal(t, uint64(1), health.Events.Published)
	assert.Equal(t, uint64(1), health.Events.SubscribersActive)
	assert.Zero(t, health.Events.Errors)
}

func TestClasses(t *testing.T) {
	f := newFixture(t, DefaultServerConfig())
	resp := f.do(t, http.MethodGet, "/api/classes", nil)
	classes := decodeBody[[]fleet.Class](t, resp)
	assert.Equal(t, []fleet.Class{{Name: "corvette", Speed: 10, TurnAccel: 1}}, classes)
}

func TestVesselLifecycle(t *testing.T) {
	f := newFixture(t, DefaultServerConfig())
	spawned := f.spawn(t, 0, 0)
	assert.Equal(t, movement.PhaseIdle, spawned.Phase)

	resp := f.do(t, http.MethodPost, fmt.Sprintf("/api/vessels/%s/move", spawned.ID), MoveRequest{X: 100})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moved := decodeBody[fleet.Snapshot](t, resp)
	assert.Equal(t, movement.PhaseStraight, moved.Phase)
	assert.Equal(t, physics.V2(100, 0), moved.Destination)

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/vessels/%s/predict?at=%d", spawned.ID, t0+1000), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pred := decodeBody[PredictResponse](t, resp)
	assert.InDelta(t, 50, pred.Position.X, 1e-9)
	assert.Equal(t, t0+1000, pred.At)

	f.clock.Set(moved.ArrivesAt)
	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/vessels/%s?at=%d", spawned.ID, moved.ArrivesAt), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	done := decodeBody[fleet.Snapshot](t, resp)
	assert.Equal(t, physics.V2(100, 0), done.Position)
	assert.Equal(t, movement.PhaseIdle, done.Phase)

	resp = f.do(t, http.MethodGet, "/api/vessels", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]fleet.Snapshot](t, resp), 1)

	resp = f.do(t, http.MethodDelete, "/api/vessels/"+spawned.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodDelete, "/api/vessels/"+spawned.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFutureReadsLeaveVesselMidPath(t *testing.T) {
	f := newFixture(t, DefaultServerConfig())
	spawned := f.spawn(t, 0, 0)
	f.do(t, http.MethodPost, fmt.Sprintf("/api/vessels/%s/move", spawned.ID), MoveRequest{X: 1000})

	future := t0 + movement.Week
	resp := f.do(t, http.MethodGet, fmt.Sprintf("/api/vessels/%s?at=%d", spawned.ID, future), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ahead := decodeBody[fleet.Snapshot](t, resp)
	assert.Equal(t, physics.V2(1000, 0), ahead.Position)
	assert.Equal(t, movement.PhaseStraight, ahead.Phase)

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/vessels?at=%d", future), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/vessels/%s/predict?at=%d", spawned.ID, t0+1000), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pred := decodeBody[PredictResponse](t, resp)
	assert.InDelta(t, 50, pred.Position.X, 1e-9)

	f.clock.Advance(1000)
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/vessels/%s/move", spawned.ID), MoveRequest{X: 1000})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moved := decodeBody[fleet.Snapshot](t, resp)
	assert.InDelta(t, 50, moved.Position.X, 1e-9)
}

func TestHalt(t *testing.T) {
	f := newFixture(t, DefaultServerConfig())
	spawned := f.spawn(t, 0, 0)
	f.do(t, http.MethodPost, fmt.Sprintf("/api/vessels/%s/move", spawned.ID), MoveRequest{X: 100})

	f.clock.Advance(1000)
	resp := f.do(t, http.MethodPost, fmt.Sprintf("/api/vessels/%s/halt", spawned.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	halted := decodeBody[fleet.Snapshot](t, resp)
	assert.Equal(t, movement.PhaseIdle, halted.Phase)
	assert.InDelta(t, 50, halted.Position.X, 1e-9)
}

func TestRequestErrors(t *testing.T) {
	f := newFixture(t, DefaultServerConfig())
	spawned := f.spawn(t, 0, 0)
	missing := "00000000-0000-0000-0000-000000000001"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"bad id", http.MethodGet, "/api/vessels/nope", nil, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/vessels/" + missing, nil, http.StatusNotFound},
		{"bad timestamp", http.MethodGet, "/api/vessels/" + spawned.ID.String() + "?at=soon", nil, http.StatusBadRequest},
		{"unknown class", http.MethodPost, "/api/vessels", SpawnRequest{Class: "dreadnought"}, http.StatusBadRequest},
		{"bad body", http.MethodPost, "/api/vessels/" + spawned.ID.String() + "/move", "x", http.StatusBadRequest},
		{"move unknown", http.MethodPost, "/api/vessels/" + missing + "/move", MoveRequest{}, http.StatusNotFound},
		{"wrong method", http.MethodPut, "/api/vessels", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestStartStop(t *testing.T) {
	clock := movement.NewManualClock(t0)
	registry, err := fleet.NewRegistry(fleet.Config{Classes: []fleet.Class{{Name: "corvette", Speed: 10, TurnAccel: 1}}},
		clock, nil, nil, nil)
	require.NoError(t, err)

	cfg := DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	s := NewServer(cfg, registry, bus.New(), clock, nil)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(ctx), ErrServerAlreadyRunning)

	resp, err := http.Get("http://" + s.Addr() + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(ctx), ErrServerNotRunning)
	assert.ErrorIs(t, s.Start(ctx), ErrServerClosed)
}

func TestStartFailsOnBadAddress(t *testing.T) {
	registry, err := fleet.NewRegistry(fleet.Config{}, nil, nil, nil, nil)
	require.NoError(t, err)

	cfg := DefaultServerConfig()
	cfg.ListenAddr = "256.0.0.1:bad"
	s := NewServer(cfg, registry, nil, nil, nil)
	assert.ErrorIs(t, s.Start(context.Background()), ErrListenerFailed)
	assert.False(t, s.IsRunning())
}

type failingBus struct {
	bus.EventBus
	err error
}

func (b failingBus) Unsubscribe(bus.Subscription) error { return b.err }

func TestStopLogsBusFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := log.FromZap(zap.New(core), log.LevelWarn)

	registry, err := fleet.NewRegistry(fleet.Config{}, nil, nil, nil, nil)
	require.NoError(t, err)

	cfg := DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	s := NewServer(cfg, registry, failingBus{EventBus: bus.New(), err: errors.New("bus gone")}, nil, logger)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	entries := logs.FilterMessage("Failed to unsubscribe from movement events").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bus gone", entries[0].ContextMap()["error"])

	s.observer.OnDelivered(movement.EventArrived, 2, errors.New("socket closed"), 12)
	assert.Equal(t, 1, logs.FilterMessage("Movement event delivery failed").Len())

	s.observer.OnDelivered(movement.EventArrived, 2, nil, 12)
	assert.Equal(t, 1, logs.FilterMessage("Movement event delivery failed").Len())
}
