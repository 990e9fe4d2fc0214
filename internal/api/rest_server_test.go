package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/auth"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/sim"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block/implementations"
)

type testServer struct {
	rs  *RestServer
	sim *sim.Simulation
}

func newTestServer(t *testing.T, signer *auth.Signer) *testServer {
	t.Helper()
	reg, _, err := implementations.NewDefaultRegistry()
	require.NoError(t, err)

	w := world.New(reg, world.Config{})
	require.NoError(t, w.LoadChunk(context.Background(), vec.Vec3{}))

	logger := logging.NewConsoleLogger("api-test", logging.ERROR)
	s := sim.New(w, sim.Options{Paused: true, Logger: logger})
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})

	promReg := prometheus.NewRegistry()
	rs := NewRestServer(Config{
		Sim:        s,
		Registry:   reg,
		Signer:     signer,
		Registerer: promReg,
		Gatherer:   promReg,
		Logger:     logger,
	})
	return &testServer{rs: rs, sim: s}
}

func (ts *testServer) request(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.rs.Handler().ServeHTTP(rec, req)

	var resp GenericResponse
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func dataAs[T any](t *testing.T, resp GenericResponse) T {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec, resp := ts.request(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	data := dataAs[map[string]interface{}](t, resp)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, true, data["paused"])
}

func TestSetAndGetBlock(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.request(t, http.MethodPut, "/api/blocks/1/1/1", SetBlockRequest{State: "stone"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := dataAs[BlockView](t, resp)
	assert.Equal(t, "stone", view.State)
	assert.True(t, view.Changed)
	assert.Len(t, view.Sturdy, 6)

	rec, resp = ts.request(t, http.MethodGet, "/api/blocks/1/1/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stone", dataAs[BlockView](t, resp).State)

	rec, resp = ts.request(t, http.MethodPut, "/api/blocks/2/1/1",
		SetBlockRequest{State: "iron_bars[waterlogged=true]", Flags: "notify_neighbors|notify_clients"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = dataAs[BlockView](t, resp)
	assert.Equal(t, "water", view.Fluid)

	rec, resp = ts.request(t, http.MethodGet, "/api/blocks/100/1/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = dataAs[BlockView](t, resp)
	assert.False(t, view.Loaded)
	assert.Equal(t, "void_air", view.State)
}

func TestSetBlockErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"bad coordinate", "/api/blocks/a/1/1", SetBlockRequest{State: "stone"}, http.StatusBadRequest},
		{"unknown block", "/api/blocks/1/1/1", SetBlockRequest{State: "marble"}, http.StatusBadRequest},
		{"unknown flag", "/api/blocks/1/1/1", SetBlockRequest{State: "stone", Flags: "loud"}, http.StatusBadRequest},
		{"missing state", "/api/blocks/1/1/1", map[string]string{}, http.StatusBadRequest},
		{"unloaded chunk", "/api/blocks/100/1/1", SetBlockRequest{State: "stone"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := ts.request(t, http.MethodPut, tt.path, tt.body, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestPlaceAndDestroy(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, _ := ts.request(t, http.MethodPut, "/api/blocks/1/1/1", SetBlockRequest{State: "stone"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := ts.request(t, http.MethodPost, "/api/blocks/1/2/1/place", PlaceBlockRequest{Type: "torch"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "torch", dataAs[BlockView](t, resp).State)

	rec, _ = ts.request(t, http.MethodPost, "/api/blocks/5/5/5/place", PlaceBlockRequest{Type: "torch"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code, "без опоры факел не ставится")

	rec, _ = ts.request(t, http.MethodPost, "/api/blocks/5/5/5/place", PlaceBlockRequest{Type: "torch", Face: "sideways"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = ts.request(t, http.MethodPost, "/api/blocks/1/1/1/destroy", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	_, resp = ts.request(t, http.MethodGet, "/api/blocks/1/2/1", nil, "")
	assert.Equal(t, "air", dataAs[BlockView](t, resp).State, "факел без опоры разрушен")

	_, resp = ts.request(t, http.MethodPost, "/api/blocks/1/1/1/destroy", nil, "")
	assert.False(t, resp.Success, "воздух не разрушается")
}

func TestScheduleAndListTicks(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, _ := ts.request(t, http.MethodPost, "/api/ticks", ScheduleTickRequest{Pos: vec.Vec3{X: 1, Y: 1, Z: 1}, Block: "sand", Delay: 4}, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	rec, _ = ts.request(t, http.MethodPost, "/api/ticks", ScheduleTickRequest{Pos: vec.Vec3{X: 2, Y: 1, Z: 1}, Fluid: "water", Delay: 1}, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	for _, bad := range []ScheduleTickRequest{
		{Block: "sand", Fluid: "water"},
		{},
		{Block: "marble"},
		{Fluid: "empty"},
		{Block: "sand", Priority: 9},
	} {
		rec, _ = ts.request(t, http.MethodPost, "/api/ticks", bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%+v", bad)
	}

	rec, resp := ts.request(t, http.MethodGet, "/api/ticks?chunk=0,0,0", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	ticks := dataAs[[]world.PendingTick](t, resp)
	require.Len(t, ticks, 2)
	assert.Equal(t, "sand", ticks[0].Target)
	assert.Equal(t, int64(4), ticks[0].Due)
	assert.Equal(t, "water", ticks[1].Target)

	_, resp = ts.request(t, http.MethodGet, "/api/ticks?chunk=5,0,0", nil, "")
	assert.Empty(t, dataAs[[]world.PendingTick](t, resp))

	rec, _ = ts.request(t, http.MethodGet, "/api/ticks?chunk=1,2", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChunks(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, _ := ts.request(t, http.MethodPost, "/api/chunks/1/0/0/load", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, resp := ts.request(t, http.MethodGet, "/api/chunks", nil, "")
	assert.Equal(t, []vec.Vec3{{X: 0}, {X: 1}}, dataAs[[]vec.Vec3](t, resp))

	rec, resp = ts.request(t, http.MethodGet, "/api/chunks/1/0/0", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataAs[world.ChunkData](t, resp)
	assert.Equal(t, []string{"air"}, data.Palette)

	rec, _ = ts.request(t, http.MethodPost, "/api/chunks/1/0/0/unload", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.request(t, http.MethodGet, "/api/chunks/1/0/0", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.request(t, http.MethodPost, "/api/chunks/0/1000/0/load", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "вне вертикальных границ")
}

func TestRegistry(t *testing.T) {
	ts := newTestServer(t, nil)
	rec, resp := ts.request(t, http.MethodGet, "/api/registry", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	types := dataAs[[]TypeView](t, resp)
	require.NotEmpty(t, types)
	assert.Equal(t, "air", types[0].Name)

	var bars *TypeView
	for i := range types {
		if types[i].Name == implementations.IronBarsName {
			bars = &types[i]
		}
	}
	require.NotNil(t, bars)
	assert.Equal(t, []string{"false", "true"}, bars.Properties["waterlogged"])
	assert.Equal(t, 32, bars.States)
}

func TestSimControl(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.request(t, http.MethodPost, "/api/sim/step", StepRequest{Ticks: 3}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(3), dataAs[world.TickStats](t, resp).GameTime)

	rec, _ = ts.request(t, http.MethodPost, "/api/sim/step", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.request(t, http.MethodPost, "/api/sim/step", StepRequest{Ticks: maxStepTicks + 1}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, resp = ts.request(t, http.MethodGet, "/api/sim?digest=true", nil, "")
	st := dataAs[SimStatus](t, resp)
	assert.Equal(t, int64(4), st.GameTime)
	assert.True(t, st.Paused)
	assert.Equal(t, 1, st.LoadedChunks)
	assert.Len(t, st.Digest, 64)

	ts.request(t, http.MethodPost, "/api/sim/resume", nil, "")
	assert.False(t, ts.sim.Paused())
	ts.request(t, http.MethodPost, "/api/sim/pause", nil, "")
	assert.True(t, ts.sim.Paused())

	rec, _ = ts.request(t, http.MethodPost, "/api/sim/save", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStoppedSimulation(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.sim.Stop()

	rec, _ := ts.request(t, http.MethodGet, "/api/blocks/1/1/1", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec, _ = ts.request(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuth(t *testing.T) {
	secret, err := auth.GenerateSecureSecret()
	require.NoError(t, err)
	signer, err := auth.NewSigner(secret, time.Hour)
	require.NoError(t, err)
	admin, err := signer.Issue("root", true)
	require.NoError(t, err)
	viewer, err := signer.Issue("viewer", false)
	require.NoError(t, err)

	ts := newTestServer(t, signer)
	body := SetBlockRequest{State: "stone"}

	rec, _ := ts.request(t, http.MethodGet, "/api/blocks/1/1/1", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = ts.request(t, http.MethodGet, "/api/blocks/1/1/1", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = ts.request(t, http.MethodGet, "/api/blocks/1/1/1", nil, viewer)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.request(t, http.MethodPut, "/api/blocks/1/1/1", body, viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = ts.request(t, http.MethodPut, "/api/blocks/1/1/1", body, admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.request(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code, "health без авторизации")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.request(t, http.MethodGet, "/api/registry", nil, "")

	rec := httptest.NewRecorder()
	ts.rs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ServiceName+"_http_request_duration_seconds")
}
