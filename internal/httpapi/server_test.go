package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/trainsim/internal/app"
	"github.com/san-kum/trainsim/internal/config"
	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/integrators"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/sim"
	"github.com/san-kum/trainsim/internal/storage"
	"github.com/san-kum/trainsim/internal/store"
)

// gatedIntegrator blocks every step until open is called.
type gatedIntegrator struct {
	integrators.Integrator
	gate chan struct{}
	once sync.Once
}

func (g *gatedIntegrator) Step(x dynamo.State, u dynamo.Command, seg params.Segment, p params.Snapshot, dt float64) (dynamo.State, dynamo.Forces, error) {
	<-g.gate
	return g.Integrator.Step(x, u, seg, p, dt)
}

func (g *gatedIntegrator) open() {
	g.once.Do(func() { close(g.gate) })
}

type fixture struct {
	t     *testing.T
	app   *app.Context
	gate  *gatedIntegrator
	srv   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gate := &gatedIntegrator{Integrator: integrators.NewSemiImplicitEuler(), gate: make(chan struct{})}
	archive := storage.New(t.TempDir())
	require.NoError(t, archive.Init())

	s, err := sim.New(sim.WithIntegrator(gate), sim.WithArchive(archive))
	require.NoError(t, err)

	c := &app.Context{
		Config:  config.DefaultConfig(),
		Params:  params.NewStore(),
		Sim:     s,
		Archive: archive,
		Logger:  log.New(io.Discard),
	}
	srv := httptest.NewServer(New(c, nil).Handler())
	f := &fixture{t: t, app: c, gate: gate, srv: srv}
	t.Cleanup(func() {
		gate.open()
		_ = s.Wait(context.Background())
		srv.Close()
	})
	return f
}

func (f *fixture) do(method, path string, body any) *http.Response {
	f.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(f.t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	require.NoError(f.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// finish lets the current run complete and waits for it.
func (f *fixture) finish() {
	f.gate.open()
	require.NoError(f.t, f.app.Sim.Wait(context.Background()))
}

func TestHealthAndStatus(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, resp)["status"])

	resp = f.do(http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "idle", body["simulation"])
}

func TestParameters_GroupRoundTrip(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodGet, "/api/parameters/train", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	train := config.GetPreset("metro").Train
	resp = f.do(http.MethodPost, "/api/parameters/train", train)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(http.MethodGet, "/api/parameters/train", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[params.TrainParameters](t, resp)
	assert.Equal(t, train, got)
}

func TestParameters_Invalid(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.LoadPreset("metro"))

	resp := f.do(http.MethodPost, "/api/parameters/electrical", map[string]any{
		"supply_voltage_v":    -1,
		"rated_power_w":       1e6,
		"traction_efficiency": 1.5,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeBody[ErrorBody](t, resp)
	assert.NotEmpty(t, body.Error)
	fields := make([]string, len(body.Fields))
	for i, fe := range body.Fields {
		fields[i] = fe.Field
	}
	assert.Contains(t, fields, "supply_voltage_v")
	assert.Contains(t, fields, "traction_efficiency")

	elec, err := f.app.Params.Electrical()
	require.NoError(t, err)
	assert.Equal(t, 750.0, elec.SupplyVoltageV, "rejected update must keep the old values")
}

func TestParameters_MalformedBody(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodPost, "/api/parameters/track", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(http.MethodPost, "/api/parameters/track", `{"segmentz": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParameters_FullSet(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodGet, "/api/parameters", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	empty := decodeBody[parameterSet](t, resp)
	assert.Nil(t, empty.Train)
	assert.Nil(t, empty.Track)

	resp = f.do(http.MethodPost, "/api/parameters", config.GetPreset("tram"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	set := decodeBody[parameterSet](t, resp)
	require.NotNil(t, set.Running)
	assert.Equal(t, []float64{400, 900}, set.Running.StopPositionsM)
}

func TestPresets(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.ListPresets(), decodeBody[map[string][]string](t, resp)["presets"])

	resp = f.do(http.MethodPost, "/api/presets/maglev", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(http.MethodPost, "/api/presets/commuter", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	set := decodeBody[parameterSet](t, resp)
	require.NotNil(t, set.Train)
	assert.Equal(t, 400000.0, set.Train.MassKg)
}

func TestSimulation_NotConfigured(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodPost, "/api/simulation/start", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeBody[ErrorBody](t, resp)
	assert.Len(t, body.Fields, 4)
}

func TestSimulation_IdleErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/simulation/results", http.StatusNotFound},
		{http.MethodPost, "/api/export/results", http.StatusNotFound},
		{http.MethodGet, "/api/export/chart.png", http.StatusNotFound},
		{http.MethodPost, "/api/simulation/cancel", http.StatusConflict},
		{http.MethodPost, "/api/simulation/reset", http.StatusConflict},
		{http.MethodGet, "/api/runs/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := f.do(tt.method, tt.path, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, decodeBody[ErrorBody](t, resp).Error)
		})
	}
}

func TestSimulation_Lifecycle(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.LoadPreset("scenario-a"))

	resp := f.do(http.MethodPost, "/api/simulation/start", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	runID := decodeBody[map[string]string](t, resp)["run_id"]
	require.NotEmpty(t, runID)

	resp = f.do(http.MethodPost, "/api/simulation/start", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(http.MethodPost, "/api/simulation/reset", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(http.MethodGet, "/api/simulation/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeBody[sim.Status](t, resp)
	assert.Equal(t, dynamo.Running, st.State)
	assert.Equal(t, runID, st.RunID)

	f.finish()

	resp = f.do(http.MethodGet, "/api/simulation/status", nil)
	st = decodeBody[sim.Status](t, resp)
	assert.Equal(t, dynamo.Completed, st.State)
	assert.Equal(t, 1.0, st.Progress)

	resp = f.do(http.MethodGet, "/api/simulation/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeBody[store.Result](t, resp)
	assert.Equal(t, runID, res.RunID)
	assert.True(t, res.Final)
	require.NotEmpty(t, res.Samples)
	assert.InDelta(t, 1000, res.Samples[len(res.Samples)-1].PositionM, 1e-6)

	resp = f.do(http.MethodPost, "/api/export/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="simulation_`+runID+`.csv"`, resp.Header.Get("Content-Disposition"))
	samples, err := store.ParseCSV(resp.Body)
	require.NoError(t, err)
	assert.Len(t, samples, len(res.Samples))

	resp = f.do(http.MethodPost, "/api/simulation/reset", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs := decodeBody[map[string][]storage.RunMetadata](t, resp)["runs"]
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)

	resp = f.do(http.MethodGet, "/api/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, len(res.Samples), decodeBody[storage.RunMetadata](t, resp).Samples)

	resp = f.do(http.MethodGet, "/api/runs/"+runID+"/samples.csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	archived, err := store.ParseCSV(resp.Body)
	require.NoError(t, err)
	assert.Len(t, archived, len(res.Samples))
}

func TestSimulation_Cancel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.LoadPreset("freight"))

	resp := f.do(http.MethodPost, "/api/simulation/start", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = f.do(http.MethodPost, "/api/simulation/cancel", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	f.finish()
	assert.Eventually(t, func() bool {
		return f.app.Sim.Status().State == dynamo.Cancelled
	}, time.Second, 10*time.Millisecond)
}

func TestExportChart(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.LoadPreset("scenario-a"))
	_, err := f.app.Start()
	require.NoError(t, err)
	f.finish()

	tests := []struct {
		path, contentType string
		status            int
	}{
		{"/api/export/chart.png", "image/png", http.StatusOK},
		{"/api/export/chart.svg", "image/svg+xml", http.StatusOK},
		{"/api/export/chart.html", "text/html; charset=utf-8", http.StatusOK},
		{"/api/export/chart.gif", "application/json", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := f.do(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
		})
	}
}

func TestRoutes(t *testing.T) {
	f := newFixture(t)
	routes := New(f.app, nil).Routes()

	assert.Contains(t, routes, "GET  /status")
	assert.Contains(t, routes, "POST /api/simulation/start")
	assert.Contains(t, routes, "GET  /api/parameters")
	assert.Contains(t, routes, "POST /api/export/results")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	resp := f.do(http.MethodOptions, "/api/simulation/start", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
