package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/core/service"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)

type fakeState struct{}

func (fakeState) SystemState() domain.SystemState {
	return domain.SystemState{
		Energy: domain.EnergySnapshot{
			Channels:      [6]float64{1000, 500, 500, 1500, 1500, 1000},
			GridTotal:     2000,
			SolarTotal:    4000,
			LastPhaseTime: testNow,
		},
		Wallbox: domain.WallboxState{
			IsOn:           true,
			CommandedPower: 1500,
			Bounds:         domain.PowerBounds{Min: 1380, Max: 7360},
		},
		Config:     domain.ControlConfig{HeadroomPower: 300, ProtectionPower: 60},
		Telemetry:  true,
		ServerTime: testNow,
	}
}

func (fakeState) History() []domain.HistoryEntry {
	return []domain.HistoryEntry{{Grid: 2000, Solar: 4000, Wallbox: 1500, Time: testNow}}
}

type fakeLogs []string

func (l fakeLogs) Lines() []string {
	return l
}

// fakeMaster answers like the master actor and records the operator requests it gets.
type fakeMaster struct {
	mu       sync.Mutex
	healthy  bool
	requests []domain.OperatorRequest
}

func (m *fakeMaster) received() []domain.OperatorRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OperatorRequest(nil), m.requests...)
}

func (m *fakeMaster) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: m.healthy, State: "unhealthy: [telemetry]"})
	case domain.OperatorRequest:
		m.mu.Lock()
		m.requests = append(m.requests, msg)
		m.mu.Unlock()
		var err error
		switch r := msg.(type) {
		case domain.WallboxSwitchRequest:
			if r.Enable {
				err = &service.CooldownError{Remaining: 30 * time.Second}
			}
		case domain.SetProtectionPowerRequest:
			if r.PowerWatt > domain.MAX_PROTECTION_POWER {
				err = fmt.Errorf("%w: protection", service.ErrSettingOutOfRange)
			}
		}
		ctx.Respond(domain.OperatorResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
	}
}

func newTestServer(t *testing.T, healthy bool) (*Server, *fakeMaster) {
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	master := &fakeMaster{healthy: healthy}
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return master }))
	return &Server{
		streamInterval: 50 * time.Millisecond,
		rootContext:    as.Root,
		masterActor:    pid,
		state:          fakeState{},
		logs:           fakeLogs{"line one", "line two"},
		logger:         zap.Must(zap.NewDevelopment()),
	}, master
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheckHandler(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := do(t, s.RegisterRoutes(), http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())

	s, _ = newTestServer(t, false)
	rec = do(t, s.RegisterRoutes(), http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "telemetry")
}

func TestDataHandler(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := do(t, s.RegisterRoutes(), http.MethodGet, "/api/data", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))

	config := data["config"].(map[string]any)
	assert.Equal(t, 300.0, config["headroom_power"])
	assert.Equal(t, 60.0, config["protection_power"])

	status := data["status"].(map[string]any)
	assert.Equal(t, true, status["wb_on"])
	assert.Equal(t, 1500.0, status["wb_power"])
	assert.Equal(t, "single_phase", status["phase_mode"])
	assert.Equal(t, 2000.0, status["grid_total"])
	// produced 4300, consumed live |2000-1500|+1500
	assert.Equal(t, 2300.0, status["exportable"])
	assert.NotContains(t, status, "grace_deadline")

	history := data["history"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, 1500.0, history[0].(map[string]any)["wb"])
	assert.Equal(t, []any{"line one", "line two"}, data["logs"])
}

func TestSettingsHandler(t *testing.T) {
	s, master := newTestServer(t, true)
	h := s.RegisterRoutes()

	rec := do(t, h, http.MethodPost, "/api/settings", `{"headroom_power": 450}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// one invalid field rejects the whole update
	rec = do(t, h, http.MethodPost, "/api/settings", `{"headroom_power": 100, "protection_power": 9000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "out of range")

	rec = do(t, h, http.MethodPost, "/api/settings", `{"headroom_power": -30000, "protection_power": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "headroom power")
	assert.Contains(t, rec.Body.String(), "protection power")

	rec = do(t, h, http.MethodPost, "/api/settings", `{"headroom_power": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/settings", `{"headroom_power": 100, "protection_power": 200}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []domain.OperatorRequest{
		domain.SetHeadroomPowerRequest{PowerWatt: 450},
		domain.SetHeadroomPowerRequest{PowerWatt: 100},
		domain.SetProtectionPowerRequest{PowerWatt: 200},
	}, master.received())
}

func TestWallboxHandlers(t *testing.T) {
	s, master := newTestServer(t, true)
	h := s.RegisterRoutes()

	rec := do(t, h, http.MethodPost, "/api/wallbox/on", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "cooldown")

	rec = do(t, h, http.MethodPost, "/api/wallbox/off", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/wallbox/initialize", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []domain.OperatorRequest{
		domain.WallboxSwitchRequest{Enable: true},
		domain.WallboxSwitchRequest{Enable: false},
		domain.WallboxReinitializeRequest{},
	}, master.received())
}

func TestVersionAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, true)
	h := s.RegisterRoutes()

	rec := do(t, h, http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamHandler(t *testing.T) {
	s, _ := newTestServer(t, true)
	srv := httptest.NewServer(s.RegisterRoutes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		var msg streamMessageDTO
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		require.NoError(t, conn.ReadJSON(&msg))
		assert.True(t, msg.Status.WallboxOn)
		assert.Equal(t, 300, msg.Config.HeadroomPower)
	}
}
