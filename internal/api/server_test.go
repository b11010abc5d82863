package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/neasmart-core/internal/infrastructure/logging"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/neasmart-core/internal/installation"
	"github.com/nerrad567/neasmart-core/internal/session"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Session: env.session, Controller: env.srv.controller, Store: env.store}},
		{"no session", Deps{Logger: logging.Discard(), Controller: env.srv.controller, Store: env.store}},
		{"no controller", Deps{Logger: logging.Discard(), Session: env.session, Store: env.store}},
		{"no store", Deps{Logger: logging.Discard(), Session: env.session, Controller: env.srv.controller}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}

	env.session.mu.Lock()
	env.session.ready = false
	env.session.mu.Unlock()

	rec = env.do(http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status when not ready = %d, want 503", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	env.srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("X-Request-ID = %q, want abc", got)
	}
}

func TestListInstallations(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/installations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Installations []installationView `json:"installations"`
		Count         int                `json:"count"`
	}
	decode(t, rec, &body)
	if body.Count != 1 || len(body.Installations) != 1 {
		t.Fatalf("count = %d, want 1", body.Count)
	}
	in := body.Installations[0]
	if in.Unique != "INST-A" {
		t.Errorf("Unique = %q, want INST-A", in.Unique)
	}
	if in.OperationModeName != "unknown" {
		t.Errorf("OperationModeName = %q, want unknown", in.OperationModeName)
	}
	if in.GlobalEnergyLevelName != "present" {
		t.Errorf("GlobalEnergyLevelName = %q, want present", in.GlobalEnergyLevelName)
	}
}

func TestGetInstallation(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodGet, "/api/v1/installations/INST-A", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/v1/installations/NOPE", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status for unknown = %d, want 404", rec.Code)
	}
}

func TestListZones(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query    string
		wantTemp float64
		wantUnit string
	}{
		{"", 21.1, "C"},
		{"?unit=c", 21.1, "C"},
		{"?unit=F", 70, "F"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/api/v1/zones"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var body struct {
				Zones []zoneView `json:"zones"`
				Count int        `json:"count"`
			}
			decode(t, rec, &body)
			if body.Count != 2 {
				t.Fatalf("count = %d, want 2", body.Count)
			}

			z := body.Zones[0]
			if z.Unit != tt.wantUnit {
				t.Errorf("Unit = %q, want %q", z.Unit, tt.wantUnit)
			}
			if z.Temperature == nil || *z.Temperature != tt.wantTemp {
				t.Errorf("Temperature = %v, want %v", z.Temperature, tt.wantTemp)
			}
			if z.Installation != "INST-A" {
				t.Errorf("Installation = %q, want INST-A", z.Installation)
			}
			if z.EnergyLevel != "present" {
				t.Errorf("EnergyLevel = %q, want present", z.EnergyLevel)
			}

			if empty := body.Zones[1]; empty.Temperature != nil || empty.Humidity != nil {
				t.Errorf("zone without channels has readings: %+v", empty)
			}
		})
	}

	if rec := env.do(http.MethodGet, "/api/v1/zones?unit=K", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status for unit K = %d, want 400", rec.Code)
	}
}

func TestGetZone(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/zones/1", http.StatusOK},
		{"/api/v1/zones/9", http.StatusNotFound},
		{"/api/v1/zones/x", http.StatusBadRequest},
		{"/api/v1/zones/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rec := env.do(http.MethodGet, tt.path, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSetTemperature(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/api/v1/zones/1/temperature", `{"temperature": 21.5}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body.String())
	}
	var body acceptedResponse
	decode(t, rec, &body)
	if body.MessageID != 1 {
		t.Errorf("MessageID = %d, want 1", body.MessageID)
	}

	got := env.session.publishedTemplates()
	if len(got) != 1 || got[0] != mqtt.ClientInstallation {
		t.Errorf("published = %v, want [%s]", got, mqtt.ClientInstallation)
	}

	z, err := env.store.Zone(1)
	if err != nil {
		t.Fatalf("Zone() error = %v", err)
	}
	if z.Channels[0].TargetTemperature != 707 {
		t.Errorf("TargetTemperature = %d, want 707", z.Channels[0].TargetTemperature)
	}
}

func TestSetTemperature_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		body  string
		setup func(*fakeSession)
		want  int
	}{
		{"missing temperature", "/api/v1/zones/1/temperature", `{}`, nil, http.StatusBadRequest},
		{"bad json", "/api/v1/zones/1/temperature", `{`, nil, http.StatusBadRequest},
		{"bad unit", "/api/v1/zones/1/temperature", `{"temperature": 20, "unit": "K"}`, nil, http.StatusBadRequest},
		{"unknown zone", "/api/v1/zones/9/temperature", `{"temperature": 20}`, nil, http.StatusNotFound},
		{
			"no referentials", "/api/v1/zones/1/temperature", `{"temperature": 20}`,
			func(f *fakeSession) { f.dict = nil },
			http.StatusServiceUnavailable,
		},
		{
			"publish failures", "/api/v1/zones/1/temperature", `{"temperature": 20}`,
			func(f *fakeSession) { f.publishErr = session.ErrPublishFailures },
			http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env.session)
			}
			if rec := env.do(http.MethodPut, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestSetZoneEnergyLevel(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodPut, "/api/v1/zones/1/energy-level", `{"level": "absent"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	z, err := env.store.Zone(1)
	if err != nil {
		t.Fatalf("Zone() error = %v", err)
	}
	if z.Channels[0].EnergyLevel != 1 {
		t.Errorf("EnergyLevel = %d, want 1", z.Channels[0].EnergyLevel)
	}

	if rec := env.do(http.MethodPut, "/api/v1/zones/1/energy-level", `{"level": "sleepy"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("status for unknown level = %d, want 400", rec.Code)
	}
}

func TestSetOperationMode(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodPut, "/api/v1/installations/operation-mode", `{"mode": "cooling_only"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	in, err := env.store.Installation("INST-A")
	if err != nil {
		t.Fatalf("Installation() error = %v", err)
	}
	if in.OperatingMode != 2 {
		t.Errorf("OperatingMode = %d, want 2", in.OperatingMode)
	}

	if rec := env.do(http.MethodPut, "/api/v1/installations/operation-mode", `{"mode": "unknown"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("status for unknown mode = %d, want 400", rec.Code)
	}
}

func TestSetGlobalEnergyLevel(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodPut, "/api/v1/installations/energy-level", `{"level": "holiday"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if got := env.session.publishedTemplates(); len(got) != 1 {
		t.Errorf("published = %v, want one request", got)
	}
}

func TestHandleSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body SessionResponse
	decode(t, rec, &body)
	if body.ClientID != "app-test" || !body.Ready || body.Disconnects != 2 {
		t.Errorf("body = %+v", body)
	}
	if len(body.Tasks) != 2 {
		t.Errorf("Tasks = %v, want 2 tasks", body.Tasks)
	}
}

func TestRefreshLiveData(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodPost, "/api/v1/session/live", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if env.session.liveRequests != 1 {
		t.Errorf("liveRequests = %d, want 1", env.session.liveRequests)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status without gatherer = %d, want 404", rec.Code)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "neasmart_test_total", Help: "test"}))
	env.srv.gatherer = reg

	rec := env.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "neasmart_test_total 0") {
		t.Errorf("body does not contain the counter:\n%s", rec.Body.String())
	}
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{installation.ErrNotReady, http.StatusServiceUnavailable},
		{installation.ErrZoneNotFound, http.StatusNotFound},
		{session.ErrNotAuthenticated, http.StatusServiceUnavailable},
		{mqtt.ErrNotConnected, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t)

	// Rebuilt from raw installs only, no user record
	if env.store.User() != nil {
		t.Fatal("test store unexpectedly has a user")
	}
	got, ok := env.srv.snapshot(ChannelInstallationsUpdated)
	if !ok {
		t.Fatal("snapshot() ok = false for a store with installations")
	}
	if list, _ := got.([]installation.Installation); len(list) != 1 {
		t.Errorf("snapshot() = %#v, want one installation", got)
	}

	if _, ok := env.srv.snapshot("zones.updated"); ok {
		t.Error("snapshot() ok = true for an unknown channel")
	}

	empty := &Server{store: installation.NewStore()}
	if _, ok := empty.snapshot(ChannelInstallationsUpdated); ok {
		t.Error("snapshot() ok = true before any installation is known")
	}
}

func TestWebSocket_InstallationUpdates(t *testing.T) {
	env := newTestEnv(t)

	ts := httptest.NewServer(env.srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	read := func() WSMessage {
		t.Helper()
		//nolint:errcheck // test deadline
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return msg
	}

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{ChannelInstallationsUpdated}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	if msg := read(); msg.Type != WSTypeResponse || msg.ID != "1" {
		t.Fatalf("first message = %+v, want subscribe response", msg)
	}
	if msg := read(); msg.Type != WSTypeEvent || msg.EventType != ChannelInstallationsUpdated {
		t.Fatalf("second message = %+v, want snapshot event", msg)
	}

	if err := env.store.UpdateLiveData("INST-A", installation.LiveTelemetry{PumpOn: true}); err != nil {
		t.Fatalf("UpdateLiveData() error = %v", err)
	}

	msg := read()
	if msg.EventType != ChannelInstallationsUpdated {
		t.Fatalf("event = %+v", msg)
	}
	list, ok := msg.Payload.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("payload = %#v, want one installation", msg.Payload)
	}
	in, _ := list[0].(map[string]any)
	if in["pumpOn"] != true {
		t.Errorf("pumpOn = %v, want true", in["pumpOn"])
	}

	if env.srv.hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", env.srv.hub.ClientCount())
	}
}

func TestWebSocket_UnknownType(t *testing.T) {
	env := newTestEnv(t)

	ts := httptest.NewServer(env.srv.buildRouter())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(WSMessage{Type: "dance", ID: "7"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != WSTypeError || msg.ID != "7" {
		t.Errorf("message = %+v, want error reply", msg)
	}
}
