package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/neasmart-core/internal/controller"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/config"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/logging"
	"github.com/nerrad567/neasmart-core/internal/installation"
	"github.com/nerrad567/neasmart-core/internal/referential"
	"github.com/nerrad567/neasmart-core/internal/session"
)

// fakeSession serves both the status and the controller side.
type fakeSession struct {
	mu           sync.Mutex
	ready        bool
	dict         referential.Dictionary
	published    []string
	publishErr   error
	liveRequests int
}

func (f *fakeSession) ClientID() string         { return "app-test" }
func (f *fakeSession) Email() string            { return "user@example.com" }
func (f *fakeSession) IsAuthenticated() bool    { return f.IsReady() }
func (f *fakeSession) IsConnected() bool        { return f.IsReady() }
func (f *fakeSession) DisconnectCount() int     { return 2 }
func (f *fakeSession) PublishFailures() int     { return 0 }
func (f *fakeSession) SchedulerStopped() bool   { return false }
func (f *fakeSession) ScheduledTasks() []string { return []string{session.TaskLiveData, session.TaskUserPoll} }

func (f *fakeSession) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeSession) RefreshLiveData() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveRequests++
	return 9, nil
}

func (f *fakeSession) Publish(template string, _ any) (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return 0, f.publishErr
	}
	f.published = append(f.published, template)
	return uint16(len(f.published)), nil
}

func (f *fakeSession) Referentials() (referential.Dictionary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dict == nil {
		return nil, referential.ErrNoReferentials
	}
	return f.dict, nil
}

func (f *fakeSession) CurrentInstallation() session.CurrentInstallation {
	return session.CurrentInstallation{ID: "id-a", Unique: "INST-A"}
}

func (f *fakeSession) publishedTemplates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func testInstalls() []installation.RawInstall {
	return []installation.RawInstall{{
		ID:        "id-a",
		Unique:    "INST-A",
		Name:      "Home",
		Connected: true,
		User:      &installation.RawInstallUser{ModeUsed: 0},
		Groups: []installation.RawGroup{{
			ID:   "g-1",
			Name: "Ground",
			Zones: []installation.RawZone{
				{ID: "z-1", Name: "Kitchen", Number: 1, Channels: []installation.RawChannel{
					{ID: "ch-1", TempZone: 700, SetpointUsed: 680, Humidity: 45},
				}},
				{ID: "z-2", Name: "Empty", Number: 2},
			},
		}},
	}}
}

type testEnv struct {
	srv     *Server
	session *fakeSession
	store   *installation.Store
}

// newTestEnv builds a server over a loaded store and a ready session. The
// hub runs and store changes are relayed, but nothing listens; requests
// go through the router directly.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := installation.NewStore()
	store.Rebuild(testInstalls())

	fs := &fakeSession{
		ready: true,
		dict:  referential.Dictionary{"type": "11", "data": "12", "zone": "15", "controller": "14"},
	}

	srv, err := New(Deps{
		Config:     config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:         config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger:     logging.Discard(),
		Session:    fs,
		Controller: controller.New(fs, store),
		Store:      store,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go srv.hub.Run(ctx)
	unsubscribe := store.Subscribe(srv.broadcastInstallations)
	t.Cleanup(func() {
		unsubscribe()
		cancel()
	})

	return &testEnv{srv: srv, session: fs, store: store}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.buildRouter().ServeHTTP(rec, req)
	return rec
}
