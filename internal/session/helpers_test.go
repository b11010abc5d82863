package session

import (
	"context"
	"sync"
	"testing"

	"github.com/nerrad567/neasmart-core/internal/directory"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/config"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/neasmart-core/internal/installation"
)

const testEmail = "user@example.com"

// mockTransport records every call. Open does not fire OnConnect; tests
// call connect() to simulate the broker's CONNACK.
type mockTransport struct {
	mu         sync.Mutex
	opens      []mqtt.Identity
	handlers   mqtt.Handlers
	connected  bool
	openErr    error
	publishErr error
	calls      []string
	published  []published
	closes     int
	nextID     uint16
}

type published struct {
	topic   string
	payload []byte
}

func (m *mockTransport) Open(id mqtt.Identity, h mqtt.Handlers) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens = append(m.opens, id)
	if m.openErr != nil {
		return m.openErr
	}
	m.handlers = h
	m.connected = true
	return nil
}

func (m *mockTransport) Subscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "sub:"+topic)
	if !m.connected {
		return mqtt.ErrNotConnected
	}
	return nil
}

func (m *mockTransport) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "unsub:"+topic)
	if !m.connected {
		return mqtt.ErrNotConnected
	}
	return nil
}

func (m *mockTransport) Publish(topic string, payload []byte) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return 0, m.publishErr
	}
	m.nextID++
	m.published = append(m.published, published{topic: topic, payload: payload})
	return m.nextID, nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.connected = false
	m.calls = append(m.calls, "close")
	return nil
}

func (m *mockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockTransport) connect() {
	m.mu.Lock()
	h := m.handlers
	m.connected = true
	m.mu.Unlock()
	if h.OnConnect != nil {
		h.OnConnect()
	}
}

func (m *mockTransport) lose(err error) {
	m.mu.Lock()
	h := m.handlers
	m.connected = false
	m.mu.Unlock()
	if h.OnConnectionLost != nil {
		h.OnConnectionLost(err)
	}
}

func (m *mockTransport) setPublishErr(err error) {
	m.mu.Lock()
	m.publishErr = err
	m.mu.Unlock()
}

func (m *mockTransport) resetCalls() {
	m.mu.Lock()
	m.calls = nil
	m.published = nil
	m.mu.Unlock()
}

func (m *mockTransport) snapshotCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockTransport) snapshotPublished() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.published...)
}

func (m *mockTransport) snapshotOpens() []mqtt.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mqtt.Identity(nil), m.opens...)
}

func (m *mockTransport) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// mockDirectory returns canned responses and counts calls.
type mockDirectory struct {
	mu sync.Mutex

	token   directory.TokenData
	user    *installation.User
	authErr error

	refreshed  directory.TokenData
	refreshErr error

	stateUser *installation.User
	stateErr  error
	lastState directory.UserStateRequest

	checkOK  bool
	checkErr error

	authCalls    int
	refreshCalls int
	stateCalls   int
}

func (d *mockDirectory) CheckCredentials(_ context.Context, _, _ string) (bool, error) {
	return d.checkOK, d.checkErr
}

func (d *mockDirectory) Authenticate(_ context.Context, _, _ string) (directory.TokenData, *installation.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.authCalls++
	if d.authErr != nil {
		return directory.TokenData{}, nil, d.authErr
	}
	return d.token, d.user, nil
}

func (d *mockDirectory) RefreshToken(_ context.Context, _ string) (directory.TokenData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshCalls++
	if d.refreshErr != nil {
		return directory.TokenData{}, d.refreshErr
	}
	return d.refreshed, nil
}

func (d *mockDirectory) ReadUserState(_ context.Context, req directory.UserStateRequest) (*installation.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateCalls++
	d.lastState = req
	if d.stateErr != nil {
		return nil, d.stateErr
	}
	return d.stateUser, nil
}

func (d *mockDirectory) counts() (auth, refresh, state int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.authCalls, d.refreshCalls, d.stateCalls
}

func testConfig() *config.Config {
	return &config.Config{
		Account: config.AccountConfig{Email: testEmail, Password: "secret"},
		Broker: config.BrokerConfig{
			AppUsername:             "app",
			Authorizer:              "app-front",
			ClientIDPrefix:          "app-",
			Reconnect:               config.ReconnectConfig{InitialDelay: 30, MaxDelay: 300, MaxDisconnects: 5},
			PublishFailureThreshold: 5,
		},
		Schedule: config.ScheduleConfig{
			UserPoll:           3600,
			LiveData:           3600,
			Referentials:       3600,
			TokenRefreshMargin: 300,
		},
	}
}

// testUser has one installation with one group, one zone and one channel.
func testUser() *installation.User {
	return &installation.User{
		Email:          testEmail,
		DefaultInstall: "INST-A",
		TransactionID:  "tx-1",
		Installs: []installation.RawInstall{{
			ID:        "id-a",
			Unique:    "INST-A",
			Hash:      "hash-a",
			Name:      "Home",
			Connected: true,
			Groups: []installation.RawGroup{{
				ID:   "g-1",
				Name: "Ground floor",
				Zones: []installation.RawZone{{
					ID:     "z-1",
					Name:   "Living room",
					Number: 1,
					Channels: []installation.RawChannel{{
						ID:           "ch-1",
						SetpointUsed: 680,
						TempZone:     700,
						ModeUsed:     0,
					}},
				}},
			}},
		}},
	}
}

func testToken() directory.TokenData {
	return directory.TokenData{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresIn: 3600}
}

// newTestSession builds a session over mocks. It is closed on cleanup.
func newTestSession(t *testing.T) (*Session, *mockTransport, *mockDirectory) {
	t.Helper()

	tr := &mockTransport{}
	dir := &mockDirectory{
		token:     testToken(),
		user:      testUser(),
		refreshed: directory.TokenData{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 3600},
	}

	s, err := New(Options{
		Config:      testConfig(),
		Directory:   dir,
		Transport:   tr,
		NewClientID: func() string { return "app-test" },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)

	return s, tr, dir
}
