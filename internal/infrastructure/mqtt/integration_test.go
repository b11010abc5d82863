//go:build integration

package mqtt

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Integration tests against a local broker.
// These tests require a running MQTT broker at 127.0.0.1:1883 that
// accepts any username and password.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationClient(t *testing.T, clientID string, h Handlers) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.URL = "tcp://127.0.0.1:1883"
	cfg.ConnectTimeout = 5

	c := New(cfg)
	if err := c.Open(Identity{ClientID: clientID, Username: "app", Password: "token"}, h); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIntegration_OpenFiresOnConnect(t *testing.T) {
	var connects int32
	done := make(chan struct{}, 1)
	c := integrationClient(t, "app-int-connect", Handlers{
		OnConnect: func() {
			atomic.AddInt32(&connects, 1)
			done <- struct{}{}
		},
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("OnConnect was not called")
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after Open")
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	c := integrationClient(t, "app-int-subs", Handlers{})

	topics := []string{"client/int-user", "client/int-inst/realtime"}
	for _, topic := range topics {
		if err := c.Subscribe(topic); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if c.SubscriptionCount() != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", c.SubscriptionCount(), len(topics))
	}

	if err := c.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if c.HasSubscription(topics[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", topics[0])
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	topic := "client/int-inst/realtime"
	expected := `{"type":"live_data","data":{"unique":"int-inst","data":{"pumpOn":true}}}`

	received := make(chan string, 1)
	var once sync.Once
	sub := integrationClient(t, "app-int-sub", Handlers{
		OnMessage: func(_ string, p []byte) error {
			once.Do(func() { received <- string(p) })
			return nil
		},
	})
	if err := sub.Subscribe(topic); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	pub := integrationClient(t, "app-int-pub", Handlers{})
	time.Sleep(100 * time.Millisecond)

	if _, err := pub.Publish(topic, []byte(expected)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != expected {
			t.Errorf("Received = %q, want %q", msg, expected)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}

func TestIntegration_ReopenReplacesConnection(t *testing.T) {
	c := integrationClient(t, "app-int-reopen", Handlers{})
	if err := c.Subscribe("client/int-user"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := c.Open(Identity{ClientID: "app-int-reopen-2", Username: "app", Password: "token2"}, Handlers{}); err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() after reopen = %d, want 0", c.SubscriptionCount())
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after reopen")
	}
}
