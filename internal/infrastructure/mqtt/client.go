package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/neasmart-core/internal/infrastructure/config"
)

// Client owns at most one broker connection at a time.
//
// Open replaces any previous connection, so a session can re-open with a
// fresh token without building a new Client.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg config.BrokerConfig

	// client is the current paho connection, nil until Open succeeds.
	client   pahomqtt.Client
	handlers Handlers
	clientMu sync.RWMutex

	// subscriptions tracks topics subscribed on the current connection.
	subscriptions map[string]struct{}
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// Returned errors are logged with the topic.
type MessageHandler func(topic string, payload []byte) error

// Handlers are the three connection event hooks.
// Any of them may be nil.
type Handlers struct {
	// OnConnect runs after every successful connect, including reconnects.
	OnConnect func()

	// OnMessage receives every inbound message on any subscribed topic.
	OnMessage MessageHandler

	// OnConnectionLost runs when the connection drops unexpectedly.
	// A deliberate Close does not trigger it.
	OnConnectionLost func(err error)
}

// New creates a Client for the configured broker. No connection is made.
func New(cfg config.BrokerConfig) *Client {
	return &Client{
		cfg:           cfg,
		subscriptions: make(map[string]struct{}),
	}
}

// Open connects to the broker with the given identity.
//
// Any existing connection is closed first. Open waits up to the configured
// connect timeout for the first CONNACK; on timeout or rejection it stops
// background retries and returns ErrConnectionFailed.
func (c *Client) Open(id Identity, handlers Handlers) error {
	if id.ClientID == "" || id.Password == "" {
		return ErrInvalidIdentity
	}

	if err := c.Close(); err != nil {
		return err
	}

	opts := buildClientOptions(c.cfg, id)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})
	opts.SetDefaultPublishHandler(c.wrapHandler())

	pc := pahomqtt.NewClient(opts)

	c.clientMu.Lock()
	c.client = pc
	c.handlers = handlers
	c.clientMu.Unlock()

	timeout := connectTimeout(c.cfg)
	token := pc.Connect()
	if !token.WaitTimeout(timeout) {
		pc.Disconnect(0)
		c.reset()
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		pc.Disconnect(0)
		c.reset()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have run yet.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return nil
}

// handleConnect is called by paho on every (re)connect.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	if h := c.getHandlers(); h.OnConnect != nil {
		h.OnConnect()
	}
}

// handleConnectionLost is called by paho when the connection drops.
func (c *Client) handleConnectionLost(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	// Clean session: the broker forgets our subscriptions
	c.subMu.Lock()
	c.subscriptions = make(map[string]struct{})
	c.subMu.Unlock()

	if h := c.getHandlers(); h.OnConnectionLost != nil {
		h.OnConnectionLost(err)
	}
}

// Close disconnects from the broker with a quiesce period for pending
// operations. Closing a client that is not open is not an error.
func (c *Client) Close() error {
	c.clientMu.RLock()
	pc := c.client
	c.clientMu.RUnlock()

	if pc == nil {
		return nil
	}

	pc.Disconnect(defaultDisconnectQuiesce)
	c.reset()
	return nil
}

// reset forgets the current connection.
func (c *Client) reset() {
	c.clientMu.Lock()
	c.client = nil
	c.handlers = Handlers{}
	c.clientMu.Unlock()

	c.subMu.Lock()
	c.subscriptions = make(map[string]struct{})
	c.subMu.Unlock()

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
}

// HealthCheck reports whether the connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	pc := c.paho()
	if pc == nil {
		return false
	}

	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && pc.IsConnected()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) getHandlers() Handlers {
	c.clientMu.RLock()
	defer c.clientMu.RUnlock()
	return c.handlers
}

func (c *Client) paho() pahomqtt.Client {
	c.clientMu.RLock()
	defer c.clientMu.RUnlock()
	return c.client
}

// wrapHandler routes inbound messages to the current OnMessage hook with
// panic recovery and optional logging.
func (c *Client) wrapHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(msg.Topic(), msg.Payload())
	}
}

func (c *Client) dispatch(topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", topic,
					"panic", r,
				)
			}
		}
	}()

	handler := c.getHandlers().OnMessage
	if handler == nil {
		return
	}

	if err := handler(topic, payload); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error",
				"topic", topic,
				"error", err,
			)
		}
	}
}
