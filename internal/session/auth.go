package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/neasmart-core/internal/directory"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/mqtt"
)

// CheckCredentials validates email and password against the directory
// without starting a session. Rejected credentials return false and an
// error wrapping directory.ErrAuthentication.
func CheckCredentials(ctx context.Context, dir directory.Service, email, password string) (bool, error) {
	ok, err := dir.CheckCredentials(ctx, email, password)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: invalid credentials", directory.ErrAuthentication)
	}
	return true, nil
}

// Authenticate logs in, builds the installation model from the returned
// user record and (re)opens the transport. Any failure aborts the attempt
// and is returned.
func (s *Session) Authenticate(ctx context.Context) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	return s.authenticate(ctx)
}

// authenticate requires authMu.
func (s *Session) authenticate(ctx context.Context) error {
	if err := s.ctx.Err(); err != nil {
		return ErrClosed
	}

	s.logger.Info("authenticating", "email", s.creds.Email)

	token, user, err := s.dir.Authenticate(ctx, s.creds.Email, s.creds.Password)
	if err != nil {
		s.metrics.Authenticated(AuthFailed)
		return fmt.Errorf("authenticating: %w", err)
	}
	s.metrics.Authenticated(AuthSucceeded)

	s.setToken(token)
	s.setUser(user)

	return s.open()
}

// RefreshToken exchanges the refresh token for a new token set and
// reconnects with it.
//
// A rejected refresh token falls back to a full Authenticate. Other
// directory failures are logged and returned without further action; the
// next scheduled refresh retries.
func (s *Session) RefreshToken(ctx context.Context) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	if err := s.ctx.Err(); err != nil {
		return ErrClosed
	}

	s.logger.Debug("refreshing token")

	token, err := s.dir.RefreshToken(ctx, s.Token().RefreshToken)
	switch {
	case errors.Is(err, directory.ErrAuthentication):
		s.logger.Warn("refresh token rejected, logging in again", "error", err)
		s.metrics.TokenRefreshed(RefreshReauth)
		return s.authenticate(ctx)
	case err != nil:
		s.logger.Error("token refresh failed", "error", err)
		s.metrics.TokenRefreshed(RefreshFailed)
		return fmt.Errorf("refreshing token: %w", err)
	}

	s.metrics.TokenRefreshed(RefreshOK)
	s.setToken(token)
	return s.open()
}

// Reconnect reopens the transport with the current token set.
func (s *Session) Reconnect(_ context.Context) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	if err := s.ctx.Err(); err != nil {
		return ErrClosed
	}
	return s.open()
}

// open tears down any previous connection, starts a fresh set of periodic
// tasks and connects with the current access token. Requires authMu.
//
// The tasks keep running when the connect fails, so the token refresh
// task retries the connection on its next tick.
func (s *Session) open() error {
	token := s.Token()
	if !token.Valid() {
		return ErrNotAuthenticated
	}

	s.logger.Debug("opening transport", "client_id", s.clientID)

	s.teardown()
	s.disconnects.Store(0)
	s.startScheduler(token)

	id := mqtt.Identity{
		ClientID: s.clientID,
		Username: s.cfg.Broker.BrokerUsername(),
		Password: token.AccessToken,
	}
	handlers := mqtt.Handlers{
		OnConnect:        s.onConnect,
		OnMessage:        s.HandleMessage,
		OnConnectionLost: s.onConnectionLost,
	}

	if err := s.transport.Open(id, handlers); err != nil {
		s.metrics.SetConnected(false)
		s.logger.Error("opening transport failed", "error", err)
		return fmt.Errorf("opening transport: %w", err)
	}

	s.logger.Info("transport connected", "client_id", s.clientID)
	return nil
}

// Disconnect unsubscribes every topic, closes the transport and stops the
// periodic tasks. Nothing stays live afterwards; Authenticate starts over.
func (s *Session) Disconnect() {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	s.disconnect()
}

// disconnect requires authMu.
func (s *Session) disconnect() {
	s.teardown()

	s.mu.Lock()
	s.authenticated = false
	s.mu.Unlock()

	s.logger.Info("session disconnected")
}

// teardown is the ordered shutdown shared by Disconnect and open.
func (s *Session) teardown() {
	p := s.placeholders()
	for _, tmpl := range subscriptions {
		topic, err := mqtt.Resolve(tmpl, p)
		if err != nil {
			continue
		}
		if err := s.transport.Unsubscribe(topic); err != nil {
			s.logger.Debug("unsubscribe failed", "topic", topic, "error", err)
		}
	}

	if err := s.transport.Close(); err != nil {
		s.logger.Warn("closing transport failed", "error", err)
	}
	s.metrics.SetConnected(false)

	s.stopScheduler()
}

// Close disconnects and waits for every periodic task to exit. The session
// cannot be used afterwards. Close must not be called from a task.
func (s *Session) Close() {
	s.cancel()
	s.Disconnect()
	s.loops.Wait()
}

// onConnect runs on every (re)connect of the transport.
func (s *Session) onConnect() {
	s.mu.Lock()
	s.authenticated = true
	s.mu.Unlock()

	s.metrics.SetConnected(true)
	s.logger.Debug("broker connection established")

	s.subscribeTopics()
	if _, err := s.RequestReferentials(); err != nil {
		s.logger.Warn("requesting referentials failed", "error", err)
	}
}

// onConnectionLost counts unexpected disconnects. The broker drops the
// connection periodically, so up to the ceiling this is informational;
// beyond it the session is torn down.
func (s *Session) onConnectionLost(err error) {
	n := s.disconnects.Add(1)
	s.metrics.Disconnected()
	s.metrics.SetConnected(false)

	if n <= s.maxDisconnects() {
		s.logger.Info("unexpected disconnect, transport will retry",
			"count", n,
			"error", err,
		)
		return
	}

	// A login or reopen in flight replaces this connection and resets
	// the count.
	if !s.authMu.TryLock() {
		s.logger.Info("reopen in progress, not stopping session", "count", n)
		return
	}
	defer s.authMu.Unlock()

	// The reopen may have finished between the count and the lock
	if s.disconnects.Load() <= s.maxDisconnects() {
		return
	}

	s.logger.Error("too many disconnects, stopping session",
		"count", n,
		"error", err,
	)
	s.disconnect()
}

// subscribeTopics unsubscribes then subscribes every listen topic, so a
// reconnect never leaves duplicate deliveries.
func (s *Session) subscribeTopics() {
	p := s.placeholders()
	for _, tmpl := range subscriptions {
		topic, err := mqtt.Resolve(tmpl, p)
		if err != nil {
			s.logger.Warn("cannot resolve subscription", "template", tmpl, "error", err)
			continue
		}
		if err := s.transport.Unsubscribe(topic); err != nil {
			s.logger.Debug("unsubscribe failed", "topic", topic, "error", err)
		}
		if err := s.transport.Subscribe(topic); err != nil {
			s.logger.Warn("subscribe failed", "topic", topic, "error", err)
			continue
		}
		s.logger.Debug("subscribed", "topic", topic)
	}
}
