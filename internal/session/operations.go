package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/neasmart-core/internal/directory"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/neasmart-core/internal/installation"
	"github.com/nerrad567/neasmart-core/internal/message"
	"github.com/nerrad567/neasmart-core/internal/referential"
)

// liveDataRequest asks the installation to push its live telemetry.
var liveDataRequest = map[string]any{
	"11": "REQ_LIVE",
	"12": map[string]any{"DATA": "1"},
}

// Publish encodes msg as JSON, resolves the topic template and publishes.
// It returns the message id without waiting for delivery.
//
// Consecutive failures are counted; once the count exceeds the threshold
// the error wraps ErrPublishFailures. A success resets the count.
func (s *Session) Publish(template string, msg any) (uint16, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encoding message: %w", err)
	}

	topic, err := mqtt.Resolve(template, s.placeholders())
	if err != nil {
		return 0, err
	}

	s.logger.Debug("publishing", "topic", topic, "bytes", len(payload))

	id, err := s.transport.Publish(topic, payload)
	s.metrics.Published(err)
	if err != nil {
		n := s.publishFailures.Add(1)
		if n > s.failureThreshold() {
			s.logger.Error("publish failed repeatedly",
				"topic", topic,
				"failures", n,
				"error", err,
			)
			return 0, fmt.Errorf("%w: %d on %s: %w", ErrPublishFailures, n, topic, err)
		}
		return 0, err
	}

	s.publishFailures.Store(0)
	return id, nil
}

// RefreshLiveData asks the current installation for live telemetry.
func (s *Session) RefreshLiveData() (uint16, error) {
	s.logger.Debug("requesting live data")
	return s.Publish(mqtt.ClientInstallation, liveDataRequest)
}

// RequestReferentials asks the server for the referential dictionary.
func (s *Session) RequestReferentials() (uint16, error) {
	token := s.Token()
	if !token.Valid() {
		return 0, ErrNotAuthenticated
	}

	s.logger.Debug("requesting referentials")
	return s.Publish(mqtt.ServerUserReferential, map[string]any{
		"ID":    s.creds.Email,
		"data":  map[string]any{},
		"sso":   true,
		"token": token.AccessToken,
	})
}

// ReadUser asks the server to push the user record over the broker.
func (s *Session) ReadUser() (uint16, error) {
	token := s.Token()
	if !token.Valid() {
		return 0, ErrNotAuthenticated
	}

	return s.Publish(mqtt.ServerUserRead, map[string]any{
		"ID":    s.creds.Email,
		"token": token.AccessToken,
		"sso":   true,
		"data": map[string]any{
			"demand": s.CurrentInstallation().ID,
			"email":  s.creds.Email,
		},
	})
}

// PollUser is the periodic user refresh. It resets the disconnect counter,
// re-issues the subscriptions and reads the user record over HTTP.
//
// A rejected token triggers RefreshToken. Other failures are returned for
// the caller to log; the next poll retries.
func (s *Session) PollUser(ctx context.Context) error {
	s.disconnects.Store(0)

	if s.transport.IsConnected() {
		s.subscribeTopics()
	}

	token := s.Token()
	if !token.Valid() {
		return ErrNotAuthenticated
	}

	current := s.CurrentInstallation()
	req := directory.UserStateRequest{
		Username:    s.creds.Email,
		InstallIDs:  s.store.InstallIDs(),
		InstallHash: current.Hash,
		Token:       token.AccessToken,
		Demand:      current.ID,
	}

	user, err := s.dir.ReadUserState(ctx, req)
	switch {
	case errors.Is(err, directory.ErrAuthentication):
		s.logger.Info("token expired, refreshing")
		return s.RefreshToken(ctx)
	case err != nil:
		return fmt.Errorf("reading user state: %w", err)
	}

	if user != nil {
		s.setUser(user)
	}
	return nil
}

// HandleMessage routes one inbound broker message into the model.
func (s *Session) HandleMessage(topic string, payload []byte) error {
	kind, err := s.router.Route(topic, payload, s)
	s.metrics.MessageHandled(string(kind), err)
	if err != nil {
		return fmt.Errorf("handling %s message: %w", kind, err)
	}
	return nil
}

// HandleLiveData implements message.Handler.
func (s *Session) HandleLiveData(m message.LiveData) error {
	return s.store.UpdateLiveData(m.Unique, m.Telemetry)
}

// HandleChannelUpdate implements message.Handler.
func (s *Session) HandleChannelUpdate(m message.ChannelUpdate) error {
	s.logger.Debug("channel updated",
		"channel", m.ChannelID,
		"energy_level", m.ModeUsed,
		"setpoint", m.SetpointUsed,
	)
	return s.store.UpdateChannel(m.Unique, m.ChannelID, m.ModeUsed, m.SetpointUsed)
}

// HandleUserState implements message.Handler.
func (s *Session) HandleUserState(m message.UserState) error {
	u := m.User
	s.setUser(&u)
	return nil
}

// HandleReferential implements message.Handler.
func (s *Session) HandleReferential(m message.Referential) error {
	dict, err := referential.Parse(m.Compressed)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.referentials = dict
	s.mu.Unlock()

	s.logger.Debug("referentials updated", "entries", len(dict))
	return nil
}

// HandleUnknown implements message.Handler.
func (s *Session) HandleUnknown(m message.Unknown) {
	s.logger.Debug("unhandled message", "topic", m.Topic, "type", m.Type)
}

// SetUser replaces the user record as if it had been polled.
func (s *Session) SetUser(u *installation.User) {
	s.setUser(u)
}
