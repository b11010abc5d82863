package message

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/neasmart-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/neasmart-core/internal/installation"
)

// Handler receives decoded messages from Router.Route.
type Handler interface {
	HandleLiveData(LiveData) error
	HandleChannelUpdate(ChannelUpdate) error
	HandleUserState(UserState) error
	HandleReferential(Referential) error
	HandleUnknown(Unknown)
}

// Router classifies inbound topics and decodes their payloads.
type Router struct {
	templates []string
}

// NewRouter creates a router accepting topics that match any of templates.
// Templates keep their placeholders; matching tolerates any substituted value.
func NewRouter(templates ...string) *Router {
	return &Router{templates: templates}
}

// Accepts reports whether topic belongs to one of the router's templates
// or the application channel.
func (r *Router) Accepts(topic string) bool {
	if topic == mqtt.ClientApp {
		return true
	}
	for _, tmpl := range r.templates {
		if mqtt.MatchTemplate(tmpl, topic) {
			return true
		}
	}
	return false
}

// Decode turns (topic, payload) into a typed Message.
func (r *Router) Decode(topic string, payload []byte) (Message, error) {
	if !r.Accepts(topic) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}

	// The application channel only carries legacy broadcasts
	if topic == mqtt.ClientApp {
		return Unknown{Topic: topic, Type: env.Type}, nil
	}

	switch Kind(env.Type) {
	case KindLiveData:
		return decodeLiveData(env.Data)
	case KindChannelUpdate:
		return decodeChannelUpdate(env.Data)
	case KindUserState:
		return decodeUserState(env.Data)
	case KindReferential:
		return decodeReferential(env.Data)
	default:
		return Unknown{Topic: topic, Type: env.Type}, nil
	}
}

// Route decodes the payload and calls the matching Handler method.
// It returns the decoded kind so callers can count traffic.
func (r *Router) Route(topic string, payload []byte, h Handler) (Kind, error) {
	msg, err := r.Decode(topic, payload)
	if err != nil {
		return KindUnknown, err
	}

	switch m := msg.(type) {
	case LiveData:
		err = h.HandleLiveData(m)
	case ChannelUpdate:
		err = h.HandleChannelUpdate(m)
	case UserState:
		err = h.HandleUserState(m)
	case Referential:
		err = h.HandleReferential(m)
	case Unknown:
		h.HandleUnknown(m)
	}
	return msg.Kind(), err
}

func decodeLiveData(data json.RawMessage) (LiveData, error) {
	var w liveDataWire
	if err := json.Unmarshal(data, &w); err != nil {
		return LiveData{}, fmt.Errorf("%w: live_data: %w", ErrInvalidPayload, err)
	}
	if w.Unique == "" {
		return LiveData{}, fmt.Errorf("%w: live_data: missing unique", ErrInvalidPayload)
	}

	// Telemetry is either nested under data or inline next to unique
	fields := w.liveFieldsWire
	if len(w.Data) > 0 && string(w.Data) != "null" {
		fields = liveFieldsWire{}
		if err := json.Unmarshal(w.Data, &fields); err != nil {
			return LiveData{}, fmt.Errorf("%w: live_data: %w", ErrInvalidPayload, err)
		}
	}
	if fields.PumpOn == nil {
		return LiveData{}, fmt.Errorf("%w: live_data: missing pumpOn", ErrInvalidPayload)
	}

	return LiveData{
		Unique: w.Unique,
		Telemetry: installation.LiveTelemetry{
			PumpOn:                bool(*fields.PumpOn),
			MixedCircuit1Setpoint: fields.MixedCircuit1Setpoint,
			MixedCircuit1Supply:   fields.MixedCircuit1Supply,
			MixedCircuit1Return:   fields.MixedCircuit1Return,
			MixedCircuit1Opening:  fields.MixedCircuit1Opening,
		},
	}, nil
}

func decodeChannelUpdate(data json.RawMessage) (ChannelUpdate, error) {
	var w channelUpdateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return ChannelUpdate{}, fmt.Errorf("%w: channel_update: %w", ErrInvalidPayload, err)
	}
	if w.Unique == "" || w.Channel == "" {
		return ChannelUpdate{}, fmt.Errorf("%w: channel_update: missing unique or channel", ErrInvalidPayload)
	}
	if w.Data == nil || w.Data.ModeUsed == nil || w.Data.SetpointUsed == nil {
		return ChannelUpdate{}, fmt.Errorf("%w: channel_update: missing mode_used or setpoint_used", ErrInvalidPayload)
	}

	return ChannelUpdate{
		Unique:       w.Unique,
		ChannelID:    w.Channel,
		ModeUsed:     *w.Data.ModeUsed,
		SetpointUsed: *w.Data.SetpointUsed,
	}, nil
}

func decodeUserState(data json.RawMessage) (UserState, error) {
	var u installation.User
	if err := json.Unmarshal(data, &u); err != nil {
		return UserState{}, fmt.Errorf("%w: read_user: %w", ErrInvalidPayload, err)
	}
	if u.Installs == nil {
		return UserState{}, fmt.Errorf("%w: read_user: missing installs", ErrInvalidPayload)
	}
	return UserState{User: u}, nil
}

func decodeReferential(data json.RawMessage) (Referential, error) {
	var compressed string
	if err := json.Unmarshal(data, &compressed); err != nil {
		return Referential{}, fmt.Errorf("%w: referential: %w", ErrInvalidPayload, err)
	}
	if compressed == "" {
		return Referential{}, fmt.Errorf("%w: referential: empty data", ErrInvalidPayload)
	}
	return Referential{Compressed: compressed}, nil
}
