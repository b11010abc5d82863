package message

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/neasmart-core/internal/installation"
)

// Kind identifies the type of an inbound message.
type Kind string

const (
	KindLiveData      Kind = "live_data"
	KindChannelUpdate Kind = "channel_update"
	KindUserState     Kind = "read_user"
	KindReferential   Kind = "referential"
	KindUnknown       Kind = "unknown"
)

// Message is implemented by every decoded message type.
type Message interface {
	Kind() Kind
}

// LiveData carries the mixed-circuit telemetry of one installation.
type LiveData struct {
	Unique    string
	Telemetry installation.LiveTelemetry
}

// ChannelUpdate reports a channel's new energy level and setpoint.
type ChannelUpdate struct {
	Unique       string
	ChannelID    string
	ModeUsed     int
	SetpointUsed int
}

// UserState is a full user record pushed by the server.
type UserState struct {
	User installation.User
}

// Referential carries the compressed referential dictionary.
type Referential struct {
	Compressed string
}

// Unknown is any message the router does not handle.
type Unknown struct {
	Topic string
	Type  string
}

func (LiveData) Kind() Kind      { return KindLiveData }
func (ChannelUpdate) Kind() Kind { return KindChannelUpdate }
func (UserState) Kind() Kind     { return KindUserState }
func (Referential) Kind() Kind   { return KindReferential }
func (Unknown) Kind() Kind       { return KindUnknown }

// envelope is the outer shape of every payload.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type liveDataWire struct {
	Unique string          `json:"unique"`
	Data   json.RawMessage `json:"data"`
	liveFieldsWire
}

type liveFieldsWire struct {
	PumpOn                *flexBool `json:"pumpOn"`
	MixedCircuit1Setpoint int       `json:"mixed_circuit1_setpoint"`
	MixedCircuit1Supply   int       `json:"mixed_circuit1_supply"`
	MixedCircuit1Return   int       `json:"mixed_circuit1_return"`
	MixedCircuit1Opening  int       `json:"mixed_circuit1_opening"`
}

type channelUpdateWire struct {
	Unique  string `json:"unique"`
	Channel string `json:"channel"`
	Data    *struct {
		ModeUsed     *int `json:"mode_used"`
		SetpointUsed *int `json:"setpoint_used"`
	} `json:"data"`
}

// flexBool decodes true/false or a 0/1 number.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*b = true
		return nil
	case "false", "null":
		*b = false
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("not a boolean: %s", data)
	}
	*b = n != 0
	return nil
}
