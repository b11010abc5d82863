package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Maximum payload size for MQTT messages (128KB, the AWS IoT limit).
const maxPayloadSize = 128 << 10

// Publish sends payload to a concrete (already resolved) topic with the
// configured QoS, not retained.
//
// Publish does not wait for delivery. The returned message id identifies
// the in-flight message; it is zero for QoS 0. Errors reported are the ones
// known immediately: invalid input, no connection, or a token that already
// completed with an error.
//
// Example:
//
//	topic, _ := mqtt.Resolve(mqtt.ClientInstallation, placeholders)
//	mid, err := client.Publish(topic, []byte(`{"11":"REQ_LIVE","12":{"DATA":"1"}}`))
func (c *Client) Publish(topic string, payload []byte) (uint16, error) {
	if topic == "" {
		return 0, ErrInvalidTopic
	}
	if HasPlaceholder(topic) {
		return 0, fmt.Errorf("%w: %s", ErrUnresolvedTopic, topic)
	}
	if len(payload) > maxPayloadSize {
		return 0, fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	pc := c.paho()
	if pc == nil || !c.IsConnected() {
		return 0, ErrNotConnected
	}

	token := pc.Publish(topic, byte(c.cfg.QoS), false, payload)

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
	default:
	}

	if pt, ok := token.(*pahomqtt.PublishToken); ok {
		return pt.MessageID(), nil
	}
	return 0, nil
}
