package mqtt

import (
	"fmt"
)

// Subscribe subscribes to a concrete topic with the configured QoS.
//
// Messages arrive through Handlers.OnMessage. Subscriptions are not
// restored by the client after a reconnect: the session re-issues them
// from its OnConnect hook.
func (c *Client) Subscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if HasPlaceholder(topic) {
		return fmt.Errorf("%w: %s", ErrUnresolvedTopic, topic)
	}

	pc := c.paho()
	if pc == nil || !c.IsConnected() {
		return ErrNotConnected
	}

	// nil callback: paho routes to the default publish handler
	token := pc.Subscribe(topic, byte(c.cfg.QoS), nil)
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = struct{}{}
	c.subMu.Unlock()

	return nil
}

// Unsubscribe removes a subscription. Unsubscribing a topic that was
// never subscribed is passed to the broker anyway; the broker ignores it.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	pc := c.paho()
	if pc == nil || !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	token := pc.Unsubscribe(topic)
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	return nil
}

// SubscriptionCount returns the number of active subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks if a subscription exists for the exact topic.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}
