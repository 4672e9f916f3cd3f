package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound payloads. Nothing Pulseline publishes
// comes close: the largest message is a line state snapshot, well under
// a kilobyte. Anything bigger is a bug upstream, not a message.
const maxPayloadSize = 4 << 10 // 4KB

// Publish sends a message to the given topic and waits for the broker
// to acknowledge it (per qos).
//
// Retained messages are used for the state and status topics so new
// subscribers immediately see current values; acks and other events are
// published unretained.
//
// Returns ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or an error
// wrapping ErrPublishFailed.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
