package mqtt

import "errors"

// Sentinel errors. Callers match them with errors.Is; the wrapped text
// carries the broker or timeout detail.
var (
	// ErrNotConnected is returned by Publish, Subscribe and HealthCheck
	// while the broker session is down.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrConnectionFailed is returned by Connect when the first session
	// cannot be established within the connect timeout.
	ErrConnectionFailed = errors.New("mqtt: broker connection failed")

	// ErrPublishFailed wraps encoding errors, oversized payloads and
	// unacknowledged publishes.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed and ErrUnsubscribeFailed wrap rejected or
	// timed-out subscription changes on the rpc topic.
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS and ErrInvalidTopic reject arguments before any
	// network traffic.
	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
