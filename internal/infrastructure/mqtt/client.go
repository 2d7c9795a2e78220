package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/config"
)

// Client publishes one sensor's topic tree over paho.mqtt.golang.
//
// paho reconnects on its own. After every (re)connect the client restores
// its subscriptions and republishes the last status it was told about, so
// a broker restart during a reboot window still reports "rebooting".
// All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	mu           sync.RWMutex
	connected    bool
	status       string
	reason       string
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger

	connects atomic.Uint64
}

// Logger is satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler receives one inbound message. paho calls it on its own
// goroutine; a returned error is logged and the message is still acked.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker and waits for the first session.
//
// The broker is given a retained "offline" will on the status topic, and
// the client publishes a retained "online" status once connected.
//
// Returns:
//   - *Client: connected client
//   - error: ErrConnectionFailed if the broker is not reached in time
func Connect(cfg config.MQTTConfig, topics Topics) (*Client, error) {
	c := newClient(cfg, topics)

	opts := buildClientOptions(cfg)
	configureLWT(opts, topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// handleConnect runs asynchronously; IsConnected must hold on return.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

func newClient(cfg config.MQTTConfig, topics Topics) *Client {
	return &Client{
		cfg:           cfg,
		topics:        topics,
		subscriptions: make(map[string]subscription),
		status:        StatusOnline,
	}
}

// Topics returns the sensor's topic tree.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured QoS level.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS) //nolint:gosec // G115: validated 0..2 by config
}

// Connects returns how many sessions have been established, counting
// the first one.
func (c *Client) Connects() uint64 {
	return c.connects.Load()
}

func (c *Client) handleConnect() {
	c.connects.Add(1)

	c.mu.Lock()
	c.connected = true
	status, reason := c.status, c.reason
	callback := c.onConnect
	c.mu.Unlock()

	c.restoreSubscriptions()
	c.sendStatus(status, reason)

	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	c.connected = false
	callback := c.onDisconnect
	logger := c.logger
	c.mu.Unlock()

	if logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}
	if callback != nil {
		callback(err)
	}
}

func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		// A failed resubscribe is retried on the next reconnect.
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// sendStatus publishes a retained status without the connected check;
// it runs from the connect callback before IsConnected is true.
func (c *Client) sendStatus(status, reason string) {
	token := c.client.Publish(c.topics.Status(), c.QoS(), true, buildStatusPayload(status, c.cfg.Broker.ClientID, reason))
	token.WaitTimeout(defaultPublishTimeout)
}

// PublishStatus publishes a retained sensor status (StatusOnline,
// StatusRebooting) and remembers it for reconnects.
func (c *Client) PublishStatus(status, reason string) error {
	c.mu.Lock()
	c.status, c.reason = status, reason
	c.mu.Unlock()

	return c.PublishRetained(c.topics.Status(), buildStatusPayload(status, c.cfg.Broker.ClientID, reason))
}

// Close publishes a graceful offline status, distinct from the will,
// and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.sendStatus(StatusOffline, "graceful_shutdown")
	}
	c.client.Disconnect(defaultDisconnectQuiesce)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	return nil
}

// HealthCheck reports ErrNotConnected while the broker session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current session state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback run after every (re)connect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback run when the session is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger sets the logger for handler failures and lost sessions.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(handler, msg.Topic(), msg.Payload())
	}
}

// dispatch runs handler, logging a panic as an error and a returned
// error as a warning.
func (c *Client) dispatch(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
			}
		}
	}()

	if err := handler(topic, payload); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler failed", "topic", topic, "error", err)
		}
	}
}
