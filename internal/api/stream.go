package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sensor/internal/telemetry"
)

// Frame types on the event stream.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"
	FramePong        = "pong"
	FrameEvent       = "event"
	FrameAck         = "ack"
	FrameError       = "error"

	// streamQueueSize is the number of frames buffered per subscriber
	// before new frames are dropped for it.
	streamQueueSize = 256
)

// streamChannels are the channels a subscriber may join.
var streamChannels = []string{
	telemetry.ChannelReading,
	telemetry.ChannelInfo,
	telemetry.ChannelFirmware,
	telemetry.ChannelLifecycle,
}

// Frame is one message on the event stream, in either direction.
type Frame struct {
	Type     string   `json:"type"`
	ID       string   `json:"id,omitempty"`
	Channel  string   `json:"channel,omitempty"`
	Time     string   `json:"time,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Rejected []string `json:"rejected,omitempty"`
	Data     any      `json:"data,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Hub fans device events out to websocket subscribers.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
}

// subscriber is one websocket connection and the channels it has joined.
type subscriber struct {
	hub  *Hub
	conn *websocket.Conn

	// snapshot returns the current device info, sent once when the
	// subscriber joins the info channel. Nil disables the snapshot.
	snapshot func() (any, bool)

	mu       sync.Mutex
	channels map[string]struct{}
	queue    chan []byte
	closed   bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the cors middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// NewHub creates an event hub with no subscribers.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:         cfg,
		logger:      logger,
		subscribers: make(map[*subscriber]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for sub := range subs {
		sub.shutdown()
		if sub.conn != nil {
			sub.conn.Close()
		}
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()
	h.logger.Debug("stream subscriber connected", "subscribers", n)
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	n := len(h.subscribers)
	h.mu.Unlock()
	sub.shutdown()
	h.logger.Debug("stream subscriber disconnected", "subscribers", n)
}

// Broadcast sends payload as an event frame to every subscriber that has
// joined channel. Slow subscribers lose frames rather than block the caller.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(Frame{
		Type:    FrameEvent,
		Channel: channel,
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Data:    payload,
	})
	if err != nil {
		h.logger.Error("encoding stream event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.joined(channel) {
			sub.enqueue(data)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// handleWebSocket upgrades an authenticated request to an event stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := newSubscriber(s.hub, conn)
	sub.snapshot = func() (any, bool) {
		info, err := s.device.Info()
		return info, err == nil
	}
	s.hub.add(sub)

	go sub.writeLoop(s.wsCfg)
	go sub.readLoop(s.wsCfg)
}

func newSubscriber(hub *Hub, conn *websocket.Conn) *subscriber {
	return &subscriber{
		hub:      hub,
		conn:     conn,
		channels: make(map[string]struct{}),
		queue:    make(chan []byte, streamQueueSize),
	}
}

// shutdown closes the queue once; the write loop then sends a close frame.
func (c *subscriber) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

func (c *subscriber) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.queue <- data:
	default:
	}
}

func (c *subscriber) joined(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[channel]
	return ok
}

func (c *subscriber) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("stream read failed", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
		c.handleFrame(data)
	}
}

func (c *subscriber) writeLoop(cfg config.WebSocketConfig) {
	ping := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case data, ok := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *subscriber) handleFrame(data []byte) {
	var in Frame
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply(Frame{Type: FrameError, Error: "invalid JSON frame"})
		return
	}

	switch in.Type {
	case FrameSubscribe:
		c.subscribe(in)
	case FrameUnsubscribe:
		c.unsubscribe(in)
	case FramePing:
		c.reply(Frame{Type: FramePong, ID: in.ID})
	default:
		c.reply(Frame{Type: FrameError, ID: in.ID, Error: "unknown frame type: " + in.Type})
	}
}

// subscribe joins the known channels in the frame and reports the rest
// as rejected. Joining the info channel sends the current device record.
func (c *subscriber) subscribe(in Frame) {
	if len(in.Channels) == 0 {
		c.reply(Frame{Type: FrameError, ID: in.ID, Error: "subscribe needs at least one channel"})
		return
	}

	var accepted, rejected []string
	c.mu.Lock()
	for _, ch := range in.Channels {
		if !slices.Contains(streamChannels, ch) {
			rejected = append(rejected, ch)
			continue
		}
		c.channels[ch] = struct{}{}
		accepted = append(accepted, ch)
	}
	c.mu.Unlock()

	c.reply(Frame{Type: FrameAck, ID: in.ID, Channels: accepted, Rejected: rejected})

	if c.snapshot != nil && slices.Contains(accepted, telemetry.ChannelInfo) {
		if info, ok := c.snapshot(); ok {
			c.reply(Frame{Type: FrameEvent, Channel: telemetry.ChannelInfo, Data: info})
		}
	}
}

func (c *subscriber) unsubscribe(in Frame) {
	c.mu.Lock()
	for _, ch := range in.Channels {
		delete(c.channels, ch)
	}
	c.mu.Unlock()
	c.reply(Frame{Type: FrameAck, ID: in.ID, Channels: in.Channels})
}

func (c *subscriber) reply(f Frame) {
	if f.Time == "" {
		f.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.enqueue(data)
}
