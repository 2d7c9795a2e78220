package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/audit"
	"github.com/nerrad567/gray-logic-sensor/internal/rpc"
)

// mqttRPCTimeout bounds a single call received over MQTT.
const mqttRPCTimeout = 30 * time.Second

// subscribeRPC serves the method table on the rpc topic. Responses are
// published to the rpc/response topic; calls the device cannot answer
// get no response, matching the HTTP behaviour.
func (s *Server) subscribeRPC() error {
	if s.mqtt == nil {
		return fmt.Errorf("mqtt client not configured")
	}

	topics := s.mqtt.Topics()
	publish := func(resp []byte) error {
		return s.mqtt.Publish(topics.RPCResponse(), resp, s.mqtt.QoS(), false)
	}
	return s.mqtt.Subscribe(topics.RPC(), s.mqtt.QoS(), func(_ string, payload []byte) error {
		s.serveMQTTRPC(payload, publish)
		return nil
	})
}

// serveMQTTRPC runs one call on the caller's goroutine, so calls keep
// their arrival order, and hands the reply to publish in the background.
// The paho router is blocked until this returns.
func (s *Server) serveMQTTRPC(payload []byte, publish func([]byte) error) {
	ctx, cancel := context.WithTimeout(context.Background(), mqttRPCTimeout)
	defer cancel()

	resp, err := s.handleMQTTRPC(ctx, payload)
	if err != nil {
		s.logger.Warn("mqtt rpc failed", "error", err)
		return
	}
	if resp == nil {
		return
	}

	s.replies.Add(1)
	go func() {
		defer s.replies.Done()
		if err := publish(resp); err != nil {
			s.logger.Warn("publishing mqtt rpc response failed", "error", err)
		}
	}()
}

// handleMQTTRPC runs one MQTT payload through the RPC server. A nil
// response with a nil error means nothing should be published.
func (s *Server) handleMQTTRPC(ctx context.Context, payload []byte) ([]byte, error) {
	if !s.device.Available() {
		return nil, nil
	}

	ctx = withCallSource(ctx, audit.TransportMQTT, "")
	resp, err := s.rpc.Handle(ctx, payload)
	if errors.Is(err, rpc.ErrUnavailable) {
		s.logger.Debug("discarding mqtt rpc while device is unavailable")
		return nil, nil
	}
	return resp, err
}
