//go:build integration

package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/config"
)

// Integration tests against a live broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "graylogic-test/sensor",
	}
}

func connectOrSkip(t *testing.T, clientID, hid string) *Client {
	t.Helper()
	cfg := integrationConfig(clientID)
	c, err := Connect(cfg, NewTopics(cfg.TopicPrefix, hid))
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestIntegration_PublishSubscribeRoundTrip(t *testing.T) {
	sensor := connectOrSkip(t, "sensord-it-sensor", "it-hid")
	observer := connectOrSkip(t, "sensord-it-observer", "it-observer")

	received := make(chan []byte, 1)
	err := observer.Subscribe(sensor.Topics().Reading(), 1, func(_ string, payload []byte) error {
		select {
		case received <- payload:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := sensor.PublishJSON(sensor.Topics().Reading(), map[string]float64{"value": 21.5}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case payload := <-received:
		var body map[string]float64
		if err := json.Unmarshal(payload, &body); err != nil {
			t.Fatalf("payload %s: %v", payload, err)
		}
		if body["value"] != 21.5 {
			t.Errorf("value = %v, want 21.5", body["value"])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reading")
	}
}

func TestIntegration_RetainedOnlineStatus(t *testing.T) {
	sensor := connectOrSkip(t, "sensord-it-status", "it-status")
	observer := connectOrSkip(t, "sensord-it-status-observer", "it-status-observer")

	statuses := make(chan statusPayload, 4)
	err := observer.Subscribe(sensor.Topics().Status(), 1, func(_ string, payload []byte) error {
		var p statusPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		statuses <- p
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case p := <-statuses:
		if p.Status != StatusOnline {
			t.Errorf("status = %q, want online", p.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for retained status")
	}
}
