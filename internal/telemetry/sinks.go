package telemetry

import (
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/device"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/mqtt"
)

// Websocket channels events are broadcast on.
const (
	ChannelReading   = "telemetry.reading"
	ChannelInfo      = "device.info"
	ChannelFirmware  = "device.firmware"
	ChannelLifecycle = "device.lifecycle"
)

// ReadingPayload is the body published for a new reading.
type ReadingPayload struct {
	HID   string         `json:"hid"`
	Value device.Reading `json:"value"`
	Time  time.Time      `json:"time"`
}

func readingPayload(ev device.Event) ReadingPayload {
	return ReadingPayload{HID: ev.Info.HID, Value: ev.Reading, Time: ev.Time}
}

// StatusPublisher is the subset of *mqtt.Client used by MQTTSink.
type StatusPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
	PublishStatus(status, reason string) error
}

// MQTTSink publishes events on the sensor topic tree. Info and status are
// retained; readings and the raw event stream are not.
type MQTTSink struct {
	client StatusPublisher
	topics mqtt.Topics
}

// NewMQTTSink creates a sink publishing under topics.
func NewMQTTSink(client StatusPublisher, topics mqtt.Topics) *MQTTSink {
	return &MQTTSink{client: client, topics: topics}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Deliver implements Sink.
func (s *MQTTSink) Deliver(ev device.Event) error {
	var errs []error

	switch ev.Type {
	case device.EventReading:
		errs = append(errs, s.client.PublishJSON(s.topics.Reading(), readingPayload(ev), false))
	case device.EventRebootStarted:
		errs = append(errs, s.client.PublishStatus(mqtt.StatusRebooting, ""))
	case device.EventOnline:
		errs = append(errs,
			s.client.PublishStatus(mqtt.StatusOnline, ""),
			s.client.PublishJSON(s.topics.Info(), ev.Info, true),
		)
	case device.EventInfoChanged, device.EventFirmwareUpdated, device.EventFactoryReset:
		errs = append(errs, s.client.PublishJSON(s.topics.Info(), ev.Info, true))
	}

	errs = append(errs, s.client.PublishJSON(s.topics.Event(), ev, false))
	return errors.Join(errs...)
}

// PointWriter is the subset of *influxdb.Client used by InfluxSink.
type PointWriter interface {
	WriteReading(hid, model string, value float64, ts time.Time)
	WriteFirmware(hid, model string, version int, ts time.Time)
}

// InfluxSink records readings and firmware changes as time series.
type InfluxSink struct {
	writer PointWriter
}

// NewInfluxSink creates a sink over writer.
func NewInfluxSink(writer PointWriter) *InfluxSink {
	return &InfluxSink{writer: writer}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// Deliver implements Sink. Writes are batched by the client, so errors
// surface through its own error callback rather than here.
func (s *InfluxSink) Deliver(ev device.Event) error {
	switch ev.Type {
	case device.EventReading:
		s.writer.WriteReading(ev.Info.HID, ev.Info.Model, float64(ev.Reading), ev.Time)
	case device.EventFirmwareUpdated, device.EventFactoryReset:
		s.writer.WriteFirmware(ev.Info.HID, ev.Info.Model, ev.Info.FirmwareVersion, ev.Time)
	}
	return nil
}

// Broadcaster is implemented by the websocket hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// HubSink forwards events to websocket subscribers.
type HubSink struct {
	hub Broadcaster
}

// NewHubSink creates a sink over hub.
func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

// Name implements Sink.
func (s *HubSink) Name() string { return "websocket" }

// Deliver implements Sink.
func (s *HubSink) Deliver(ev device.Event) error {
	switch ev.Type {
	case device.EventReading:
		s.hub.Broadcast(ChannelReading, readingPayload(ev))
	case device.EventInfoChanged, device.EventFactoryReset:
		s.hub.Broadcast(ChannelInfo, ev.Info)
	case device.EventUpdateStarted, device.EventFirmwareUpdated:
		s.hub.Broadcast(ChannelFirmware, ev)
	case device.EventRebootStarted, device.EventOnline:
		s.hub.Broadcast(ChannelLifecycle, ev)
	}
	return nil
}
