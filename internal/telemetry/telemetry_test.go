package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/device"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/mqtt"
)

var testInfo = device.Info{
	Name:            "sensor",
	HID:             "hid-1",
	Model:           "GL-TS1",
	FirmwareVersion: 4,
	ReadingInterval: 10,
}

func event(typ device.EventType) device.Event {
	ev := device.Event{Type: typ, Time: time.Unix(1700000000, 0).UTC(), Info: testInfo}
	if typ == device.EventReading {
		ev.Reading = 21.5
	}
	return ev
}

type published struct {
	topic    string
	payload  any
	retained bool
}

type fakeMQTT struct {
	mu       sync.Mutex
	messages []published
	statuses []string
	err      error
}

func (f *fakeMQTT) PublishJSON(topic string, v any, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic, v, retained})
	return f.err
}

func (f *fakeMQTT) PublishStatus(status, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return f.err
}

type fakeWriter struct {
	mu       sync.Mutex
	readings []float64
	versions []int
}

func (f *fakeWriter) WriteReading(_, _ string, value float64, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings = append(f.readings, value)
}

func (f *fakeWriter) WriteFirmware(_, _ string, version int, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, version)
}

type fakeHub struct {
	mu       sync.Mutex
	channels []string
}

func (f *fakeHub) Broadcast(channel string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
}

func TestMQTTSink_Routing(t *testing.T) {
	topics := mqtt.NewTopics("p", "hid-1")

	tests := []struct {
		event        device.EventType
		wantTopics   []string
		wantRetained []bool
		wantStatus   []string
	}{
		{device.EventReading, []string{"p/hid-1/reading", "p/hid-1/event"}, []bool{false, false}, nil},
		{device.EventInfoChanged, []string{"p/hid-1/info", "p/hid-1/event"}, []bool{true, false}, nil},
		{device.EventFirmwareUpdated, []string{"p/hid-1/info", "p/hid-1/event"}, []bool{true, false}, nil},
		{device.EventUpdateStarted, []string{"p/hid-1/event"}, []bool{false}, nil},
		{device.EventRebootStarted, []string{"p/hid-1/event"}, []bool{false}, []string{mqtt.StatusRebooting}},
		{device.EventOnline, []string{"p/hid-1/info", "p/hid-1/event"}, []bool{true, false}, []string{mqtt.StatusOnline}},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			client := &fakeMQTT{}
			if err := NewMQTTSink(client, topics).Deliver(event(tt.event)); err != nil {
				t.Fatalf("Deliver() error = %v", err)
			}
			if len(client.messages) != len(tt.wantTopics) {
				t.Fatalf("published %d messages, want %d: %+v", len(client.messages), len(tt.wantTopics), client.messages)
			}
			for i, m := range client.messages {
				if m.topic != tt.wantTopics[i] || m.retained != tt.wantRetained[i] {
					t.Errorf("message %d = %s retained=%v, want %s retained=%v",
						i, m.topic, m.retained, tt.wantTopics[i], tt.wantRetained[i])
				}
			}
			if len(client.statuses) != len(tt.wantStatus) {
				t.Errorf("statuses = %v, want %v", client.statuses, tt.wantStatus)
			}
		})
	}
}

func TestMQTTSink_ReadingPayload(t *testing.T) {
	client := &fakeMQTT{}
	if err := NewMQTTSink(client, mqtt.NewTopics("p", "hid-1")).Deliver(event(device.EventReading)); err != nil {
		t.Fatal(err)
	}

	p, ok := client.messages[0].payload.(ReadingPayload)
	if !ok {
		t.Fatalf("payload type = %T", client.messages[0].payload)
	}
	if p.HID != "hid-1" || p.Value != 21.5 {
		t.Errorf("payload = %+v", p)
	}
}

func TestMQTTSink_JoinsErrors(t *testing.T) {
	notConnected := &fakeMQTT{err: mqtt.ErrNotConnected}
	err := NewMQTTSink(notConnected, mqtt.NewTopics("p", "h")).Deliver(event(device.EventOnline))
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Deliver() error = %v, want ErrNotConnected", err)
	}
}

func TestInfluxSink(t *testing.T) {
	w := &fakeWriter{}
	sink := NewInfluxSink(w)

	for _, typ := range []device.EventType{
		device.EventReading, device.EventInfoChanged, device.EventFirmwareUpdated,
		device.EventRebootStarted, device.EventFactoryReset,
	} {
		if err := sink.Deliver(event(typ)); err != nil {
			t.Fatalf("Deliver(%s) error = %v", typ, err)
		}
	}

	if len(w.readings) != 1 || w.readings[0] != 21.5 {
		t.Errorf("readings = %v", w.readings)
	}
	if len(w.versions) != 2 || w.versions[0] != 4 {
		t.Errorf("versions = %v", w.versions)
	}
}

func TestHubSink(t *testing.T) {
	hub := &fakeHub{}
	sink := NewHubSink(hub)

	events := []device.EventType{
		device.EventReading, device.EventInfoChanged, device.EventUpdateStarted,
		device.EventFirmwareUpdated, device.EventRebootStarted, device.EventOnline,
		device.EventFactoryReset,
	}
	for _, typ := range events {
		_ = sink.Deliver(event(typ))
	}

	want := []string{
		ChannelReading, ChannelInfo, ChannelFirmware,
		ChannelFirmware, ChannelLifecycle, ChannelLifecycle,
		ChannelInfo,
	}
	if len(hub.channels) != len(want) {
		t.Fatalf("channels = %v, want %v", hub.channels, want)
	}
	for i := range want {
		if hub.channels[i] != want[i] {
			t.Errorf("channel %d = %s, want %s", i, hub.channels[i], want[i])
		}
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []device.EventType
	err    error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(ev device.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev.Type)
	return s.err
}

func TestPublisher_DeliversInOrderAndFlushes(t *testing.T) {
	failing := &recordingSink{err: errors.New("down")}
	ok := &recordingSink{}
	p := NewPublisher(16, failing, nil, ok)

	listener := p.Listener()
	listener(event(device.EventUpdateStarted))
	listener(event(device.EventFirmwareUpdated))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.Wait()

	if len(ok.events) != 2 || ok.events[0] != device.EventUpdateStarted {
		t.Errorf("events = %v", ok.events)
	}
	if len(failing.events) != 2 {
		t.Errorf("a failing sink must not stop delivery, got %v", failing.events)
	}
	if delivered, dropped := p.Stats(); delivered != 2 || dropped != 0 {
		t.Errorf("Stats() = %d, %d", delivered, dropped)
	}
}

func TestPublisher_ListenerNeverBlocks(t *testing.T) {
	p := NewPublisher(1)
	var listener device.Listener = p.Listener()

	done := make(chan struct{})
	go func() {
		listener(event(device.EventReading))
		listener(event(device.EventReading))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener blocked on a full queue")
	}
	if _, dropped := p.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	p := NewPublisher(1)

	if !p.Enqueue(event(device.EventReading)) {
		t.Fatal("first Enqueue() should succeed")
	}
	if p.Enqueue(event(device.EventReading)) {
		t.Error("second Enqueue() should drop")
	}
	if _, dropped := p.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestPublisher_WithDevice(t *testing.T) {
	opts := device.DefaultOptions()
	opts.HID = "hid-live"
	opts.UpdateDuration = 5 * time.Millisecond
	dev, err := device.New(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	sink := &recordingSink{}
	p := NewPublisher(0, sink)
	dev.AddListener(p.Listener())

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	if _, err := dev.SetName("kitchen"); err != nil {
		t.Fatal(err)
	}
	if _, err := dev.UpdateFirmware(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sink.mu.Lock()
		n := len(sink.events)
		sink.mu.Unlock()
		if n >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	p.Wait()

	want := []device.EventType{device.EventInfoChanged, device.EventUpdateStarted, device.EventFirmwareUpdated}
	if len(sink.events) != len(want) {
		t.Fatalf("events = %v, want %v", sink.events, want)
	}
	for i := range want {
		if sink.events[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, sink.events[i], want[i])
		}
	}
}
