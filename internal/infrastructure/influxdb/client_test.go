package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/influxdb"
)

// fakeInflux answers the ping and write endpoints of the v2 HTTP API and
// records every line-protocol body it receives.
type fakeInflux struct {
	mu     sync.Mutex
	lines  []string
	reject bool
	server *httptest.Server
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			reject := f.reject
			f.lines = append(f.lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
			f.mu.Unlock()
			if reject {
				http.Error(w, `{"code":"invalid","message":"bad point"}`, http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeInflux) waitForLine(t *testing.T, prefix string) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, line := range f.lines {
			if strings.HasPrefix(line, prefix) {
				f.mu.Unlock()
				return line
			}
		}
		f.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no line with prefix %q received", prefix)
	return ""
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "graylogic",
		Bucket:        "sensors",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, f *fakeInflux) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig(f.server.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	f := newFakeInflux(t)
	url := f.server.URL
	f.server.Close()

	if _, err := influxdb.Connect(testConfig(url)); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	f := newFakeInflux(t)
	cfg := testConfig(f.server.URL)
	cfg.BatchSize = 0
	cfg.FlushInterval = -1

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false")
	}
}

func TestHealthCheck(t *testing.T) {
	client := connect(t, newFakeInflux(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteReading(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WriteReading("hid-1", "GL-TS1", 21.5, time.Unix(1700000000, 0))
	client.Flush()

	line := f.waitForLine(t, influxdb.MeasurementReading)
	want := "sensor_reading,hid=hid-1,model=GL-TS1 value=21.5 1700000000000000000"
	if line != want {
		t.Errorf("line = %q, want %q", line, want)
	}
}

func TestWriteFirmware(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WriteFirmware("hid-1", "GL-TS1", 3, time.Unix(1700000000, 0))
	client.Flush()

	line := f.waitForLine(t, influxdb.MeasurementFirmware)
	if !strings.Contains(line, "version=3i") {
		t.Errorf("line = %q, want integer version field", line)
	}
}

func TestClose(t *testing.T) {
	client := connect(t, newFakeInflux(t))

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v", err)
	}

	// Writes after close are dropped silently.
	client.WriteReading("hid-1", "GL-TS1", 1, time.Now())
	client.Flush()
}

func TestNilClient(t *testing.T) {
	var client *influxdb.Client
	if client.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestStats(t *testing.T) {
	f := newFakeInflux(t)
	f.mu.Lock()
	f.reject = true
	f.mu.Unlock()
	client := connect(t, f)

	var mu sync.Mutex
	var reported []error
	client.SetOnError(func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	})

	client.WriteReading("hid-1", "GL-TS1", 20, time.Now())
	client.Flush()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && client.Stats().Failed == 0 {
		time.Sleep(10 * time.Millisecond)
	}

	stats := client.Stats()
	if stats.Queued != 1 || stats.Failed == 0 {
		t.Errorf("Stats() = %+v, want 1 queued and a failure", stats)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reported) == 0 {
		t.Error("error callback not invoked")
	}

	var nilClient *influxdb.Client
	if got := nilClient.Stats(); got != (influxdb.WriteStats{}) {
		t.Errorf("nil Stats() = %+v", got)
	}
}
