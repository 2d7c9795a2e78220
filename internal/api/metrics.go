package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/device"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sensor/internal/rpc"
)

// healthCheckTimeout bounds the dependency probes behind GET /health.
const healthCheckTimeout = 2 * time.Second

// SystemMetrics represents the complete metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	Device        device.Status   `json:"device"`
	RPC           rpc.Stats       `json:"rpc"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	InfluxDB      InfluxMetrics   `json:"influxdb"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Enabled       bool   `json:"enabled"`
	Connected     bool   `json:"connected"`
	Sessions      uint64 `json:"sessions"`
	Subscriptions int    `json:"subscriptions"`
}

// InfluxMetrics reports the time-series sink.
type InfluxMetrics struct {
	Enabled   bool                `json:"enabled"`
	Connected bool                `json:"connected"`
	Writes    influxdb.WriteStats `json:"writes"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	Enabled         bool   `json:"enabled"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	SchemaVersion   string `json:"schema_version,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	HID        string            `json:"hid"`
	Components map[string]string `json:"components"`
}

// handleHealth reports liveness plus the state of optional dependencies.
// A failing optional dependency degrades the status but never fails the
// probe: the sensor still serves RPC without them.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     "ok",
		Version:    s.version,
		HID:        s.device.HID(),
		Components: map[string]string{},
	}

	probe := func(name string, check func(context.Context) error) {
		if err := check(ctx); err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "degraded"
			return
		}
		resp.Components[name] = "ok"
	}

	if s.mqtt != nil {
		probe("mqtt", s.mqtt.HealthCheck)
	}
	if s.influx != nil {
		probe("influxdb", s.influx.HealthCheck)
	}
	if s.db != nil {
		probe("database", s.db.HealthCheck)
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleMetrics returns device, RPC and runtime metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Device: s.device.Status(),
		RPC:    s.rpc.Stats(),
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Enabled:       true,
			Connected:     s.mqtt.IsConnected(),
			Sessions:      s.mqtt.Connects(),
			Subscriptions: s.mqtt.SubscriptionCount(),
		}
	}

	if s.influx != nil {
		metrics.InfluxDB = InfluxMetrics{
			Enabled:   true,
			Connected: s.influx.IsConnected(),
			Writes:    s.influx.Stats(),
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			Enabled:         true,
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
		if version, err := s.db.SchemaVersion(r.Context()); err == nil {
			metrics.Database.SchemaVersion = version
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
