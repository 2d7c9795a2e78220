package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/audit"
	"github.com/nerrad567/gray-logic-sensor/internal/auth"
	"github.com/nerrad567/gray-logic-sensor/internal/device"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sensor/internal/rpc"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Device   *device.Device
	RPC      *rpc.Server
	Verifier *auth.Verifier

	// Optional collaborators. Nil disables the feature that needs them.
	Hub       *Hub // If set, the server uses this hub instead of creating its own
	MQTT      *mqtt.Client
	MQTTRPC   bool // serve the method table on the MQTT rpc topic
	InfluxDB  *influxdb.Client
	DB        *database.DB
	AuditRepo audit.Repository

	Version string
}

// Server is the HTTP front end of the sensor.
//
// It manages the HTTP listener, routes, middleware and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	device      *device.Device
	rpc         *rpc.Server
	verifier    *auth.Verifier
	mqtt        *mqtt.Client
	mqttRPC     bool
	influx      *influxdb.Client
	db          *database.DB
	auditRepo   audit.Repository
	version     string
	server      *http.Server
	listener    net.Listener
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
	replies     sync.WaitGroup     // MQTT rpc responses being published
	startTime   time.Time
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, device, RPC server, verifier)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if deps.RPC == nil {
		return nil, fmt.Errorf("rpc server is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("pin verifier is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		device:    deps.Device,
		rpc:       deps.RPC,
		verifier:  deps.Verifier,
		mqtt:      deps.MQTT,
		mqttRPC:   deps.MQTTRPC,
		influx:    deps.InfluxDB,
		db:        deps.DB,
		auditRepo: deps.AuditRepo,
		version:   deps.Version,
		startTime: time.Now(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port conflict is
// reported to the caller. Serving then continues in a background
// goroutine until Close().
//
// Parameters:
//   - ctx: Parent context for background goroutines
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	if s.mqttRPC {
		if err := s.subscribeRPC(); err != nil {
			s.logger.Warn("failed to subscribe to MQTT rpc topic", "error", err)
		}
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.mqttRPC && s.mqtt != nil && s.mqtt.IsConnected() {
		if err := s.mqtt.Unsubscribe(s.mqtt.Topics().RPC()); err != nil {
			s.logger.Warn("failed to unsubscribe from MQTT rpc topic", "error", err)
		}
	}
	s.replies.Wait()

	// Cancel background goroutines (hub)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
