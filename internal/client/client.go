package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/device"
	"github.com/nerrad567/gray-logic-sensor/internal/rpc"
)

// DefaultTimeout bounds a single HTTP exchange.
const DefaultTimeout = 5 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 1 << 20

var (
	// ErrUnreachable is returned when no response arrived: the connection
	// was refused or dropped, or the sensor answered 503 while rebooting.
	ErrUnreachable = errors.New("client: sensor unreachable")

	// ErrUnauthorized is returned when the sensor rejects the pin.
	ErrUnauthorized = errors.New("client: pin rejected")

	// ErrBadResponse is returned for a response that is not valid JSON-RPC.
	ErrBadResponse = errors.New("client: malformed response")
)

// Client calls a sensor's JSON-RPC endpoint over HTTP.
//
// Method errors come back as *rpc.Error and can be inspected with
// errors.As.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	endpoint string
	pin      string
	http     *http.Client
	nextID   atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a Client for the sensor at baseURL (for example
// "http://127.0.0.1:8080"). The /rpc path is appended when missing.
func New(baseURL, pin string, opts ...Option) *Client {
	endpoint := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(endpoint, "/rpc") {
		endpoint += "/rpc"
	}

	c := &Client{
		endpoint: endpoint,
		pin:      pin,
		http: &http.Client{
			Timeout: DefaultTimeout,
			// A rebooting sensor drops connections; reusing an idle one
			// would report a stale failure.
			Transport: &http.Transport{DisableKeepAlives: true},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpc.Error      `json:"error"`
	ID      json.RawMessage `json:"id"`
}

// Call invokes method with params and decodes the result into result,
// which may be nil to discard it.
//
// Parameters:
//   - ctx: Cancels the HTTP exchange
//   - method: RPC method name
//   - params: Named parameters (map or struct), or nil
//   - result: Pointer to decode the result into, or nil
//
// Returns:
//   - error: ErrUnreachable, ErrUnauthorized, ErrBadResponse or *rpc.Error
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	raw, err := c.CallRaw(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("%w: decoding %s result: %w", ErrBadResponse, method, err)
	}
	return nil
}

// CallRaw invokes method and returns the undecoded result.
func (c *Client) CallRaw(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	body, err := json.Marshal(request{JSONRPC: rpc.Version, Method: method, Params: params, ID: id})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.pin)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrUnreachable, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrBadResponse, resp.StatusCode)
	}

	var out response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if out.JSONRPC != rpc.Version {
		return nil, fmt.Errorf("%w: jsonrpc version %q", ErrBadResponse, out.JSONRPC)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	if string(out.ID) != fmt.Sprint(id) {
		return nil, fmt.Errorf("%w: id %s does not match request %d", ErrBadResponse, out.ID, id)
	}
	if out.Result == nil {
		return nil, fmt.Errorf("%w: missing result", ErrBadResponse)
	}
	return out.Result, nil
}

// Info returns the device record.
func (c *Client) Info(ctx context.Context) (device.Info, error) {
	var info device.Info
	err := c.Call(ctx, "get_info", nil, &info)
	return info, err
}

// Reading returns the current telemetry value.
func (c *Client) Reading(ctx context.Context) (float64, error) {
	var v float64
	err := c.Call(ctx, "get_reading", nil, &v)
	return v, err
}

// Methods lists the RPC methods the sensor serves.
func (c *Client) Methods(ctx context.Context) ([]string, error) {
	var names []string
	err := c.Call(ctx, "get_methods", nil, &names)
	return names, err
}

// SetName renames the device and returns the updated record.
func (c *Client) SetName(ctx context.Context, name string) (device.Info, error) {
	var info device.Info
	err := c.Call(ctx, "set_name", map[string]any{"name": name}, &info)
	return info, err
}

// SetReadingInterval changes the reading interval. The value is sent as
// given so the sensor, not the client, decides whether it is acceptable.
func (c *Client) SetReadingInterval(ctx context.Context, seconds float64) (device.Info, error) {
	var info device.Info
	err := c.Call(ctx, "set_reading_interval", map[string]any{"interval": seconds}, &info)
	return info, err
}

// UpdateFirmware requests a firmware update and returns the acknowledgement.
func (c *Client) UpdateFirmware(ctx context.Context) (string, error) {
	var status string
	err := c.Call(ctx, "update_firmware", nil, &status)
	return status, err
}

// Reboot requests a reboot and returns the acknowledgement.
func (c *Client) Reboot(ctx context.Context) (string, error) {
	var status string
	err := c.Call(ctx, "reboot", nil, &status)
	return status, err
}

// ResetToFactory restores factory settings and returns the new record.
func (c *Client) ResetToFactory(ctx context.Context) (device.Info, error) {
	var info device.Info
	err := c.Call(ctx, "reset_to_factory", nil, &info)
	return info, err
}
