// Package api provides the HTTP front end of the sensor daemon.
//
// Routes:
//
//	POST /rpc      JSON-RPC 2.0 endpoint (pin required)
//	GET  /ws       WebSocket event stream (pin required)
//	GET  /audit    audit trail of state-changing calls (pin required)
//	GET  /health   liveness and dependency status
//	GET  /metrics  device, RPC and runtime counters
//
// The pin travels in the Authorization header. While the device reboots
// every connection is closed without a response, so clients observe the
// sensor as offline.
//
// The same method table can be served over MQTT on {prefix}/{hid}/rpc.
//
// # Event stream
//
// A /ws client joins channels with
//
//	{"type":"subscribe","id":"1","channels":["telemetry.reading","device.info"]}
//
// and gets an ack listing accepted and rejected channels. Joining
// device.info also sends the current device record. Events arrive as
//
//	{"type":"event","channel":"telemetry.reading","time":"...","data":{...}}
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
