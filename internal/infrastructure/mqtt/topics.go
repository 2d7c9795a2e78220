package mqtt

import "fmt"

// DefaultTopicPrefix is the root of every sensor topic.
const DefaultTopicPrefix = "graylogic/sensor"

// Topics builds the topic tree of one sensor: {prefix}/{hid}/...
//
//	topics := mqtt.NewTopics("graylogic/sensor", "a1b2")
//	topics.Reading() // "graylogic/sensor/a1b2/reading"
type Topics struct {
	prefix string
	hid    string
}

// NewTopics creates a topic builder. An empty prefix uses DefaultTopicPrefix.
func NewTopics(prefix, hid string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix, hid: hid}
}

func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", t.prefix, t.hid)
}

// Reading carries telemetry values.
//
// Example: graylogic/sensor/a1b2/reading
func (t Topics) Reading() string {
	return t.base() + "/reading"
}

// Info carries the retained device record.
//
// Example: graylogic/sensor/a1b2/info
func (t Topics) Info() string {
	return t.base() + "/info"
}

// Status carries retained connectivity and lifecycle status, and the LWT.
//
// Example: graylogic/sensor/a1b2/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// Event carries lifecycle events (firmware updates, reboots, resets).
//
// Example: graylogic/sensor/a1b2/event
func (t Topics) Event() string {
	return t.base() + "/event"
}

// RPC is where JSON-RPC requests are received.
//
// Example: graylogic/sensor/a1b2/rpc
func (t Topics) RPC() string {
	return t.base() + "/rpc"
}

// RPCResponse is where JSON-RPC responses are published.
//
// Example: graylogic/sensor/a1b2/rpc/response
func (t Topics) RPCResponse() string {
	return t.base() + "/rpc/response"
}

// AllSensors matches every topic of every sensor under prefix.
//
// Example: graylogic/sensor/#
func (t Topics) AllSensors() string {
	return t.prefix + "/#"
}
