// Package mqtt provides MQTT client connectivity for the sensor daemon.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) on the sensor status topic
//
// # Topic tree
//
//	{prefix}/{hid}/reading        telemetry values
//	{prefix}/{hid}/info           device record (retained)
//	{prefix}/{hid}/status         online/offline/rebooting (retained, LWT)
//	{prefix}/{hid}/event          lifecycle events
//	{prefix}/{hid}/rpc            JSON-RPC requests
//	{prefix}/{hid}/rpc/response   JSON-RPC responses
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - The rpc topic bypasses the HTTP pin; restrict it with broker ACLs
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, dev.HID())
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishJSON(topics.Info(), info, true)
package mqtt
