// Package telemetry fans device events out to the daemon's outbound
// channels: the MQTT topic tree, InfluxDB history and websocket clients.
//
// A Publisher is registered as a device listener and hands events to its
// sinks on one goroutine, so a slow broker never delays an RPC response.
//
//	pub := telemetry.NewPublisher(0,
//	    telemetry.NewMQTTSink(mqttClient, topics),
//	    telemetry.NewInfluxSink(influxClient),
//	    telemetry.NewHubSink(hub),
//	)
//	dev.AddListener(pub.Listener())
//	pub.Start(ctx)
package telemetry
