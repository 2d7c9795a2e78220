// Package influxdb records sensor history in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring.
//
// # Measurements
//
//	sensor_reading   tags: hid, model   fields: value
//	sensor_firmware  tags: hid, model   fields: version
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history is optional
//	}
//	defer client.Close()
//
//	client.WriteReading(dev.HID(), info.Model, float64(reading), time.Now())
//
// # Error Handling
//
// Writes are batched according to config.yaml (batch_size, flush_interval)
// and failures are reported through SetOnError. Connection and health
// check errors are returned directly.
package influxdb
