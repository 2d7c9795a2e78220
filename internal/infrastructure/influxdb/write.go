package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by the sensor daemon. Both are tagged with the
// sensor's hid and model so several sensors can share a bucket.
const (
	MeasurementReading  = "sensor_reading"
	MeasurementFirmware = "sensor_firmware"
)

// WriteReading records one telemetry value.
func (c *Client) WriteReading(hid, model string, value float64, ts time.Time) {
	c.write(MeasurementReading, hid, model, map[string]any{"value": value}, ts)
}

// WriteFirmware records the firmware version after an update or reset.
func (c *Client) WriteFirmware(hid, model string, version int, ts time.Time) {
	c.write(MeasurementFirmware, hid, model, map[string]any{"version": version}, ts)
}

func (c *Client) write(measurement, hid, model string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	tags := map[string]string{"hid": hid, "model": model}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
	c.queued.Add(1)
}
