// Package device implements the simulated sensor.
//
// A Device owns one sensor's identity, configuration, firmware version and
// telemetry cache behind a single mutex. Background transitions (applying
// a firmware update, finishing a reboot) are scheduled on a per-device
// work queue and become visible only through later reads.
//
// # State
//
//	name, reading_interval     set by SetName / SetReadingInterval, restored by ResetToFactory
//	firmware_version           0..MaxFirmwareVersion, +1 per accepted UpdateFirmware
//	hid, model                 fixed at New
//
// # Firmware
//
//	Idle(v < max) --UpdateFirmware--> Updating(v) --UpdateDuration--> Idle(v+1)
//	Updating(v)   --UpdateFirmware--> Updating(v)     (no second increment)
//	AtMax         --UpdateFirmware--> AtMax           "already at latest firmware version"
//
// # Reboot
//
// Reboot makes every method return ErrUnavailable for RebootDuration.
// State is preserved across the window.
//
// # Usage
//
//	dev, err := device.New(device.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	dev.AddListener(func(ev device.Event) { ... })
//	status, _ := dev.UpdateFirmware() // "updating"
package device
