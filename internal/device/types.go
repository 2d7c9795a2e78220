package device

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Info is the externally visible record of a sensor.
//
// HID and Model are fixed when the device is created. Name, FirmwareVersion
// and ReadingInterval change only through Device methods.
type Info struct {
	Name            string `json:"name"`
	HID             string `json:"hid"`
	Model           string `json:"model"`
	FirmwareVersion int    `json:"firmware_version"`
	ReadingInterval int    `json:"reading_interval"`
}

// Reading is a telemetry value.
//
// It always encodes with a decimal point (21 becomes 21.0) so dynamically
// typed clients decode it as a float.
type Reading float64

// MarshalJSON implements json.Marshaler.
func (r Reading) MarshalJSON() ([]byte, error) {
	f := float64(r)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.New("device: reading is not a finite number")
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return []byte(s), nil
}

// UpdateStatus is the acknowledgement returned for a firmware update request.
type UpdateStatus string

// Firmware update acknowledgements.
const (
	UpdateStarted  UpdateStatus = "updating"
	UpdateUpToDate UpdateStatus = "already at latest firmware version"
)

// RebootStatus is the acknowledgement returned for a reboot request.
const RebootStatus = "rebooting"

// FactoryResetPolicy controls what reset_to_factory does with firmware.
type FactoryResetPolicy string

// Factory reset policies.
const (
	// FactoryResetPreserve keeps the installed firmware version.
	FactoryResetPreserve FactoryResetPolicy = "preserve"

	// FactoryResetFirmware rolls firmware back to the initial version and
	// discards any update still in flight.
	FactoryResetFirmware FactoryResetPolicy = "reset"
)

// ParseFactoryResetPolicy converts a config value to a policy.
func ParseFactoryResetPolicy(s string) (FactoryResetPolicy, error) {
	switch FactoryResetPolicy(s) {
	case FactoryResetPreserve, FactoryResetFirmware:
		return FactoryResetPolicy(s), nil
	case "":
		return FactoryResetPreserve, nil
	default:
		return "", ErrInvalidPolicy
	}
}

// Status is an operational snapshot used by health and metrics endpoints.
// Unlike Device.Info it is available while the device is rebooting.
type Status struct {
	Info              Info      `json:"info"`
	Available         bool      `json:"available"`
	Updating          bool      `json:"updating"`
	AtLatestFirmware  bool      `json:"at_latest_firmware"`
	MaxFirmware       int       `json:"max_firmware_version"`
	UpdatesApplied    uint64    `json:"updates_applied"`
	Reboots           uint64    `json:"reboots"`
	ReadingsGenerated uint64    `json:"readings_generated"`
	StartedAt         time.Time `json:"started_at"`
}

// EventType identifies a device event.
type EventType string

// Device events.
const (
	EventInfoChanged     EventType = "info_changed"
	EventReading         EventType = "reading"
	EventUpdateStarted   EventType = "firmware_update_started"
	EventFirmwareUpdated EventType = "firmware_updated"
	EventRebootStarted   EventType = "reboot_started"
	EventOnline          EventType = "online"
	EventFactoryReset    EventType = "factory_reset"
)

// Event describes a state change. Info is the device record after the
// change; Reading is set for EventReading only.
type Event struct {
	Type    EventType `json:"type"`
	Time    time.Time `json:"time"`
	Info    Info      `json:"info"`
	Reading Reading   `json:"reading,omitempty"`
}

// Listener receives device events. It is called outside the device lock
// on the goroutine that caused the change, so it must not block.
type Listener func(Event)
