package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default option values.
const (
	DefaultModel              = "GL-TS1"
	DefaultName               = "sensor"
	DefaultReadingInterval    = 10
	DefaultMaxFirmwareVersion = 15
	DefaultUpdateDuration     = 2 * time.Second
	DefaultRebootDuration     = 3 * time.Second

	// MaxReadingInterval is the longest accepted reading interval in seconds.
	MaxReadingInterval = 86400
)

// Logger defines the logging interface used by the Device.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Device. Name, ReadingInterval and FirmwareVersion
// are also the factory defaults.
type Options struct {
	HID                string
	Model              string
	Name               string
	ReadingInterval    int
	FirmwareVersion    int
	MaxFirmwareVersion int
	UpdateDuration     time.Duration
	RebootDuration     time.Duration
	FactoryReset       FactoryResetPolicy

	// Now and Generator are replaceable for tests.
	Now       func() time.Time
	Generator Generator

	Logger Logger
}

// DefaultOptions returns Options with every field at its default.
func DefaultOptions() Options {
	return Options{
		Model:              DefaultModel,
		Name:               DefaultName,
		ReadingInterval:    DefaultReadingInterval,
		MaxFirmwareVersion: DefaultMaxFirmwareVersion,
		UpdateDuration:     DefaultUpdateDuration,
		RebootDuration:     DefaultRebootDuration,
		FactoryReset:       FactoryResetPreserve,
	}
}

// Device is the in-memory state of one simulated sensor.
//
// Every read-modify-write happens under a single mutex. Firmware updates
// and reboots complete on the device's work queue; their results are only
// observable through later reads.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Device struct {
	mu sync.Mutex

	hid   string
	model string

	factory     factoryDefaults
	name        string
	interval    int
	firmware    int
	maxFirmware int

	updating   bool
	updateGen  uint64
	rebooting  bool
	lastValue  float64
	lastEmit   time.Time
	hasReading bool

	updateDuration time.Duration
	rebootDuration time.Duration
	resetPolicy    FactoryResetPolicy

	now       func() time.Time
	generator Generator
	sched     *scheduler
	logger    Logger

	listenersMu sync.RWMutex
	listeners   []Listener

	startedAt         time.Time
	updatesApplied    uint64
	reboots           uint64
	readingsGenerated uint64
}

type factoryDefaults struct {
	name     string
	interval int
	firmware int
}

// New creates a Device and starts its work queue. Zero-valued Model, Name,
// ReadingInterval and durations take their defaults; an empty HID is
// generated.
//
// Returns:
//   - *Device: Ready device; call Close to stop background work
//   - error: ErrInvalidOptions if the options are inconsistent
func New(opts Options) (*Device, error) {
	if opts.HID == "" {
		opts.HID = uuid.NewString()
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.ReadingInterval == 0 {
		opts.ReadingInterval = DefaultReadingInterval
	}
	if opts.UpdateDuration <= 0 {
		opts.UpdateDuration = DefaultUpdateDuration
	}
	if opts.RebootDuration <= 0 {
		opts.RebootDuration = DefaultRebootDuration
	}
	if opts.FactoryReset == "" {
		opts.FactoryReset = FactoryResetPreserve
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Generator == nil {
		opts.Generator = NewTemperatureGenerator(opts.Now().UnixNano())
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	switch {
	case opts.ReadingInterval < 1 || opts.ReadingInterval > MaxReadingInterval:
		return nil, fmt.Errorf("%w: reading interval %d out of range", ErrInvalidOptions, opts.ReadingInterval)
	case opts.MaxFirmwareVersion < 0:
		return nil, fmt.Errorf("%w: negative max firmware version", ErrInvalidOptions)
	case opts.FirmwareVersion < 0 || opts.FirmwareVersion > opts.MaxFirmwareVersion:
		return nil, fmt.Errorf("%w: firmware version %d outside 0..%d", ErrInvalidOptions, opts.FirmwareVersion, opts.MaxFirmwareVersion)
	}
	if _, err := ParseFactoryResetPolicy(string(opts.FactoryReset)); err != nil {
		return nil, err
	}

	d := &Device{
		hid:   opts.HID,
		model: opts.Model,
		factory: factoryDefaults{
			name:     opts.Name,
			interval: opts.ReadingInterval,
			firmware: opts.FirmwareVersion,
		},
		name:           opts.Name,
		interval:       opts.ReadingInterval,
		firmware:       opts.FirmwareVersion,
		maxFirmware:    opts.MaxFirmwareVersion,
		updateDuration: opts.UpdateDuration,
		rebootDuration: opts.RebootDuration,
		resetPolicy:    opts.FactoryReset,
		now:            opts.Now,
		generator:      opts.Generator,
		sched:          newScheduler(),
		logger:         opts.Logger,
		startedAt:      opts.Now(),
	}

	return d, nil
}

// HID returns the immutable hardware identifier.
func (d *Device) HID() string {
	return d.hid
}

// AddListener registers fn for all subsequent events.
func (d *Device) AddListener(fn Listener) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	d.listeners = append(d.listeners, fn)
}

func (d *Device) emit(events ...Event) {
	d.listenersMu.RLock()
	listeners := d.listeners
	d.listenersMu.RUnlock()

	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}

// infoLocked builds the current record. Caller must hold d.mu.
func (d *Device) infoLocked() Info {
	return Info{
		Name:            d.name,
		HID:             d.hid,
		Model:           d.model,
		FirmwareVersion: d.firmware,
		ReadingInterval: d.interval,
	}
}

// Info returns the current device record.
//
// Returns:
//   - Info: Snapshot of identity and configuration
//   - error: ErrUnavailable while rebooting
func (d *Device) Info() (Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rebooting {
		return Info{}, ErrUnavailable
	}
	return d.infoLocked(), nil
}

// SetName replaces the device name. An empty name is rejected and the
// stored name is left unchanged.
func (d *Device) SetName(name string) (Info, error) {
	d.mu.Lock()

	if d.rebooting {
		d.mu.Unlock()
		return Info{}, ErrUnavailable
	}
	if name == "" {
		d.mu.Unlock()
		return Info{}, ErrInvalidName
	}

	d.name = name
	info := d.infoLocked()
	d.mu.Unlock()

	d.logger.Info("device renamed", "hid", d.hid, "name", name)
	d.emit(Event{Type: EventInfoChanged, Time: d.now(), Info: info})
	return info, nil
}

// SetReadingInterval sets the reading interval in seconds. The value must
// be a whole number between 1 and MaxReadingInterval; anything else is
// rejected and the stored interval is left unchanged.
func (d *Device) SetReadingInterval(seconds float64) (Info, error) {
	d.mu.Lock()

	if d.rebooting {
		d.mu.Unlock()
		return Info{}, ErrUnavailable
	}
	if math.IsNaN(seconds) || seconds != math.Trunc(seconds) || seconds < 1 || seconds > MaxReadingInterval {
		d.mu.Unlock()
		return Info{}, ErrInvalidInterval
	}

	d.interval = int(seconds)
	info := d.infoLocked()
	d.mu.Unlock()

	d.logger.Info("reading interval changed", "hid", d.hid, "interval", info.ReadingInterval)
	d.emit(Event{Type: EventInfoChanged, Time: d.now(), Info: info})
	return info, nil
}

// ResetToFactory restores the default name and reading interval and clears
// the telemetry cache. Firmware is kept or rolled back according to the
// configured FactoryResetPolicy.
func (d *Device) ResetToFactory() (Info, error) {
	d.mu.Lock()

	if d.rebooting {
		d.mu.Unlock()
		return Info{}, ErrUnavailable
	}

	d.name = d.factory.name
	d.interval = d.factory.interval
	d.hasReading = false
	if d.resetPolicy == FactoryResetFirmware {
		d.firmware = d.factory.firmware
		// A pending increment belongs to the discarded firmware line.
		d.updateGen++
		d.updating = false
	}
	info := d.infoLocked()
	d.mu.Unlock()

	d.logger.Info("factory reset", "hid", d.hid, "policy", string(d.resetPolicy), "firmware_version", info.FirmwareVersion)
	d.emit(Event{Type: EventFactoryReset, Time: d.now(), Info: info})
	return info, nil
}

// Status returns an operational snapshot, including while rebooting.
func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Status{
		Info:              d.infoLocked(),
		Available:         !d.rebooting,
		Updating:          d.updating,
		AtLatestFirmware:  d.firmware >= d.maxFirmware,
		MaxFirmware:       d.maxFirmware,
		UpdatesApplied:    d.updatesApplied,
		Reboots:           d.reboots,
		ReadingsGenerated: d.readingsGenerated,
		StartedAt:         d.startedAt,
	}
}

// Close stops the work queue. Pending firmware and reboot timers are
// dropped; a device is only closed at process shutdown.
func (d *Device) Close() {
	d.sched.close()
}
