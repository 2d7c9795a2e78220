package device

import (
	"math"
	"math/rand/v2"
	"time"
)

// Generator produces successive telemetry values.
type Generator interface {
	// Next returns a new value given the previous one. The device calls it
	// under its lock, so implementations need no synchronisation.
	Next(prev float64) float64
}

// TemperatureGenerator simulates an indoor temperature probe as a bounded
// random walk with 0.1 degree resolution.
type TemperatureGenerator struct {
	rng  *rand.Rand
	base float64
	min  float64
	max  float64
	step float64
}

// NewTemperatureGenerator creates a generator centred on 21.0 C.
func NewTemperatureGenerator(seed int64) *TemperatureGenerator {
	return &TemperatureGenerator{
		rng:  rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)),
		base: 21.0,
		min:  15.0,
		max:  30.0,
		step: 0.4,
	}
}

// Next implements Generator. The result always differs from prev.
func (g *TemperatureGenerator) Next(prev float64) float64 {
	start := prev
	if math.IsNaN(start) || start < g.min || start > g.max {
		start = g.base
	}
	for {
		v := start + g.rng.NormFloat64()*g.step
		v = math.Max(g.min, math.Min(g.max, v))
		v = math.Round(v*10) / 10
		if v != prev {
			return v
		}
	}
}

// Reading returns the current telemetry value.
//
// Within one reading interval of the last generated value the cached value
// is returned unchanged. Once a full interval has elapsed a new value is
// generated that differs from the previous one.
//
// Returns:
//   - Reading: Current value
//   - error: ErrUnavailable while rebooting
func (d *Device) Reading() (Reading, error) {
	d.mu.Lock()

	if d.rebooting {
		d.mu.Unlock()
		return 0, ErrUnavailable
	}

	now := d.now()
	interval := time.Duration(d.interval) * time.Second
	if d.hasReading && now.Sub(d.lastEmit) < interval {
		value := d.lastValue
		d.mu.Unlock()
		return Reading(value), nil
	}

	d.lastValue = d.generator.Next(d.lastValue)
	d.lastEmit = now
	d.hasReading = true
	d.readingsGenerated++
	value := d.lastValue
	info := d.infoLocked()
	d.mu.Unlock()

	d.emit(Event{Type: EventReading, Time: now, Info: info, Reading: Reading(value)})
	return Reading(value), nil
}
