package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/device"
)

// DefaultSamplePeriod is how often the sampler polls the device. The
// device only produces a new value once its reading interval has passed,
// so this only needs to be finer than the shortest interval.
const DefaultSamplePeriod = time.Second

// ReadingSource is the part of device.Device the sampler needs.
type ReadingSource interface {
	Reading() (device.Reading, error)
}

// Sampler polls a device so readings are generated, and therefore
// published, without an RPC client asking for them.
type Sampler struct {
	source ReadingSource
	period time.Duration
	logger Logger
}

// NewSampler creates a Sampler. A period of zero or less uses
// DefaultSamplePeriod.
func NewSampler(source ReadingSource, period time.Duration) *Sampler {
	if period <= 0 {
		period = DefaultSamplePeriod
	}
	return &Sampler{source: source, period: period, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (s *Sampler) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Run polls until ctx is cancelled. Polls while the device is rebooting
// are skipped silently.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.source.Reading(); err != nil && !errors.Is(err, device.ErrUnavailable) {
				s.logger.Warn("sampling reading failed", "error", err)
			}
		}
	}
}
