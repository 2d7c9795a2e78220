package telemetry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-sensor/internal/device"
)

// DefaultQueueSize is the number of events buffered between the device
// and the sinks.
const DefaultQueueSize = 256

// Sink delivers device events to one destination.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Deliver handles one event. Errors are logged and do not stop
	// delivery to other sinks.
	Deliver(ev device.Event) error
}

// Logger defines the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Publisher fans device events out to sinks on a single goroutine.
//
// The device calls Listener synchronously after releasing its lock, so
// Listener never blocks: when the queue is full the event is dropped and
// counted.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Publisher struct {
	queue  chan device.Event
	sinks  []Sink
	logger Logger

	dropped   atomic.Uint64
	delivered atomic.Uint64

	wg sync.WaitGroup
}

// NewPublisher creates a Publisher over sinks. A queueSize of zero or less
// uses DefaultQueueSize. Nil sinks are skipped.
func NewPublisher(queueSize int, sinks ...Sink) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	p := &Publisher{
		queue:  make(chan device.Event, queueSize),
		logger: noopLogger{},
	}
	for _, s := range sinks {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
	return p
}

// SetLogger sets the logger. It must be called before Start.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// Listener returns the function to register with Device.AddListener.
func (p *Publisher) Listener() device.Listener {
	return func(ev device.Event) { p.Enqueue(ev) }
}

// Enqueue queues ev without blocking. It reports false if ev was dropped.
func (p *Publisher) Enqueue(ev device.Event) bool {
	select {
	case p.queue <- ev:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("telemetry queue full, dropping event", "type", ev.Type)
		return false
	}
}

// Start delivers queued events until ctx is cancelled, then flushes what
// is left in the queue.
func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case ev := <-p.queue:
				p.deliver(ev)
			case <-ctx.Done():
				for {
					select {
					case ev := <-p.queue:
						p.deliver(ev)
					default:
						return
					}
				}
			}
		}
	}()
}

// Wait blocks until the goroutine started by Start has exited.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

func (p *Publisher) deliver(ev device.Event) {
	for _, s := range p.sinks {
		if err := s.Deliver(ev); err != nil {
			p.logger.Debug("telemetry delivery failed", "sink", s.Name(), "type", ev.Type, "error", err)
		}
	}
	p.delivered.Add(1)
}

// Stats reports how many events were delivered and dropped.
func (p *Publisher) Stats() (delivered, dropped uint64) {
	return p.delivered.Load(), p.dropped.Load()
}
