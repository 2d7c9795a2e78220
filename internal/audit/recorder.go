package audit

import (
	"context"
	"sync"
)

// DefaultBufferSize is the recorder queue length. Entries beyond it are
// dropped so auditing never applies back-pressure to RPC calls.
const DefaultBufferSize = 256

// Logger is the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder queues entries and writes them serially to a Repository.
type Recorder struct {
	repo   Repository
	ch     chan *Entry
	logger Logger

	wg sync.WaitGroup
}

// NewRecorder creates a recorder with a queue of size entries. A size of
// zero or less uses DefaultBufferSize.
func NewRecorder(repo Repository, size int) *Recorder {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Recorder{
		repo:   repo,
		ch:     make(chan *Entry, size),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger. It must be called before Start.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Record enqueues entry without blocking. It reports false when the
// queue is full and the entry was dropped. A nil Recorder discards.
func (r *Recorder) Record(entry *Entry) bool {
	if r == nil {
		return false
	}
	select {
	case r.ch <- entry:
		return true
	default:
		r.logger.Warn("audit queue full, dropping entry", "method", entry.Method)
		return false
	}
}

// Start runs the writer until ctx is cancelled, after which queued
// entries are flushed. Wait blocks until that flush is done.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.drain(ctx)
	}()
}

// Wait blocks until the writer started by Start has exited.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) drain(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *Entry) {
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit write failed", "method", entry.Method, "error", err)
	}
}
