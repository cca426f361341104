package driver

import (
	"context"
	"sync"
	"time"

	"github.com/WebThingsIO/webthing-go/internal/thing"
)

// defaultSampleInterval is used when no interval is configured.
const defaultSampleInterval = time.Second

// Sample reads one value from a device or sensor. Returning an error
// skips the reading; the cell keeps its last value.
type Sample func(ctx context.Context) (any, error)

// Logger is the logging interface used by samplers.
// Satisfied by logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is set.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Sampler polls a sample function on a fixed interval and applies each
// reading to a value cell as an external update.
//
// External updates dedupe unchanged readings, so a sensor that reports
// the same value every second produces one notification per actual
// change, not one per poll.
type Sampler struct {
	value    *thing.Value
	sample   Sample
	interval time.Duration

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewSampler creates a sampler feeding the given value cell.
// An interval of zero defaults to one second.
func NewSampler(value *thing.Value, sample Sample, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	return &Sampler{
		value:    value,
		sample:   sample,
		interval: interval,
		done:     make(chan struct{}),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger used for sampler diagnostics.
func (s *Sampler) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Sampler) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// Start begins polling. The loop stops when ctx is cancelled or Stop
// is called.
func (s *Sampler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.sampleLoop(ctx)
}

// Stop halts polling and waits for the loop to finish.
// Safe to call multiple times.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

// sampleLoop polls until shutdown. One reading is taken immediately so
// the cell reflects the device without waiting a full interval.
func (s *Sampler) sampleLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Sampler) poll(ctx context.Context) {
	reading, err := s.sample(ctx)
	if err != nil {
		s.getLogger().Warn("sample failed", "error", err)
		return
	}
	s.value.NotifyExternalUpdate(reading)
}
