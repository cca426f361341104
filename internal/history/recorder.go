package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/WebThingsIO/webthing-go/internal/thing"
)

const (
	// recordBuffer is the recorder queue depth. Notifications beyond
	// this backlog are dropped.
	recordBuffer = 256

	// recordTimeout bounds each database write.
	recordTimeout = 5 * time.Second

	// pruneInterval is how often expired rows are swept.
	pruneInterval = time.Hour

	// pruneTimeout bounds one sweep.
	pruneTimeout = 30 * time.Second
)

// Logger is the logging interface used by the recorder.
// Satisfied by logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is set.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder persists thing notifications to a history repository.
//
// It subscribes to every thing in the container and writes property
// updates, action lifecycle transitions, and event occurrences as they
// happen. Writes run on a background worker so notification fan-out is
// never slowed by the database.
//
// Thread Safety: All methods are safe for concurrent use.
type Recorder struct {
	repo      Repository
	things    []*thing.Thing
	retention time.Duration

	// ch carries notifications from the thing layer to the worker.
	// Sends never block.
	ch chan thing.Notification

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewRecorder creates a recorder for every thing in the container.
//
// A retention of zero keeps history forever; otherwise rows older than
// the retention are swept periodically once Start is called.
func NewRecorder(repo Repository, things thing.Container, retention time.Duration) *Recorder {
	return &Recorder{
		repo:      repo,
		things:    things.Things(),
		retention: retention,
		ch:        make(chan thing.Notification, recordBuffer),
		done:      make(chan struct{}),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger used for recorder diagnostics.
func (r *Recorder) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
	r.loggerMu.Unlock()
}

func (r *Recorder) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// Start registers the recorder as a subscriber on every managed thing
// and launches the worker. Event kinds registered after Start are not
// recorded; build things completely before starting the recorder.
func (r *Recorder) Start() {
	for _, t := range r.things {
		t.Subscribe(r)
		for _, name := range t.AvailableEvents() {
			t.SubscribeToEvent(name, r)
		}
	}

	r.wg.Add(1)
	go r.worker()

	if r.retention > 0 {
		r.wg.Add(1)
		go r.pruneLoop()
	}

	r.getLogger().Debug("history recorder started",
		"things", len(r.things),
		"retention", r.retention.String(),
	)
}

// Stop detaches the recorder from its things and flushes the queue.
// Safe to call multiple times.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		for _, t := range r.things {
			t.Unsubscribe(r)
		}
		close(r.done)
		r.wg.Wait()
	})
}

// Notify queues a notification for persistence. Never blocks; when the
// queue is full the notification is dropped.
//
// Implements thing.Subscriber.
func (r *Recorder) Notify(n thing.Notification) {
	select {
	case r.ch <- n:
	default:
		r.getLogger().Warn("history queue full, notification dropped",
			"thing", n.ThingID,
			"kind", string(n.Kind),
		)
	}
}

// worker drains the notification queue until Stop. Queued
// notifications are flushed before returning.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case n := <-r.ch:
			r.record(n)
		case <-r.done:
			for {
				select {
				case n := <-r.ch:
					r.record(n)
				default:
					return
				}
			}
		}
	}
}

// record persists one notification. Failures are logged and dropped;
// history is an observer, never a gate on thing mutations.
func (r *Recorder) record(n thing.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	var err error
	switch n.Kind {
	case thing.NotificationProperty:
		for name, value := range n.Data {
			if recErr := r.repo.RecordProperty(ctx, n.ThingID, name, value); recErr != nil {
				err = recErr
			}
		}
	case thing.NotificationAction:
		for name, raw := range n.Data {
			desc, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			status, _ := desc["status"].(string)
			if recErr := r.repo.RecordAction(ctx, n.ThingID, name, requestID(desc), status, desc["input"]); recErr != nil {
				err = recErr
			}
		}
	case thing.NotificationEvent:
		for name, raw := range n.Data {
			var data any
			if desc, ok := raw.(map[string]any); ok {
				data = desc["data"]
			}
			if recErr := r.repo.RecordEvent(ctx, n.ThingID, name, data); recErr != nil {
				err = recErr
			}
		}
	}

	if err != nil {
		r.getLogger().Warn("recording history",
			"thing", n.ThingID,
			"kind", string(n.Kind),
			"error", err,
		)
	}
}

// requestID extracts the per-request identifier from an action
// description's href, which ends in /actions/{name}/{id}.
func requestID(desc map[string]any) string {
	href, _ := desc["href"].(string)
	if i := strings.LastIndexByte(href, '/'); i >= 0 {
		return href[i+1:]
	}
	return href
}

// pruneLoop sweeps expired rows on a fixed interval. One sweep runs
// immediately so a restart with a shorter retention takes effect.
func (r *Recorder) pruneLoop() {
	defer r.wg.Done()

	r.prune()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.prune()
		case <-r.done:
			return
		}
	}
}

func (r *Recorder) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	deleted, err := r.repo.Prune(ctx, r.retention)
	if err != nil {
		r.getLogger().Warn("pruning history", "error", err)
		return
	}
	if deleted > 0 {
		r.getLogger().Debug("history pruned", "rows", deleted)
	}
}
