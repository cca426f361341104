package thing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ActionStatus is the lifecycle state of an action record.
type ActionStatus string

const (
	// ActionCreated is the initial state: the record exists but its
	// work body has not been scheduled.
	ActionCreated ActionStatus = "created"

	// ActionPending means the work body is running.
	ActionPending ActionStatus = "pending"

	// ActionCompleted is the terminal success state.
	ActionCompleted ActionStatus = "completed"

	// ActionCancelled is the terminal state for records cancelled
	// before completion. Cancelling a settled record is a no-op.
	ActionCancelled ActionStatus = "cancelled"

	// ActionError is the terminal state for records whose work body
	// returned an error or panicked.
	ActionError ActionStatus = "error"
)

// terminal reports whether a status admits no further transitions.
func (s ActionStatus) terminal() bool {
	return s == ActionCompleted || s == ActionCancelled || s == ActionError
}

// ActionWork is the body of one action invocation. It runs after the
// record enters pending and may read and write properties and append
// events on the owning thing. The context is cancelled when the record
// is cancelled, for bodies that poll cooperatively. A non-nil return
// settles the record in the error state.
type ActionWork func(ctx context.Context, t *Thing, input map[string]any) error

// Action is one live invocation of a registered action kind, tracked
// through the created → pending → completed lifecycle with cancelled
// and error as terminal side exits. Every transition fires an
// action-status notification on the owning thing.
type Action struct {
	mu            sync.Mutex
	id            string
	thing         *Thing
	name          string
	input         map[string]any
	hrefPrefix    string
	href          string
	status        ActionStatus
	timeRequested string
	timeCompleted string
	errMessage    string
	work          ActionWork
	ctx           context.Context
	cancel        context.CancelFunc
}

// newAction builds a created-state record. The caller (the thing's
// RequestAction) appends it to the live list and fires the creation
// notification.
func newAction(t *Thing, name string, input map[string]any, work ActionWork) *Action {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	return &Action{
		id:            id,
		thing:         t,
		name:          name,
		input:         input,
		href:          fmt.Sprintf("/actions/%s/%s", name, id),
		status:        ActionCreated,
		timeRequested: timestamp(),
		work:          work,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// ID returns the record's unique identifier.
func (a *Action) ID() string {
	return a.id
}

// Name returns the action kind name.
func (a *Action) Name() string {
	return a.name
}

// Input returns the validated input payload, nil when none was given.
func (a *Action) Input() map[string]any {
	return a.input
}

// Href returns the record href including the owning thing's prefix.
func (a *Action) Href() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hrefPrefix + a.href
}

// Status returns the current lifecycle state.
func (a *Action) Status() ActionStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// TimeRequested returns the creation timestamp.
func (a *Action) TimeRequested() string {
	return a.timeRequested
}

// TimeCompleted returns the settlement timestamp, empty while the
// record is live.
func (a *Action) TimeCompleted() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timeCompleted
}

// Err returns the failure message for records in the error state.
func (a *Action) Err() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errMessage
}

// Start drives the record through pending into a terminal state,
// running the work body in between. Callers schedule it as its own
// unit of work (typically a goroutine); the record serialises its own
// transitions, so Start is safe to race with Cancel.
//
// A record cancelled before Start does nothing. A record cancelled
// while the body runs keeps its cancelled status; the body's outcome
// is discarded.
func (a *Action) Start() {
	a.mu.Lock()
	if a.status != ActionCreated {
		a.mu.Unlock()
		return
	}
	a.status = ActionPending
	a.mu.Unlock()
	a.thing.actionNotify(a)

	err := a.invokeWork()

	a.mu.Lock()
	if a.status != ActionPending {
		a.mu.Unlock()
		return
	}
	if err != nil {
		a.status = ActionError
		a.errMessage = err.Error()
	} else {
		a.status = ActionCompleted
	}
	a.timeCompleted = timestamp()
	a.mu.Unlock()
	a.thing.actionNotify(a)
}

// invokeWork runs the body, converting a panic into an error so a
// broken action settles instead of killing its scheduler goroutine.
func (a *Action) invokeWork() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", a.name, r)
		}
	}()
	if a.work == nil {
		return nil
	}
	return a.work(a.ctx, a.thing, a.input)
}

// Cancel marks a live record cancelled and cancels its work context.
// It reports whether the record transitioned; settled records are
// untouched and report false.
func (a *Action) Cancel() bool {
	a.mu.Lock()
	if a.status.terminal() {
		a.mu.Unlock()
		return false
	}
	a.status = ActionCancelled
	a.timeCompleted = timestamp()
	a.mu.Unlock()

	a.cancel()
	a.thing.actionNotify(a)
	return true
}

// Describe returns the protocol action description, keyed by action
// name.
func (a *Action) Describe() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	inner := map[string]any{
		"href":          a.hrefPrefix + a.href,
		"timeRequested": a.timeRequested,
		"status":        string(a.status),
	}
	if a.input != nil {
		inner["input"] = a.input
	}
	if a.timeCompleted != "" {
		inner["timeCompleted"] = a.timeCompleted
	}
	if a.errMessage != "" {
		inner["error"] = a.errMessage
	}
	return map[string]any{a.name: inner}
}

// setHrefPrefix stamps the owning thing's prefix onto this record.
func (a *Action) setHrefPrefix(prefix string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hrefPrefix = prefix
}
