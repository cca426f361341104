package thing

import (
	"fmt"
	"reflect"
	"sync"
)

// Forwarder pushes a commanded value to the physical backing store.
// It runs synchronously inside Value.Set; a non-nil error aborts the
// update before the cached value changes.
type Forwarder func(value any) error

// Value is a single observable mutable cell holding one property's
// current value.
//
// Two mutation paths exist and both funnel through the same
// dedup/notify logic:
//
//   - Set: a client commanded a change. The forwarder (if any) runs
//     first so the physical device is updated before the cache.
//   - NotifyExternalUpdate: the device layer reported a new reading.
//     The forwarder is bypassed; only the cache and observers see it.
//
// A Value is safe for concurrent use. Drivers may call
// NotifyExternalUpdate from their own goroutines.
type Value struct {
	mu        sync.Mutex
	lastValue any
	forwarder Forwarder
	onUpdate  func(value any) // wired by Thing.AddProperty
}

// NewValue creates a value cell with an initial value and an optional
// forwarder. Pass a nil forwarder for properties with no physical
// backing store.
func NewValue(initial any, forwarder Forwarder) *Value {
	return &Value{
		lastValue: initial,
		forwarder: forwarder,
	}
}

// Set applies a caller-commanded value. The forwarder failure aborts
// the update and is returned wrapped in ErrForwarderFailed; otherwise
// the value goes through the same dedup/notify path as an external
// reading.
func (v *Value) Set(value any) error {
	if v.forwarder != nil {
		if err := v.forwarder(value); err != nil {
			return fmt.Errorf("%w: %v", ErrForwarderFailed, err)
		}
	}
	v.NotifyExternalUpdate(value)
	return nil
}

// NotifyExternalUpdate records a new reading reported by the device
// layer. A nil value, or a value equal to the cached one, is dropped
// without mutation or notification. A real change updates the cache
// and emits exactly one change notification to the owning property.
func (v *Value) NotifyExternalUpdate(value any) {
	v.mu.Lock()
	if value == nil || valuesEqual(value, v.lastValue) {
		v.mu.Unlock()
		return
	}
	v.lastValue = value
	notify := v.onUpdate
	v.mu.Unlock()

	if notify != nil {
		notify(value)
	}
}

// Get returns the cached value. It never blocks and never fails.
func (v *Value) Get() any {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastValue
}

// setNotifier wires the owning property's change observer. Called by
// Thing.AddProperty; a nil notifier detaches (Thing.RemoveProperty).
func (v *Value) setNotifier(fn func(value any)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onUpdate = fn
}

// valuesEqual compares two opaque JSON-ish values. Numeric values
// compare by magnitude regardless of Go type, so an int 50 written
// over a float64 50 from a decoded JSON body still deduplicates.
func valuesEqual(a, b any) bool {
	na, aNum := toFloat(a)
	nb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && na == nb
	}
	return reflect.DeepEqual(a, b)
}

// toFloat normalises any Go numeric type to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
