// Package thing implements the Web of Things core model: things,
// properties, actions, events, and the notification fan-out that keeps
// streaming subscribers consistent with REST-observed state.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                             Thing                                │
//	│                                                                  │
//	│  ┌────────────────┐  ┌─────────────────┐  ┌──────────────────┐  │
//	│  │   Properties   │  │     Actions     │  │      Events      │  │
//	│  │ (property.go)  │  │   (action.go)   │  │    (event.go)    │  │
//	│  │                │  │                 │  │                  │  │
//	│  │ • Value cells  │  │ • Kind registry │  │ • Kind registry  │  │
//	│  │ • Validation   │  │ • Live records  │  │ • Append-only    │  │
//	│  │ • Forwarders   │  │ • State machine │  │   log            │  │
//	│  └───────┬────────┘  └────────┬────────┘  └────────┬─────────┘  │
//	│          │                    │                    │            │
//	│          └─────────────┬──────┴────────────────────┘            │
//	│                        ▼                                        │
//	│              Subscriber fan-out (subscriber.go)                 │
//	│     propertyStatus / actionStatus / event notifications         │
//	└──────────────────────────────────────────────────────────────────┘
//	                         ▲
//	                         │ resolve by identifier
//	              ┌──────────┴──────────┐
//	              │ SingleThing /       │
//	              │ MultipleThings      │
//	              │   (container.go)    │
//	              └─────────────────────┘
//
// # Key Types
//
//   - Thing: the aggregate root. Owns properties, action kinds and live
//     action records, event kinds and the event log, and the subscriber
//     registry. Every mutation and every notification goes through it.
//   - Property: a named, typed, observable state value. Writes are
//     validated against the property's metadata before the value cell
//     is touched.
//   - Value: the observable cell behind a property. Separates "a client
//     commanded a change" (Set, which runs the forwarder) from "the
//     device reported a reading" (NotifyExternalUpdate, which does not).
//   - Action: one asynchronous invocation of a registered action kind,
//     tracked through created → pending → completed, with cancelled and
//     error as terminal side exits.
//   - Event: an immutable timestamped occurrence appended to the
//     thing's event log.
//   - Subscriber: an opaque handle receiving fan-out notifications,
//     thing-wide or scoped to single event names.
//
// # Usage
//
//	lamp := thing.NewThing("urn:dev:ops:lamp-1", "My Lamp",
//	    []string{"OnOffSwitch", "Light"}, "A web connected lamp")
//
//	level, _ := thing.NewProperty("level",
//	    thing.NewValue(50, nil),
//	    &thing.Metadata{
//	        AtType:  "BrightnessProperty",
//	        Type:    "integer",
//	        Minimum: thing.Float(0),
//	        Maximum: thing.Float(100),
//	        Unit:    "percent",
//	    })
//	lamp.AddProperty(level)
//
//	lamp.AddAvailableAction("fade", map[string]any{
//	    "title": "Fade",
//	    "input": map[string]any{
//	        "type":     "object",
//	        "required": []any{"level", "duration"},
//	    },
//	}, func(ctx context.Context, t *thing.Thing, input map[string]any) error {
//	    return t.SetProperty("level", input["level"])
//	})
//
//	action, err := lamp.RequestAction("fade", map[string]any{
//	    "level": 10, "duration": 0,
//	})
//	if err == nil {
//	    go action.Start()
//	}
//
// # Thread Safety
//
// A Thing is safe for concurrent use. Mutations are serialised per
// Thing; distinct Things never coordinate. Notification delivery for a
// mutation completes before the mutating call returns, with the
// subscriber set snapshotted first so concurrent unsubscribes cannot
// corrupt an in-flight delivery loop.
package thing
