package thing

import (
	"fmt"
	"strconv"
)

// Container resolves an external identifier to a Thing. The two
// implementations define the two addressing modes a server can run
// in: a single fixed thing, or an ordered collection addressed by
// numeric index.
type Container interface {
	// Get resolves an identifier to a thing, or ErrThingNotFound.
	Get(id string) (*Thing, error)

	// Things returns the contained things in registration order.
	Things() []*Thing

	// Name returns the container's human-readable name, used for
	// service discovery.
	Name() string

	// Mount assigns each contained thing its href prefix under
	// basePath. The server calls this exactly once before serving.
	Mount(basePath string)
}

// SingleThing serves one fixed thing. Every identifier resolves to
// it, whatever the identifier says; the conventional identifier is
// "0".
type SingleThing struct {
	thing *Thing
}

// NewSingleThing wraps one thing in single-thing addressing.
func NewSingleThing(t *Thing) *SingleThing {
	return &SingleThing{thing: t}
}

// Get resolves every identifier to the one thing.
func (s *SingleThing) Get(id string) (*Thing, error) {
	return s.thing, nil
}

// Things returns the one thing.
func (s *SingleThing) Things() []*Thing {
	return []*Thing{s.thing}
}

// Name returns the thing's title.
func (s *SingleThing) Name() string {
	return s.thing.Title()
}

// Mount assigns the thing the base path itself; a single thing is
// root-mounted.
func (s *SingleThing) Mount(basePath string) {
	s.thing.SetHrefPrefix(basePath)
}

// MultipleThings serves an ordered collection of things addressed by
// non-negative integer index.
type MultipleThings struct {
	things []*Thing
	name   string
}

// NewMultipleThings wraps a collection in indexed addressing. The
// name labels the collection for service discovery.
func NewMultipleThings(name string, things ...*Thing) *MultipleThings {
	return &MultipleThings{
		things: things,
		name:   name,
	}
}

// Get parses the identifier as a non-negative integer index.
// Out-of-range and non-numeric identifiers are ErrThingNotFound,
// never a default thing.
func (m *MultipleThings) Get(id string) (*Thing, error) {
	idx, err := strconv.Atoi(id)
	if err != nil || idx < 0 || idx >= len(m.things) {
		return nil, fmt.Errorf("%w: %q", ErrThingNotFound, id)
	}
	return m.things[idx], nil
}

// Things returns the collection in registration order.
func (m *MultipleThings) Things() []*Thing {
	return m.things
}

// Name returns the collection name.
func (m *MultipleThings) Name() string {
	return m.name
}

// Mount assigns each thing the prefix {basePath}/{index}.
func (m *MultipleThings) Mount(basePath string) {
	for i, t := range m.things {
		t.SetHrefPrefix(fmt.Sprintf("%s/%d", basePath, i))
	}
}
