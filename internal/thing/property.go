package thing

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Metadata describes a property: its JSON type tag, optional bounds,
// and presentation hints. The zero value is a fully unconstrained
// property.
type Metadata struct {
	AtType      string   `json:"@type,omitempty"`
	Title       string   `json:"title,omitempty"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	ReadOnly    bool     `json:"readOnly,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	Enum        []any    `json:"enum,omitempty"`
}

// Float returns a pointer to f, for Metadata bounds literals.
func Float(f float64) *float64 {
	return &f
}

// asMap renders the metadata as the JSON object used both for the
// property description and as the validation schema document.
func (m *Metadata) asMap() map[string]any {
	doc := make(map[string]any)
	if m == nil {
		return doc
	}
	if m.AtType != "" {
		doc["@type"] = m.AtType
	}
	if m.Title != "" {
		doc["title"] = m.Title
	}
	if m.Type != "" {
		doc["type"] = m.Type
	}
	if m.Description != "" {
		doc["description"] = m.Description
	}
	if m.Unit != "" {
		doc["unit"] = m.Unit
	}
	if m.ReadOnly {
		doc["readOnly"] = true
	}
	if m.Minimum != nil {
		doc["minimum"] = *m.Minimum
	}
	if m.Maximum != nil {
		doc["maximum"] = *m.Maximum
	}
	if len(m.Enum) > 0 {
		doc["enum"] = m.Enum
	}
	return doc
}

// Property binds a value cell to metadata and enforces the validation
// contract on writes. A property is exclusively owned by one Thing.
type Property struct {
	thing      *Thing
	name       string
	value      *Value
	metadata   *Metadata
	schema     *gojsonschema.Schema
	hrefPrefix string
	href       string
}

// NewProperty creates a property binding name, value cell, and
// metadata. The metadata doubles as the write-validation schema and is
// compiled once here; a metadata document that does not compile is a
// construction error.
func NewProperty(name string, value *Value, metadata *Metadata) (*Property, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty property name", ErrInvalidValue)
	}
	if value == nil {
		value = NewValue(nil, nil)
	}

	p := &Property{
		name:     name,
		value:    value,
		metadata: metadata,
		href:     "/properties/" + name,
	}

	if metadata != nil {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(metadata.asMap()))
		if err != nil {
			return nil, fmt.Errorf("compiling schema for property %s: %w", name, err)
		}
		p.schema = schema
	}

	return p, nil
}

// Name returns the property name, unique within its thing.
func (p *Property) Name() string {
	return p.name
}

// Value returns the underlying value cell. Drivers hold this to feed
// readings in via NotifyExternalUpdate.
func (p *Property) Value() *Value {
	return p.value
}

// Href returns the property href including the owning thing's prefix.
func (p *Property) Href() string {
	return p.hrefPrefix + p.href
}

// GetValue returns the current cached value.
func (p *Property) GetValue() any {
	return p.value.Get()
}

// SetValue validates and applies a write. Validation failures are
// returned without touching the cell; a successful write that changes
// the cached value triggers the owning thing's property-changed
// notification exactly once before SetValue returns.
func (p *Property) SetValue(value any) error {
	if err := p.validateValue(value); err != nil {
		return err
	}
	return p.value.Set(value)
}

// ExternalUpdate feeds a device-reported reading through the cell,
// bypassing the forwarder. Intended for drivers and bridges.
func (p *Property) ExternalUpdate(value any) {
	p.value.NotifyExternalUpdate(value)
}

// validateValue enforces the metadata contract: read-only properties
// reject every write, everything else is checked against the compiled
// metadata schema.
func (p *Property) validateValue(value any) error {
	if p.metadata != nil && p.metadata.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnlyProperty, p.name)
	}
	if p.schema == nil {
		return nil
	}

	result, err := p.schema.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, p.name, err)
	}
	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.Description())
		}
		return fmt.Errorf("%w: %s: %s", ErrInvalidValue, p.name, strings.Join(reasons, "; "))
	}
	return nil
}

// Describe returns the property description: the metadata document
// augmented with the computed href link.
func (p *Property) Describe() map[string]any {
	desc := p.metadata.asMap()
	desc["links"] = []map[string]any{
		{
			"rel":  "property",
			"href": p.hrefPrefix + p.href,
		},
	}
	return desc
}

// setHrefPrefix stamps the owning thing's prefix onto this property.
// Called by the thing when the property is added or the thing is
// mounted.
func (p *Property) setHrefPrefix(prefix string) {
	p.hrefPrefix = prefix
}
