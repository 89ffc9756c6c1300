// Package schema declares and validates the structure an LLM response
// must satisfy.
//
// # Quick Start
//
//	s := schema.MustCompile(schema.Object(
//	    schema.String("name", "Person's name").Required(),
//	    schema.Integer("score", "Quality score").Min(1).Max(10).Required(),
//	    schema.Array("tags", "Free-form tags", schema.String("", "Tag")).MaxItems(5),
//	))
//
//	issues := s.Check(decodedValue)
//	// issues is empty when the value conforms; otherwise one entry per
//	// violation, in the order fields were declared.
//
// Object fields keep their declaration order, so violation lists and the
// feedback built from them are stable across runs.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Kind identifies the JSON kind a property accepts.
type Kind string

const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
)

// Schema is a compiled structural description of the required output.
// It holds the declared property tree (for violation collection and
// prompt rendering), the raw map representation, and a compiled
// validator used as a final conformance gate.
type Schema struct {
	root     *Property
	raw      map[string]any
	compiled *jsonschema.Schema
}

// Raw returns the underlying JSON Schema map. Useful for serialization
// and for passing to providers that accept schemas natively.
func (s *Schema) Raw() map[string]any {
	if s == nil {
		return nil
	}
	return s.raw
}

// Describe renders the schema as indented JSON for inclusion in prompts.
func (s *Schema) Describe() string {
	if s == nil || s.raw == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(s.raw, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Compile builds a Schema from a declared property tree.
// Returns an error if the declaration is malformed (bad regex pattern,
// or a schema the underlying compiler rejects).
func Compile(root *Property) (*Schema, error) {
	if root == nil {
		return nil, fmt.Errorf("schema: nil property tree")
	}

	if err := root.compilePatterns(); err != nil {
		return nil, err
	}

	raw := root.build()

	// Marshal the schema to JSON for the compiler.
	schemaJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: failed to marshal schema: %w", err)
	}

	schemaData, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
	if err != nil {
		return nil, fmt.Errorf("schema: failed to parse schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("schema: failed to add schema resource: %w", err)
	}

	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("schema: failed to compile schema: %w", err)
	}

	return &Schema{
		root:     root,
		raw:      raw,
		compiled: compiled,
	}, nil
}

// MustCompile is like Compile but panics on error.
// Use this for schemas declared at init time.
func MustCompile(root *Property) *Schema {
	s, err := Compile(root)
	if err != nil {
		panic(err)
	}
	return s
}

// -----------------------------------------------------------------------------
// Property Builders
// -----------------------------------------------------------------------------

// Property is one node in a declared schema: a named field of an object,
// the item type of an array, or the root value itself.
type Property struct {
	name        string
	kind        Kind
	description string
	required    bool

	enum      []any
	minimum   *float64
	maximum   *float64
	minLength *int
	maxLength *int
	minItems  *int
	maxItems  *int
	pattern   string

	items  *Property   // array element type
	fields []*Property // object fields, in declaration order

	compiledPattern *regexp.Regexp
}

// Object creates an object property whose fields keep declaration order.
// Most schemas use this as their root.
//
// Example:
//
//	schema.Object(
//	    schema.String("name", "User name").Required(),
//	    schema.Integer("age", "User age").Min(0),
//	)
func Object(fields ...*Property) *Property {
	return &Property{kind: KindObject, fields: fields}
}

// ObjectField creates a named nested object property.
func ObjectField(name, description string, fields ...*Property) *Property {
	return &Property{name: name, kind: KindObject, description: description, fields: fields}
}

// String creates a string property.
func String(name, description string) *Property {
	return &Property{name: name, kind: KindString, description: description}
}

// Integer creates an integer property.
func Integer(name, description string) *Property {
	return &Property{name: name, kind: KindInteger, description: description}
}

// Number creates a number property (floating point).
func Number(name, description string) *Property {
	return &Property{name: name, kind: KindNumber, description: description}
}

// Boolean creates a boolean property.
func Boolean(name, description string) *Property {
	return &Property{name: name, kind: KindBoolean, description: description}
}

// Array creates an array property with the given item type.
// The item property's name is ignored.
func Array(name, description string, items *Property) *Property {
	return &Property{name: name, kind: KindArray, description: description, items: items}
}

// Name returns the property's declared field name (empty for roots and
// array items).
func (p *Property) Name() string {
	return p.name
}

// Kind returns the JSON kind this property accepts.
func (p *Property) Kind() Kind {
	return p.kind
}

// Required marks the property as required within its parent object.
func (p *Property) Required() *Property {
	p.required = true
	return p
}

// Enum restricts the property to a fixed set of allowed values.
//
// Example:
//
//	schema.String("status", "Order status").Enum("pending", "active", "closed")
func (p *Property) Enum(values ...any) *Property {
	p.enum = values
	return p
}

// Min sets the minimum value for integer/number properties.
func (p *Property) Min(min float64) *Property {
	p.minimum = &min
	return p
}

// Max sets the maximum value for integer/number properties.
func (p *Property) Max(max float64) *Property {
	p.maximum = &max
	return p
}

// MinLength sets the minimum length for string properties.
func (p *Property) MinLength(min int) *Property {
	p.minLength = &min
	return p
}

// MaxLength sets the maximum length for string properties.
func (p *Property) MaxLength(max int) *Property {
	p.maxLength = &max
	return p
}

// MinItems sets the minimum element count for array properties.
func (p *Property) MinItems(min int) *Property {
	p.minItems = &min
	return p
}

// MaxItems sets the maximum element count for array properties.
func (p *Property) MaxItems(max int) *Property {
	p.maxItems = &max
	return p
}

// Pattern sets a regex pattern for string validation.
// The pattern is compiled by [Compile]; an invalid pattern is a
// compile-time error, not a runtime violation.
func (p *Property) Pattern(pattern string) *Property {
	p.pattern = pattern
	return p
}

// build produces the raw JSON Schema map for this property subtree.
func (p *Property) build() map[string]any {
	m := map[string]any{"type": string(p.kind)}

	if p.description != "" {
		m["description"] = p.description
	}
	if len(p.enum) > 0 {
		m["enum"] = p.enum
	}
	if p.minimum != nil {
		m["minimum"] = *p.minimum
	}
	if p.maximum != nil {
		m["maximum"] = *p.maximum
	}
	if p.minLength != nil {
		m["minLength"] = *p.minLength
	}
	if p.maxLength != nil {
		m["maxLength"] = *p.maxLength
	}
	if p.pattern != "" {
		m["pattern"] = p.pattern
	}
	if p.minItems != nil {
		m["minItems"] = *p.minItems
	}
	if p.maxItems != nil {
		m["maxItems"] = *p.maxItems
	}
	if p.kind == KindArray && p.items != nil {
		m["items"] = p.items.build()
	}
	if p.kind == KindObject {
		props := make(map[string]any, len(p.fields))
		required := make([]string, 0, len(p.fields))
		for _, field := range p.fields {
			props[field.name] = field.build()
			if field.required {
				required = append(required, field.name)
			}
		}
		m["properties"] = props
		if len(required) > 0 {
			m["required"] = required
		}
	}

	return m
}

// compilePatterns compiles every declared regex in the subtree.
func (p *Property) compilePatterns() error {
	if p.pattern != "" {
		re, err := regexp.Compile(p.pattern)
		if err != nil {
			return fmt.Errorf("schema: invalid pattern for %q: %w", p.name, err)
		}
		p.compiledPattern = re
	}
	if p.items != nil {
		if err := p.items.compilePatterns(); err != nil {
			return err
		}
	}
	for _, field := range p.fields {
		if err := field.compilePatterns(); err != nil {
			return err
		}
	}
	return nil
}
