package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Issue is one structural violation found while checking a value.
// Paths reference only declared fields and array indices; an empty path
// means the root value itself.
type Issue struct {
	// Path locates the offending value: field names and bracketed array
	// indices ("[2]"), outermost first. The walker brackets indices at
	// the point it descends into an array element, so a field whose
	// declared name happens to be all digits stays a plain segment.
	Path []string

	// Expected describes the declared kind and its constraints.
	Expected string

	// Received describes the kind of the value actually found.
	Received string

	// Message is a human-readable explanation of the violation.
	Message string
}

// PathString renders the path in dotted form, e.g. "items[2].name".
// The root path renders as "(root)".
func (i Issue) PathString() string {
	if len(i.Path) == 0 {
		return "(root)"
	}
	var sb strings.Builder
	for _, seg := range i.Path {
		if strings.HasPrefix(seg, "[") {
			sb.WriteString(seg)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(seg)
	}
	return sb.String()
}

// indexSegment renders an array index as a path segment.
func indexSegment(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

// Check validates a decoded JSON value against the schema, collecting
// every violation rather than stopping at the first. A nil return
// (empty slice) means the value conforms.
//
// The declared property tree drives the walk, so expected kinds and
// constraints in each Issue come from the declaration, never from
// engine error text. The compiled validator runs afterwards as a
// conformance gate; anything it alone rejects surfaces as a root issue
// carrying the engine's message.
func (s *Schema) Check(value any) []Issue {
	if s == nil || s.root == nil {
		return nil
	}

	var issues []Issue
	s.root.check(value, nil, &issues)

	if len(issues) == 0 && s.compiled != nil {
		if err := s.compiled.Validate(value); err != nil {
			issues = append(issues, Issue{
				Expected: "a value conforming to the declared schema",
				Received: receivedKind(value),
				Message:  err.Error(),
			})
		}
	}

	return issues
}

func (p *Property) check(value any, path []string, issues *[]Issue) {
	switch p.kind {
	case KindObject:
		p.checkObject(value, path, issues)
	case KindArray:
		p.checkArray(value, path, issues)
	case KindString:
		p.checkString(value, path, issues)
	case KindInteger, KindNumber:
		p.checkNumeric(value, path, issues)
	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			p.addKindMismatch(value, path, issues)
			return
		}
		p.checkEnum(b, path, issues)
	}
}

func (p *Property) checkObject(value any, path []string, issues *[]Issue) {
	obj, ok := value.(map[string]any)
	if !ok {
		p.addKindMismatch(value, path, issues)
		return
	}

	for _, field := range p.fields {
		fieldValue, present := obj[field.name]
		fieldPath := append(append([]string{}, path...), field.name)
		if !present {
			if field.required {
				*issues = append(*issues, Issue{
					Path:     fieldPath,
					Expected: field.describe(),
					Received: "missing",
					Message:  "required field is missing",
				})
			}
			continue
		}
		field.check(fieldValue, fieldPath, issues)
	}
	// Undeclared keys are tolerated: extra output is harmless as long as
	// the declared structure is present.
}

func (p *Property) checkArray(value any, path []string, issues *[]Issue) {
	arr, ok := value.([]any)
	if !ok {
		p.addKindMismatch(value, path, issues)
		return
	}

	if p.minItems != nil && len(arr) < *p.minItems {
		*issues = append(*issues, Issue{
			Path:     path,
			Expected: p.describe(),
			Received: fmt.Sprintf("array with %d items", len(arr)),
			Message:  fmt.Sprintf("must contain at least %d items", *p.minItems),
		})
	}
	if p.maxItems != nil && len(arr) > *p.maxItems {
		*issues = append(*issues, Issue{
			Path:     path,
			Expected: p.describe(),
			Received: fmt.Sprintf("array with %d items", len(arr)),
			Message:  fmt.Sprintf("must contain at most %d items", *p.maxItems),
		})
	}

	if p.items == nil {
		return
	}
	for i, item := range arr {
		itemPath := append(append([]string{}, path...), indexSegment(i))
		p.items.check(item, itemPath, issues)
	}
}

func (p *Property) checkString(value any, path []string, issues *[]Issue) {
	str, ok := value.(string)
	if !ok {
		p.addKindMismatch(value, path, issues)
		return
	}

	if p.minLength != nil && len(str) < *p.minLength {
		*issues = append(*issues, Issue{
			Path:     path,
			Expected: p.describe(),
			Received: fmt.Sprintf("string of length %d", len(str)),
			Message:  fmt.Sprintf("must be at least %d characters", *p.minLength),
		})
	}
	if p.maxLength != nil && len(str) > *p.maxLength {
		*issues = append(*issues, Issue{
			Path:     path,
			Expected: p.describe(),
			Received: fmt.Sprintf("string of length %d", len(str)),
			Message:  fmt.Sprintf("must be at most %d characters", *p.maxLength),
		})
	}
	if p.compiledPattern != nil && !p.compiledPattern.MatchString(str) {
		*issues = append(*issues, Issue{
			Path:     path,
			Expected: p.describe(),
			Received: "string",
			Message:  fmt.Sprintf("must match pattern %s", p.pattern),
		})
	}
	p.checkEnum(str, path, issues)
}

func (p *Property) checkNumeric(value any, path []string, issues *[]Issue) {
	num, ok := value.(float64)
	if !ok {
		p.addKindMismatch(value, path, issues)
		return
	}

	if p.kind == KindInteger && num != math.Trunc(num) {
		*issues = append(*issues, Issue{
			Path:     path,
			Expected: p.describe(),
			Received: "number",
			Message:  fmt.Sprintf("%v is not an integer", num),
		})
		return
	}

	if p.minimum != nil && num < *p.minimum {
		*issues = append(*issues, Issue{
			Path:     path,
			Expected: p.describe(),
			Received: string(p.kind),
			Message:  fmt.Sprintf("%v is less than the minimum of %v", num, *p.minimum),
		})
	}
	if p.maximum != nil && num > *p.maximum {
		*issues = append(*issues, Issue{
			Path:     path,
			Expected: p.describe(),
			Received: string(p.kind),
			Message:  fmt.Sprintf("%v is greater than the maximum of %v", num, *p.maximum),
		})
	}
	p.checkEnum(normalizeEnumValue(num), path, issues)
}

// checkEnum records a violation when the value is outside the declared
// enum set. Numeric enum members are normalized so 3 and 3.0 compare
// equal after JSON decoding.
func (p *Property) checkEnum(value any, path []string, issues *[]Issue) {
	if len(p.enum) == 0 {
		return
	}
	for _, allowed := range p.enum {
		if normalizeEnumValue(allowed) == value {
			return
		}
	}
	*issues = append(*issues, Issue{
		Path:     path,
		Expected: p.describe(),
		Received: receivedKind(value),
		Message:  fmt.Sprintf("%v is not one of the allowed values", value),
	})
}

func normalizeEnumValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return v
	}
}

func (p *Property) addKindMismatch(value any, path []string, issues *[]Issue) {
	*issues = append(*issues, Issue{
		Path:     path,
		Expected: p.describe(),
		Received: receivedKind(value),
		Message:  fmt.Sprintf("expected %s, found %s", p.kind, receivedKind(value)),
	})
}

// describe renders the declared kind plus its constraints, e.g.
// "integer between 1 and 10" or "string (one of: a, b, c)".
func (p *Property) describe() string {
	var sb strings.Builder
	sb.WriteString(string(p.kind))

	switch {
	case p.minimum != nil && p.maximum != nil:
		fmt.Fprintf(&sb, " between %v and %v", *p.minimum, *p.maximum)
	case p.minimum != nil:
		fmt.Fprintf(&sb, " >= %v", *p.minimum)
	case p.maximum != nil:
		fmt.Fprintf(&sb, " <= %v", *p.maximum)
	}

	if p.minLength != nil || p.maxLength != nil {
		switch {
		case p.minLength != nil && p.maxLength != nil:
			fmt.Fprintf(&sb, " of %d to %d characters", *p.minLength, *p.maxLength)
		case p.minLength != nil:
			fmt.Fprintf(&sb, " of at least %d characters", *p.minLength)
		default:
			fmt.Fprintf(&sb, " of at most %d characters", *p.maxLength)
		}
	}

	if p.minItems != nil || p.maxItems != nil {
		switch {
		case p.minItems != nil && p.maxItems != nil:
			fmt.Fprintf(&sb, " with %d to %d items", *p.minItems, *p.maxItems)
		case p.minItems != nil:
			fmt.Fprintf(&sb, " with at least %d items", *p.minItems)
		default:
			fmt.Fprintf(&sb, " with at most %d items", *p.maxItems)
		}
	}

	if len(p.enum) > 0 {
		parts := make([]string, len(p.enum))
		for i, v := range p.enum {
			parts[i] = fmt.Sprintf("%v", v)
		}
		fmt.Fprintf(&sb, " (one of: %s)", strings.Join(parts, ", "))
	}

	return sb.String()
}

// receivedKind names the JSON kind of a decoded value.
func receivedKind(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", value)
	}
}
