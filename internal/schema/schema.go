// Package schema interprets the backend's JSON-Schema-like input
// descriptions into typed forms the console can render and coerce.
//
// The supported surface is deliberately small: an "object" schema whose
// properties are "string", "number" or "boolean". Field kinds are resolved
// once at parse time into a closed FieldKind so unknown types fail loudly
// here instead of falling through at render time.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FieldKind is the closed set of input types a field may carry.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindBoolean
)

// String names the kind for error messages.
func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrBadSchema marks a malformed schema. This is a configuration problem
// with the backend's action definition, not a user input error, and is
// surfaced to the operator rather than next to a field.
var ErrBadSchema = errors.New("schema: malformed input schema")

// Field describes one input the form collects.
type Field struct {
	Key         string
	Kind        FieldKind
	Title       string
	Description string
}

// Label returns the display name for the field.
func (f Field) Label() string {
	if strings.TrimSpace(f.Title) != "" {
		return f.Title
	}
	return f.Key
}

// Form is a parsed schema: an ordered list of typed fields.
type Form struct {
	Fields []Field
}

// Empty reports whether the form collects no input. An action legitimately
// may require none.
func (f Form) Empty() bool {
	return len(f.Fields) == 0
}

// FieldError reports that a single field failed to coerce to its declared
// kind. It is shown next to the offending field; no network call is made
// while one exists.
type FieldError struct {
	Key  string
	Kind FieldKind
	Raw  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("schema: field %q: %q is not a valid %s", e.Key, e.Raw, e.Kind)
}

// rawSchema mirrors the wire shape of an inputSchema document.
type rawSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]rawProperty `json:"properties"`
}

type rawProperty struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Parse interprets an inputSchema document into a Form.
//
// A missing or empty document, a non-"object" type, or an object with no
// properties all yield an empty form: those are legitimate "no input
// required" shapes. A document that declares a type the console does not
// understand is ErrBadSchema.
func Parse(raw json.RawMessage) (Form, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Form{}, nil
	}
	var doc rawSchema
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Form{}, fmt.Errorf("%w: %v", ErrBadSchema, err)
	}
	if strings.TrimSpace(doc.Type) == "" {
		return Form{}, fmt.Errorf("%w: missing type", ErrBadSchema)
	}
	if doc.Type != "object" {
		return Form{}, nil
	}
	if len(doc.Properties) == 0 {
		return Form{}, nil
	}
	// json.Unmarshal gives map iteration order; re-derive the declared order
	// from the raw document so fields render the way the backend wrote them.
	keys, err := propertyOrder(raw)
	if err != nil {
		return Form{}, fmt.Errorf("%w: %v", ErrBadSchema, err)
	}
	form := Form{Fields: make([]Field, 0, len(keys))}
	for _, key := range keys {
		prop := doc.Properties[key]
		kind, ok := kindOf(prop.Type)
		if !ok {
			return Form{}, fmt.Errorf("%w: property %q has unsupported type %q", ErrBadSchema, key, prop.Type)
		}
		form.Fields = append(form.Fields, Field{
			Key:         key,
			Kind:        kind,
			Title:       strings.TrimSpace(prop.Title),
			Description: strings.TrimSpace(prop.Description),
		})
	}
	return form, nil
}

func kindOf(value string) (FieldKind, bool) {
	switch strings.TrimSpace(value) {
	case "string":
		return KindString, true
	case "number":
		return KindNumber, true
	case "boolean":
		return KindBoolean, true
	default:
		return 0, false
	}
}

// propertyOrder walks the raw JSON to recover the order property keys were
// declared in.
func propertyOrder(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	// Descend to the "properties" object.
	if _, err := dec.Token(); err != nil { // opening {
		return nil, err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)
		if name != "properties" {
			// Skip this member's value.
			var discard json.RawMessage
			if err := dec.Decode(&discard); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := dec.Token(); err != nil { // opening { of properties
			return nil, err
		}
		var keys []string
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := tok.(string)
			keys = append(keys, key)
			var discard json.RawMessage
			if err := dec.Decode(&discard); err != nil {
				return nil, err
			}
		}
		return keys, nil
	}
	return nil, nil
}

// Coerce maps a raw key/value map onto the form's declared kinds, producing
// the typed payload sent to the backend. It is a pure transform: values is
// never mutated.
//
//   - string fields pass through; an empty string is a real value, distinct
//     from an absent key.
//   - number fields parse text input; non-numeric text is a *FieldError,
//     never a silent NaN.
//   - boolean fields accept native bools and "true"/"false"-style toggle
//     text; an absent key coerces to false rather than being omitted.
//
// Coercion is idempotent: a value already of its declared type is returned
// unchanged.
func (f Form) Coerce(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(f.Fields))
	for _, field := range f.Fields {
		raw, present := values[field.Key]
		coerced, err := coerceValue(field, raw, present)
		if err != nil {
			return nil, err
		}
		if coerced != nil {
			out[field.Key] = coerced
		} else if field.Kind == KindBoolean {
			// Booleans always materialize so the payload never carries an
			// "unset vs false" ambiguity.
			out[field.Key] = false
		}
	}
	return out, nil
}

func coerceValue(field Field, raw any, present bool) (any, error) {
	switch field.Kind {
	case KindString:
		if !present {
			return nil, nil
		}
		switch v := raw.(type) {
		case string:
			return v, nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	case KindNumber:
		if !present {
			return nil, nil
		}
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				return nil, nil
			}
			parsed, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				return nil, &FieldError{Key: field.Key, Kind: field.Kind, Raw: v}
			}
			return parsed, nil
		default:
			return nil, &FieldError{Key: field.Key, Kind: field.Kind, Raw: fmt.Sprintf("%v", raw)}
		}
	case KindBoolean:
		if !present {
			return nil, nil
		}
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "yes", "on", "1":
				return true, nil
			case "false", "no", "off", "0", "":
				return false, nil
			default:
				return nil, &FieldError{Key: field.Key, Kind: field.Kind, Raw: v}
			}
		default:
			return nil, &FieldError{Key: field.Key, Kind: field.Kind, Raw: fmt.Sprintf("%v", raw)}
		}
	default:
		return nil, fmt.Errorf("%w: unhandled kind %v", ErrBadSchema, field.Kind)
	}
}
