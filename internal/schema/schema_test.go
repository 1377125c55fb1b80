package schema

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantFields int
		wantErr    bool
	}{
		{
			name:       "object-with-properties",
			raw:        `{"type":"object","properties":{"state":{"type":"string","title":"Ship-to state"},"qty":{"type":"number"},"expedite":{"type":"boolean"}}}`,
			wantFields: 3,
		},
		{name: "empty-document", raw: "", wantFields: 0},
		{name: "null-document", raw: "null", wantFields: 0},
		{name: "non-object-schema", raw: `{"type":"string"}`, wantFields: 0},
		{name: "object-without-properties", raw: `{"type":"object"}`, wantFields: 0},
		{name: "missing-type", raw: `{"properties":{"x":{"type":"string"}}}`, wantErr: true},
		{name: "unsupported-property-type", raw: `{"type":"object","properties":{"x":{"type":"array"}}}`, wantErr: true},
		{name: "invalid-json", raw: `{"type":`, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			form, err := Parse(json.RawMessage(test.raw))
			if test.wantErr {
				if !errors.Is(err, ErrBadSchema) {
					t.Fatalf("Parse() err = %v, want ErrBadSchema", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() err = %v", err)
			}
			if len(form.Fields) != test.wantFields {
				t.Fatalf("len(Fields) = %d, want %d", len(form.Fields), test.wantFields)
			}
		})
	}
}

func TestParsePreservesDeclarationOrder(t *testing.T) {
	raw := `{"type":"object","properties":{"zeta":{"type":"string"},"alpha":{"type":"number"},"mid":{"type":"boolean"}}}`
	form, err := Parse(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	for i, key := range want {
		if form.Fields[i].Key != key {
			t.Fatalf("Fields[%d].Key = %q, want %q", i, form.Fields[i].Key, key)
		}
	}
}

func TestCoerce(t *testing.T) {
	raw := `{"type":"object","properties":{"state":{"type":"string"},"qty":{"type":"number"},"expedite":{"type":"boolean"}}}`
	form, err := Parse(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}

	t.Run("text-input", func(t *testing.T) {
		out, err := form.Coerce(map[string]any{
			"state":    "CA",
			"qty":      "12",
			"expedite": "true",
		})
		if err != nil {
			t.Fatalf("Coerce() err = %v", err)
		}
		if out["state"] != "CA" {
			t.Fatalf("state = %v", out["state"])
		}
		if out["qty"] != float64(12) {
			t.Fatalf("qty = %v (%T)", out["qty"], out["qty"])
		}
		if out["expedite"] != true {
			t.Fatalf("expedite = %v", out["expedite"])
		}
	})

	t.Run("already-typed-values-unchanged", func(t *testing.T) {
		out, err := form.Coerce(map[string]any{
			"state":    "NY",
			"qty":      float64(3),
			"expedite": true,
		})
		if err != nil {
			t.Fatalf("Coerce() err = %v", err)
		}
		if out["qty"] != float64(3) || out["expedite"] != true {
			t.Fatalf("typed values changed: %v", out)
		}
	})

	t.Run("empty-string-is-a-value", func(t *testing.T) {
		out, err := form.Coerce(map[string]any{"state": ""})
		if err != nil {
			t.Fatalf("Coerce() err = %v", err)
		}
		value, present := out["state"]
		if !present || value != "" {
			t.Fatalf("empty string dropped: %v (present=%v)", value, present)
		}
	})

	t.Run("absent-boolean-defaults-false", func(t *testing.T) {
		out, err := form.Coerce(map[string]any{})
		if err != nil {
			t.Fatalf("Coerce() err = %v", err)
		}
		if out["expedite"] != false {
			t.Fatalf("expedite = %v, want false", out["expedite"])
		}
	})

	t.Run("non-numeric-text-fails", func(t *testing.T) {
		_, err := form.Coerce(map[string]any{"qty": "plenty"})
		var fieldErr *FieldError
		if !errors.As(err, &fieldErr) {
			t.Fatalf("err = %v, want *FieldError", err)
		}
		if fieldErr.Key != "qty" {
			t.Fatalf("FieldError.Key = %q", fieldErr.Key)
		}
	})

	t.Run("bad-boolean-text-fails", func(t *testing.T) {
		_, err := form.Coerce(map[string]any{"expedite": "maybe"})
		var fieldErr *FieldError
		if !errors.As(err, &fieldErr) {
			t.Fatalf("err = %v, want *FieldError", err)
		}
	})

	t.Run("input-map-not-mutated", func(t *testing.T) {
		values := map[string]any{"qty": "7"}
		if _, err := form.Coerce(values); err != nil {
			t.Fatalf("Coerce() err = %v", err)
		}
		if values["qty"] != "7" {
			t.Fatalf("input map mutated: %v", values["qty"])
		}
	})
}

func TestFieldLabel(t *testing.T) {
	field := Field{Key: "state", Title: "Ship-to state"}
	if field.Label() != "Ship-to state" {
		t.Fatalf("Label() = %q", field.Label())
	}
	bare := Field{Key: "state"}
	if bare.Label() != "state" {
		t.Fatalf("Label() = %q", bare.Label())
	}
}
