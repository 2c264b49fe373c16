// Package template defines tenant-configurable field templates and validates
// submitted record data against them.
package template

import (
	"errors"
	"fmt"
	"time"
)

// FieldType is the closed set of input types a template field can declare.
type FieldType string

const (
	TypeText        FieldType = "text"
	TypeTextarea    FieldType = "textarea"
	TypeNumber      FieldType = "number"
	TypeDate        FieldType = "date"
	TypeSelect      FieldType = "select"
	TypeMultiselect FieldType = "multiselect"
	TypeCheckbox    FieldType = "checkbox"
	TypeImage       FieldType = "image"
	TypeFile        FieldType = "file"
	TypeURL         FieldType = "url"
)

var fieldTypes = map[FieldType]bool{
	TypeText: true, TypeTextarea: true, TypeNumber: true, TypeDate: true,
	TypeSelect: true, TypeMultiselect: true, TypeCheckbox: true,
	TypeImage: true, TypeFile: true, TypeURL: true,
}

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool { return fieldTypes[t] }

// Field is one configurable input definition.
type Field struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
}

// Template is an ordered list of fields owned by a tenant and bound to one
// record kind.
type Template struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Entity    string    `json:"entity"`
	Fields    []Field   `json:"fields"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// Keys returns the field keys in template order.
func (t Template) Keys() []string {
	keys := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Field looks up a field by key.
func (t Template) Field(key string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Check verifies the structural invariants of a template definition: unique
// non-empty keys, known types, options present for select fields and
// min <= max for number fields. All problems are reported together.
func (t Template) Check() error {
	var errs []error
	seen := make(map[string]bool, len(t.Fields))
	for i, f := range t.Fields {
		if f.Key == "" {
			errs = append(errs, fmt.Errorf("field %d: key is required", i))
			continue
		}
		if seen[f.Key] {
			errs = append(errs, fmt.Errorf("field %q: duplicate key", f.Key))
		}
		seen[f.Key] = true

		if f.Label == "" {
			errs = append(errs, fmt.Errorf("field %q: label is required", f.Key))
		}
		if !f.Type.Valid() {
			errs = append(errs, fmt.Errorf("field %q: unknown type %q", f.Key, f.Type))
			continue
		}
		if (f.Type == TypeSelect || f.Type == TypeMultiselect) && len(f.Options) == 0 {
			errs = append(errs, fmt.Errorf("field %q: %s requires options", f.Key, f.Type))
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			errs = append(errs, fmt.Errorf("field %q: min %s exceeds max %s", f.Key, formatNumber(*f.Min), formatNumber(*f.Max)))
		}
	}
	return errors.Join(errs...)
}

// RemovedKeys returns keys present in t but missing from next, in t's order.
func (t Template) RemovedKeys(next Template) []string {
	keep := make(map[string]bool, len(next.Fields))
	for _, f := range next.Fields {
		keep[f.Key] = true
	}
	var removed []string
	for _, f := range t.Fields {
		if !keep[f.Key] {
			removed = append(removed, f.Key)
		}
	}
	return removed
}
