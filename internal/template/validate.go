package template

import (
	"net/url"
	"strings"
)

// FieldError is a validation failure scoped to one template field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of validating submitted data against a template.
// Data holds only the fields that passed; a field with any error is left out.
type Result struct {
	Valid  bool         `json:"is_valid"`
	Errors []FieldError `json:"errors"`
	Data   Data         `json:"validated_data"`
}

// Validate checks data against every field of t in template order. It never
// fails: all problems are reported in the Result. Keys in data that the
// template does not declare are dropped, as are values of an unsupported JSON
// shape on fields without a structural check.
func Validate(t Template, data Data) Result {
	res := Result{
		Errors: []FieldError{},
		Data:   make(Data),
	}

	for _, f := range t.Fields {
		v := data[f.Key]
		if v.IsEmpty() {
			if f.Required {
				res.Errors = append(res.Errors, FieldError{Field: f.Key, Message: f.Label + " is required"})
			}
			continue
		}
		if v.Kind() == KindInvalid && !structural(f.Type) {
			if f.Required {
				res.Errors = append(res.Errors, FieldError{Field: f.Key, Message: f.Label + " is required"})
			}
			continue
		}

		msgs := checkValue(f, v)
		if len(msgs) > 0 {
			for _, m := range msgs {
				res.Errors = append(res.Errors, FieldError{Field: f.Key, Message: m})
			}
			continue
		}
		res.Data[f.Key] = v
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// checkValue applies the type-specific rule for a non-empty value. Text,
// textarea, date, checkbox, image and file fields have no structural check.
func checkValue(f Field, v Value) []string {
	switch f.Type {
	case TypeNumber:
		return checkNumber(f, v)
	case TypeSelect:
		if v.Kind() == KindInvalid {
			return []string{f.Label + " must be one of the allowed options"}
		}
		if len(f.Options) == 0 {
			return nil
		}
		s, ok := v.Str()
		if !ok || !contains(f.Options, s) {
			return []string{f.Label + " must be one of the allowed options"}
		}
	case TypeMultiselect:
		if elems, ok := v.Elements(); ok {
			var invalid []string
			for _, e := range elems {
				s, isStr := e.Str()
				if !isStr || (len(f.Options) > 0 && !contains(f.Options, s)) {
					invalid = append(invalid, e.Text())
				}
			}
			return []string{f.Label + " contains invalid options: " + strings.Join(invalid, ", ")}
		}
		items, ok := v.Items()
		if !ok {
			return []string{f.Label + " must be a list of options"}
		}
		if len(f.Options) == 0 {
			return nil
		}
		var invalid []string
		for _, item := range items {
			if !contains(f.Options, item) {
				invalid = append(invalid, item)
			}
		}
		if len(invalid) > 0 {
			return []string{f.Label + " contains invalid options: " + strings.Join(invalid, ", ")}
		}
	case TypeURL:
		s, ok := v.Str()
		if !ok || !isAbsoluteURL(s) {
			return []string{f.Label + " must be a valid URL"}
		}
	}
	return nil
}

// checkNumber reports a type error alone, or each violated bound independently.
func checkNumber(f Field, v Value) []string {
	n, ok := v.Num()
	if !ok {
		return []string{f.Label + " must be a number"}
	}
	var msgs []string
	if f.Min != nil && n < *f.Min {
		msgs = append(msgs, f.Label+" must be at least "+formatNumber(*f.Min))
	}
	if f.Max != nil && n > *f.Max {
		msgs = append(msgs, f.Label+" must be at most "+formatNumber(*f.Max))
	}
	return msgs
}

// structural reports whether a field type has a shape check in checkValue.
func structural(t FieldType) bool {
	switch t {
	case TypeNumber, TypeSelect, TypeMultiselect, TypeURL:
		return true
	}
	return false
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}

func contains(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}
