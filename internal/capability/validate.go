// ABOUTME: Structural validation of caller-supplied arguments against a capability's
// ABOUTME: input shape: required fields, primitive types, enums, string patterns.

package capability

import (
	"fmt"
	"slices"
)

// Validate checks args against the shape. The first violation fails the
// whole call; validation never partially applies. Fields not declared in the
// shape are ignored, not rejected.
func (s InputShape) Validate(args map[string]any) error {
	for _, name := range s.Required {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("%w: missing required field %q", ErrInvalidInput, name)
		}
	}

	for name, value := range args {
		spec, declared := s.Fields[name]
		if !declared {
			continue
		}
		if err := spec.check(name, value); err != nil {
			return err
		}
	}

	return nil
}

func (f FieldSpec) check(name string, value any) error {
	switch f.Type {
	case FieldString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: field %q must be a string", ErrInvalidInput, name)
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, s) {
			return fmt.Errorf("%w: field %q must be one of %v", ErrInvalidInput, name, f.Enum)
		}
		if f.re != nil && !f.re.MatchString(s) {
			return fmt.Errorf("%w: field %q does not match pattern %q", ErrInvalidInput, name, f.Pattern)
		}
	case FieldNumber:
		if !isNumber(value) {
			return fmt.Errorf("%w: field %q must be a number", ErrInvalidInput, name)
		}
	case FieldBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: field %q must be a boolean", ErrInvalidInput, name)
		}
	}
	return nil
}

// isNumber accepts the types a decoded JSON number or a direct Go caller can
// produce.
func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}
