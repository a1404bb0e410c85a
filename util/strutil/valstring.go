package strutil

import (
	"fmt"
	"reflect"
)

// Vtos converts any numeric or common type value to a string. It never
// fails on an unsupported kind — it falls back to fmt's default %v
// formatting, which makes it safe to use for summarizing arbitrary
// pipeline items in an error report. The returned error is always nil.
func Vtos(value any) (string, error) {
	v := reflect.ValueOf(value)

	// Handle nil case
	if !v.IsValid() {
		return "<nil>", nil
	}

	// Handle pointer dereferencing
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "<nil>", nil
		}
		v = v.Elem()
	}

	// Handle different types
	switch v.Kind() {
	case reflect.String:
		return v.String(), nil

	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%f", v.Float()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", v.Int()), nil

	case reflect.Bool:
		return fmt.Sprintf("%v", v.Bool()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", v.Uint()), nil

	default:
		// Unsupported kind (struct, slice, map, ...): fall back to the
		// default formatting rather than erroring, since callers like
		// ErrorReport need a best-effort summary of any item type.
		return fmt.Sprintf("%v", value), nil
	}
}
