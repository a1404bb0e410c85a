package pipeline

import "reflect"

// asSlice converts v into a []any if v is a slice or array of any
// element type (the generalisation of Python's "iterable" check for
// Unpack/Repack/Pool collections). The second return value is
// false if v is not a slice/array.
func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	default:
		return nil, false
	}
}
