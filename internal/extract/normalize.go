package extract

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Normalize converts an arbitrary engine result into the stable wire
// shape: a sequence wraps as {"documents": [...]}, anything else as
// {"document": ...}. Total: never fails for any well-formed value.
func Normalize(raw any) map[string]any {
	if isSequence(raw) {
		return map[string]any{"documents": toPlain(reflect.ValueOf(raw))}
	}
	return map[string]any{"document": toPlainAny(raw)}
}

func isSequence(raw any) bool {
	if raw == nil {
		return false
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	// []byte is a leaf, not a document sequence.
	return rv.Type().Elem().Kind() != reflect.Uint8
}

func toPlainAny(v any) any {
	if v == nil {
		return nil
	}
	return toPlain(reflect.ValueOf(v))
}

// toPlain recursively converts a value into plain nested data by shape
// category: record-like values become key-value maps, sequences become
// ordered slices, mappings become key-converted maps, everything else
// passes through as a leaf. The engine's result types are opaque here,
// so shapes are detected via reflection rather than a fixed type switch.
func toPlain(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return toPlain(rv.Elem())

	case reflect.Struct:
		// Time is a struct but a semantic leaf.
		if t, ok := rv.Interface().(time.Time); ok {
			return t
		}
		return structToMap(rv)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Interface()
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = toPlain(rv.Index(i))
		}
		return out

	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = toPlain(iter.Value())
		}
		return out

	default:
		return rv.Interface()
	}
}

func structToMap(rv reflect.Value) map[string]any {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}

		name, omitEmpty := fieldName(f)
		if name == "-" {
			continue
		}

		fv := rv.Field(i)
		if omitEmpty && isEmptyValue(fv) {
			continue
		}
		out[name] = toPlain(fv)
	}
	return out
}

// fieldName resolves the wire name from the json tag, falling back to the
// Go field name.
func fieldName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name, false
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = f.Name
	}
	omitEmpty := false
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty
}

func isEmptyValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Map, reflect.Slice:
		return rv.IsNil() || rv.Len() == 0
	case reflect.String:
		return rv.Len() == 0
	default:
		return false
	}
}
