// Package schema derives AI-friendly JSON shape templates from the typed
// records in pkg/models. The shapes are embedded in prompts to constrain
// model output; they are advisory scaffolding, not a validated contract —
// the only check applied to what comes back is that it parses as JSON.
//
// Shape tables are computed once per type and cached; callers get a deep
// copy they are free to mutate (tools routinely strip and replace keys).
package schema

import (
	"reflect"
	"strings"
	"sync"

	"github.com/craftwise/craftwise/backend/internal/record"
)

var (
	mu    sync.Mutex
	cache = map[reflect.Type]any{}
)

// Derive returns the JSON shape template for the type of sample.
func Derive(sample any) map[string]any {
	shape := forType(reflect.TypeOf(sample))
	m, ok := deepCopy(shape).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

func forType(t reflect.Type) any {
	mu.Lock()
	defer mu.Unlock()
	if shape, ok := cache[t]; ok {
		return shape
	}
	shape := derive(t, false)
	cache[t] = shape
	return shape
}

// derive maps a Go type to its shape. Primitives become type-name
// placeholders, enums a "/"-joined value list, slices a one-element list of
// the inner shape, maps a single example pair, structs a recursive mapping.
func derive(t reflect.Type, optional bool) any {
	if t.Kind() == reflect.Pointer {
		return derive(t.Elem(), true)
	}

	var val any = "string"

	switch {
	case record.EnumValues(t) != nil:
		val = strings.Join(record.EnumValues(t), "/")
	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		val = []any{derive(t.Elem(), false)}
	case t.Kind() == reflect.Map:
		val = map[string]any{"key": "value"}
	case t.Kind() == reflect.Struct:
		fields := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := jsonName(f)
			if name == "-" {
				continue
			}
			fields[name] = derive(f.Type, record.Optional(f))
		}
		val = fields
	case t.Kind() == reflect.String:
		val = "string"
	case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
		val = "number"
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Uint64:
		val = "integer"
	case t.Kind() == reflect.Bool:
		val = "boolean"
	}

	if optional {
		switch v := val.(type) {
		case string:
			val = v + "(optional)"
		case []any:
			// There is no clean way to mark the list itself optional in this
			// shape format, so only a scalar inner element gets the marker.
			// Known representational gap; downstream prompts rely on the
			// current form, so it stays.
			if len(v) == 1 {
				if inner, ok := v[0].(string); ok {
					v[0] = inner + "(optional)"
				}
			}
		}
	}

	return val
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = deepCopy(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = deepCopy(inner)
		}
		return out
	default:
		return v
	}
}
