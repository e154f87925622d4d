// Package record converts between JSON-shaped values (map[string]any,
// []any, primitives — what encoding/json produces) and the typed structs in
// pkg/models.
//
// Decoding is deliberately lenient: model output is untrustworthy, so
// unknown keys are dropped, missing keys keep the field's zero value, and
// primitive type mismatches are ignored rather than rejected. The one hard
// failure is a malformed enum value, which returns an error that callers
// are expected to let propagate.
package record

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ── Enum registry ────────────────────────────────────────────

var (
	enumMu sync.RWMutex
	enums  = map[reflect.Type][]string{}
)

// RegisterEnum declares the allowed values for a named string type. The
// schema deriver renders registered enums as "a/b/c" and Decode rejects
// values outside the set.
func RegisterEnum(sample any, values ...string) {
	t := reflect.TypeOf(sample)
	if t.Kind() != reflect.String {
		panic(fmt.Sprintf("record: enum %s must have string kind", t))
	}
	enumMu.Lock()
	enums[t] = values
	enumMu.Unlock()
}

// EnumValues returns the registered values for t, or nil if t is not an enum.
func EnumValues(t reflect.Type) []string {
	enumMu.RLock()
	defer enumMu.RUnlock()
	return enums[t]
}

func isEnum(t reflect.Type) bool {
	enumMu.RLock()
	defer enumMu.RUnlock()
	_, ok := enums[t]
	return ok
}

// ── Encode ───────────────────────────────────────────────────

// Encode recursively converts a typed value into its JSON-shaped form:
// structs become map[string]any keyed by json tag, enums collapse to their
// underlying string, slices and maps recurse, primitives pass through.
func Encode(v any) any {
	if v == nil {
		return nil
	}
	return encodeValue(reflect.ValueOf(v))
}

func encodeValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return encodeValue(rv.Elem())
	case reflect.Struct:
		out := make(map[string]any, rv.NumField())
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := jsonName(f)
			if name == "-" {
				continue
			}
			out[name] = encodeValue(rv.Field(i))
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = encodeValue(rv.Index(i))
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = encodeValue(iter.Value())
		}
		return out
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	default:
		return rv.Interface()
	}
}

// ── Decode ───────────────────────────────────────────────────

// Decode fills out (a non-nil pointer) from a JSON-shaped value.
func Decode(data any, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("record: decode target must be a non-nil pointer")
	}
	return decodeValue(data, rv.Elem())
}

// As decodes a JSON-shaped value into a fresh T.
func As[T any](data any) (T, error) {
	var out T
	err := Decode(data, &out)
	return out, err
}

// SliceAs decodes a list of JSON-shaped values into []T, skipping nil entries.
func SliceAs[T any](data []any) ([]T, error) {
	out := make([]T, 0, len(data))
	for _, item := range data {
		if item == nil {
			continue
		}
		v, err := As[T](item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeValue(data any, dst reflect.Value) error {
	if data == nil {
		return nil
	}
	t := dst.Type()

	if isEnum(t) {
		s, ok := data.(string)
		if !ok {
			return fmt.Errorf("record: enum %s: expected string, got %T", t, data)
		}
		for _, v := range EnumValues(t) {
			if v == s {
				dst.SetString(s)
				return nil
			}
		}
		return fmt.Errorf("record: %q is not a valid %s", s, t)
	}

	switch t.Kind() {
	case reflect.Pointer:
		if dst.IsNil() {
			dst.Set(reflect.New(t.Elem()))
		}
		return decodeValue(data, dst.Elem())

	case reflect.Struct:
		m, ok := data.(map[string]any)
		if !ok {
			return nil // shape mismatch: keep defaults
		}
		fieldsByName := make(map[string]int, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			fieldsByName[jsonName(f)] = i
		}
		for key, val := range m {
			idx, ok := fieldsByName[key]
			if !ok {
				continue // unknown key: dropped silently
			}
			if err := decodeValue(val, dst.Field(idx)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice:
		items, ok := data.([]any)
		if !ok {
			return nil
		}
		out := reflect.MakeSlice(t, len(items), len(items))
		for i, item := range items {
			if err := decodeValue(item, out.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil

	case reflect.Map:
		m, ok := data.(map[string]any)
		if !ok {
			return nil
		}
		out := reflect.MakeMapWithSize(t, len(m))
		for key, val := range m {
			ev := reflect.New(t.Elem()).Elem()
			if err := decodeValue(val, ev); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(key).Convert(t.Key()), ev)
		}
		dst.Set(out)
		return nil

	case reflect.String:
		if s, ok := data.(string); ok {
			dst.SetString(s)
		}
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch n := data.(type) {
		case float64:
			dst.SetInt(int64(n))
		case int:
			dst.SetInt(int64(n))
		case int64:
			dst.SetInt(n)
		}
		return nil

	case reflect.Float32, reflect.Float64:
		switch n := data.(type) {
		case float64:
			dst.SetFloat(n)
		case int:
			dst.SetFloat(float64(n))
		case int64:
			dst.SetFloat(float64(n))
		}
		return nil

	case reflect.Bool:
		if b, ok := data.(bool); ok {
			dst.SetBool(b)
		}
		return nil

	case reflect.Interface:
		dst.Set(reflect.ValueOf(data))
		return nil
	}

	return nil
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

// Optional reports whether a struct field is marked optional for the AI
// schema (ai:"optional" tag).
func Optional(f reflect.StructField) bool {
	for _, part := range strings.Split(f.Tag.Get("ai"), ",") {
		if part == "optional" {
			return true
		}
	}
	return false
}
