package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/Aman-CERP/idxstore/internal/backend"
)

// normalizeDocument returns a copy of doc in which every []byte, at any
// depth, has been decoded to a string. Bytes that are not valid UTF-8 are
// rejected. doc itself is not modified.
func normalizeDocument(doc backend.Document) (backend.Document, error) {
	out, err := normalizeObject(doc, "")
	if err != nil {
		return nil, err
	}
	return backend.Document(out), nil
}

func normalizeObject(obj map[string]any, path string) (map[string]any, error) {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if !utf8.ValidString(k) {
			return nil, fmt.Errorf("field name %q under %q is not valid UTF-8", k, path)
		}
		nv, err := normalizeValue(v, joinPath(path, k))
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v any, path string) (any, error) {
	switch t := v.(type) {
	case []byte:
		if !utf8.Valid(t) {
			return nil, fmt.Errorf("field %q is not valid UTF-8", path)
		}
		return string(t), nil
	case backend.Document:
		return normalizeObject(t, path)
	case map[string]any:
		return normalizeObject(t, path)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			ne, err := normalizeValue(e, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	case [][]byte:
		out := make([]any, len(t))
		for i, e := range t {
			if !utf8.Valid(e) {
				return nil, fmt.Errorf("field %q is not valid UTF-8", fmt.Sprintf("%s[%d]", path, i))
			}
			out[i] = string(e)
		}
		return out, nil
	default:
		return normalizeReflect(v, path)
	}
}

// normalizeReflect walks maps and slices of any other element type, so a
// []byte nested in, say, []map[string]any or map[string][]byte is decoded
// too. Types with their own JSON encoding are left alone.
func normalizeReflect(v any, path string) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.(json.Marshaler); ok {
		return v, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := rv.Bytes()
			if !utf8.Valid(b) {
				return nil, fmt.Errorf("field %q is not valid UTF-8", path)
			}
			return string(b), nil
		}
		return normalizeList(rv, path)
	case reflect.Array:
		return normalizeList(rv, path)
	case reflect.Map:
		if rv.IsNil() {
			return v, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, ok := mapKey(iter.Key())
			if !ok {
				return v, nil
			}
			if !utf8.ValidString(key) {
				return nil, fmt.Errorf("field name %q under %q is not valid UTF-8", key, path)
			}
			nv, err := normalizeValue(iter.Value().Interface(), joinPath(path, key))
			if err != nil {
				return nil, err
			}
			out[key] = nv
		}
		return out, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return v, nil
		}
		return normalizeValue(rv.Elem().Interface(), path)
	default:
		return v, nil
	}
}

func normalizeList(rv reflect.Value, path string) (any, error) {
	out := make([]any, rv.Len())
	for i := range out {
		ne, err := normalizeValue(rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = ne
	}
	return out, nil
}

// mapKey renders a map key the way encoding/json does for string and
// integer kinds.
func mapKey(k reflect.Value) (string, bool) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), true
	}
	return "", false
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// truthy reports whether v would count as set: not nil, not a zero scalar,
// not an empty collection.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}
