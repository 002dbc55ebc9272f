package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/idxstore/internal/backend"
)

func TestNormalizeDocument_ByteSlices(t *testing.T) {
	got, err := normalizeDocument(backend.Document{
		"doc":   backend.Document{"b": []byte("x")},
		"multi": [][]byte{[]byte("a"), []byte("b")},
		"n":     1.5,
	})
	require.NoError(t, err)

	assert.Equal(t, backend.Document{
		"doc":   map[string]any{"b": "x"},
		"multi": []any{"a", "b"},
		"n":     1.5,
	}, got)
}

func TestNormalizeDocument_TypedContainers(t *testing.T) {
	got, err := normalizeDocument(backend.Document{
		"maps":   []map[string]any{{"x": []byte("a")}},
		"bytes":  map[string][]byte{"y": []byte("b")},
		"ints":   map[int][]byte{7: []byte("c")},
		"array":  [2][]byte{[]byte("d"), []byte("e")},
		"names":  []string{"f"},
		"raw":    json.RawMessage(`{"keep":true}`),
		"nilmap": map[string]string(nil),
	})
	require.NoError(t, err)

	assert.Equal(t, []any{map[string]any{"x": "a"}}, got["maps"])
	assert.Equal(t, map[string]any{"y": "b"}, got["bytes"])
	assert.Equal(t, map[string]any{"7": "c"}, got["ints"])
	assert.Equal(t, []any{"d", "e"}, got["array"])
	assert.Equal(t, []any{"f"}, got["names"])
	assert.Equal(t, json.RawMessage(`{"keep":true}`), got["raw"])
	assert.Nil(t, got["nilmap"])
}

func TestNormalizeDocument_TypedContainerInvalidUTF8(t *testing.T) {
	_, err := normalizeDocument(backend.Document{
		"m": map[string][]byte{"y": {0xff}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "m.y")
}

func TestNormalizeDocument_ReportsPath(t *testing.T) {
	_, err := normalizeDocument(backend.Document{
		"outer": map[string]any{"list": []any{"ok", []byte{0xc3}}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "outer.list[1]")
}

func TestNormalizeDocument_RejectsInvalidKey(t *testing.T) {
	_, err := normalizeDocument(backend.Document{"bad\xff": "v"})
	assert.Error(t, err)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{"", false},
		{"painless", true},
		{false, false},
		{true, true},
		{0, false},
		{int64(2), true},
		{0.0, false},
		{uint8(1), true},
		{[]any{}, false},
		{[]any{1}, true},
		{map[string]any{}, false},
		{struct{}{}, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, truthy(tt.v), "%#v", tt.v)
	}
}
