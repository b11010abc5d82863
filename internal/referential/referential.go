// Package referential decodes the server's referential dictionary and uses
// it to encode outbound controller requests.
//
// The controller protocol uses short numeric keys ("11", "12", ...) whose
// meaning is published by the server as an lz-string (UTF-16 variant)
// compressed JSON object mapping semantic names to those keys:
//
//	{"type": "11", "data": "12", "zone": "15", ...}
package referential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf16"

	lzstring "github.com/daku10/go-lz-string"
)

var (
	// ErrNoReferentials is returned when a request needs the dictionary
	// before the server has sent it.
	ErrNoReferentials = errors.New("referential: no referentials received")

	// ErrInvalidReferential is returned when the payload cannot be decoded.
	ErrInvalidReferential = errors.New("referential: invalid referential payload")
)

// Dictionary maps semantic key names to protocol keys.
type Dictionary map[string]string

// Decompress inflates a UTF-16 lz-string payload. The payload arrives as a
// JSON string; lz-string keeps every code unit below the surrogate range,
// so each rune maps to exactly one code unit.
func Decompress(compressed string) (string, error) {
	out, err := lzstring.DecompressFromUTF16(utf16.Encode([]rune(compressed)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidReferential, err)
	}
	if out == "" {
		return "", fmt.Errorf("%w: empty result", ErrInvalidReferential)
	}
	return out, nil
}

// Parse decompresses and decodes a referential payload.
// Numeric protocol keys are converted to their decimal string form;
// entries whose value is neither a string nor a number are skipped.
func Parse(compressed string) (Dictionary, error) {
	raw, err := Decompress(compressed)
	if err != nil {
		return nil, err
	}

	var entries map[string]any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReferential, err)
	}

	dict := make(Dictionary, len(entries))
	for name, v := range entries {
		switch key := v.(type) {
		case string:
			dict[name] = key
		case float64:
			dict[name] = strconv.FormatFloat(key, 'f', -1, 64)
		}
	}
	if len(dict) == 0 {
		return nil, fmt.Errorf("%w: no usable entries", ErrInvalidReferential)
	}
	return dict, nil
}

// Key returns the protocol key for name, or name itself when unknown.
func (d Dictionary) Key(name string) string {
	if k, ok := d[name]; ok {
		return k
	}
	return name
}

// Encode rewrites the keys of v (recursively through nested objects and
// arrays) to their protocol keys. Values are left untouched and names
// missing from the dictionary are kept as they are.
//
//	d.Encode(map[string]any{"type": "REQ_TH", "data": map[string]any{"setpoint_used": 716}})
//	// {"11": "REQ_TH", "12": {"52": 716}}
func (d Dictionary) Encode(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[d.Key(k)] = d.encodeValue(val)
	}
	return out
}

func (d Dictionary) encodeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return d.Encode(val)
	case []any:
		items := make([]any, len(val))
		for i := range val {
			items[i] = d.encodeValue(val[i])
		}
		return items
	default:
		return v
	}
}
