package bitemporal

import (
	"encoding/json"
	"errors"

	jsoniter "github.com/json-iterator/go"
)

// jsonAPI sorts map keys so that encodings are deterministic, which query serialization and content hashing rely on.
var jsonAPI = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// EncodeValue encodes a document or query value with the deterministic JSON codec.
func EncodeValue(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

// DecodeValue decodes JSON produced by an engine into the value space of this package:
// integral numbers become int64, other numbers float64, and {"@id": "..."} objects become Identifiers.
func DecodeValue(data []byte) (any, error) {
	var raw any
	if err := jsonAPI.Unmarshal(data, &raw); err != nil {
		return nil, errors.Join(ErrDecodingDocumentFailed, err)
	}

	return NormalizeValue(raw), nil
}

// DecodeAttributes decodes a JSON object into an attribute map, normalizing every value like DecodeValue.
func DecodeAttributes(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := jsonAPI.Unmarshal(data, &raw); err != nil {
		return nil, errors.Join(ErrDecodingDocumentFailed, err)
	}

	attrs := make(map[string]any, len(raw))
	for k, v := range raw {
		attrs[k] = NormalizeValue(v)
	}

	return attrs, nil
}

// NormalizeValue maps a freshly decoded JSON value into the value space described at DecodeValue.
func NormalizeValue(v any) any {
	switch typed := v.(type) {
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return n
		}

		f, _ := typed.Float64()

		return f

	case map[string]any:
		if id, ok := identifierFromReference(typed); ok {
			return id
		}

		out := make(map[string]any, len(typed))
		for k, inner := range typed {
			out[k] = NormalizeValue(inner)
		}

		return out

	case []any:
		out := make([]any, len(typed))
		for i, inner := range typed {
			out[i] = NormalizeValue(inner)
		}

		return out

	default:
		return v
	}
}
