package bitemporal

import (
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security primitive
	"encoding/hex"
	"errors"
	"maps"
	"slices"
)

// DocumentIDAttribute is the attribute holding the Identifier of the entity a document describes.
const DocumentIDAttribute = "db/id"

// Document is one version of an entity: an immutable map from attribute name to value.
//
// An entity without a version at a Snapshot's coordinates is reported as NotFound, never as an empty Document.
type Document struct {
	attributes map[string]any
}

// DocumentFromRaw wraps an attribute map returned by an engine. Keys are taken verbatim, the map is copied.
func DocumentFromRaw(raw map[string]any) Document {
	return Document{attributes: copyAttributes(raw)}
}

// BuildDocument builds a Document for the given entity, setting DocumentIDAttribute.
func BuildDocument(id Identifier, attributes map[string]any) (Document, error) {
	if id.IsZero() {
		return Document{}, errors.Join(ErrMalformedIdentifier, errors.New("document needs an identifier"))
	}

	attrs := copyAttributes(attributes)
	attrs[DocumentIDAttribute] = id

	return Document{attributes: attrs}, nil
}

// IDFromDocument derives the entity Identifier from the document's DocumentIDAttribute.
func IDFromDocument(doc Document) (Identifier, error) {
	switch v := doc.attributes[DocumentIDAttribute].(type) {
	case Identifier:
		return v, nil
	case string:
		return ParseIdentifier(v)
	default:
		return Identifier{}, errors.Join(ErrMalformedIdentifier, errors.New("document has no "+DocumentIDAttribute))
	}
}

func (d Document) ID() (Identifier, error) {
	return IDFromDocument(d)
}

func (d Document) Get(attribute string) (any, bool) {
	v, ok := d.attributes[attribute]

	return v, ok
}

// Attributes returns the attribute names in sorted order.
func (d Document) Attributes() []string {
	return slices.Sorted(maps.Keys(d.attributes))
}

func (d Document) Len() int {
	return len(d.attributes)
}

// ToMap returns a copy of the raw attribute map.
func (d Document) ToMap() map[string]any {
	return copyAttributes(d.attributes)
}

// ContentHash fingerprints the document: hex SHA-1 over its deterministic JSON encoding.
func (d Document) ContentHash() (string, error) {
	encoded, err := EncodeValue(d.attributes)
	if err != nil {
		return "", err
	}

	sum := sha1.Sum(encoded) //nolint:gosec

	return hex.EncodeToString(sum[:]), nil
}

func copyAttributes(raw map[string]any) map[string]any {
	attrs := make(map[string]any, len(raw))
	for k, v := range raw {
		attrs[k] = copyValue(v)
	}

	return attrs
}

func copyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return copyAttributes(typed)
	case []any:
		out := make([]any, len(typed))
		for i, inner := range typed {
			out[i] = copyValue(inner)
		}
		return out
	default:
		return v
	}
}
