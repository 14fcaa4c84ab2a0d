package bitemporal

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// IDKind tells which constructor an Identifier was built with.
type IDKind int

const (
	KeywordKind IDKind = iota + 1
	StringKind
	UUIDKind
	IntKind
)

const (
	keywordPrefix = ":"
	stringPrefix  = "str:"
	uuidPrefix    = "uuid:"
	intPrefix     = "int:"

	// IDReferenceKey is the single key of the JSON object an Identifier is encoded as inside documents and queries.
	IDReferenceKey = "@id"
)

// Identifier identifies an entity across all of its temporal versions.
//
// It is a comparable value type, two Identifiers are equal iff they were built from the same kind and value.
// The zero value is not a valid Identifier.
type Identifier struct {
	kind      IDKind
	canonical string
}

// KeywordID builds a keyword Identifier like ":person/alice". The leading colon is optional.
func KeywordID(name string) (Identifier, error) {
	name = strings.TrimPrefix(name, keywordPrefix)
	if name == "" || strings.ContainsAny(name, " \t\r\n") {
		return Identifier{}, errors.Join(ErrMalformedIdentifier, errors.New("keyword must be non-empty without whitespace"))
	}

	return Identifier{kind: KeywordKind, canonical: keywordPrefix + name}, nil
}

// StringID builds an Identifier from an arbitrary non-empty string.
func StringID(s string) (Identifier, error) {
	if s == "" {
		return Identifier{}, errors.Join(ErrMalformedIdentifier, errors.New("string id must not be empty"))
	}

	return Identifier{kind: StringKind, canonical: stringPrefix + s}, nil
}

func UUIDID(id uuid.UUID) Identifier {
	return Identifier{kind: UUIDKind, canonical: uuidPrefix + id.String()}
}

func IntID(n int64) Identifier {
	return Identifier{kind: IntKind, canonical: intPrefix + strconv.FormatInt(n, 10)}
}

// NewRandomID builds a time-ordered (v7) UUID Identifier.
func NewRandomID() (Identifier, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Identifier{}, err
	}

	return UUIDID(id), nil
}

// ParseIdentifier is the inverse of Canonical.
func ParseIdentifier(canonical string) (Identifier, error) {
	switch {
	case strings.HasPrefix(canonical, stringPrefix):
		return StringID(strings.TrimPrefix(canonical, stringPrefix))

	case strings.HasPrefix(canonical, uuidPrefix):
		id, err := uuid.Parse(strings.TrimPrefix(canonical, uuidPrefix))
		if err != nil {
			return Identifier{}, errors.Join(ErrMalformedIdentifier, err)
		}

		return UUIDID(id), nil

	case strings.HasPrefix(canonical, intPrefix):
		n, err := strconv.ParseInt(strings.TrimPrefix(canonical, intPrefix), 10, 64)
		if err != nil {
			return Identifier{}, errors.Join(ErrMalformedIdentifier, err)
		}

		return IntID(n), nil

	case strings.HasPrefix(canonical, keywordPrefix):
		return KeywordID(canonical)

	default:
		return Identifier{}, errors.Join(ErrMalformedIdentifier, errors.New("unknown identifier form: "+canonical))
	}
}

// Canonical returns the one engine representation of the Identifier.
func (id Identifier) Canonical() string {
	return id.canonical
}

func (id Identifier) Kind() IDKind {
	return id.kind
}

func (id Identifier) IsZero() bool {
	return id.kind == 0
}

func (id Identifier) String() string {
	return id.canonical
}

// MarshalJSON encodes the Identifier as a reference object {"@id": "<canonical>"}.
func (id Identifier) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return nil, errors.Join(ErrMalformedIdentifier, errors.New("cannot encode zero identifier"))
	}

	return jsonAPI.Marshal(map[string]string{IDReferenceKey: id.canonical})
}

func (id *Identifier) UnmarshalJSON(data []byte) error {
	var ref map[string]string
	if err := jsonAPI.Unmarshal(data, &ref); err != nil {
		return errors.Join(ErrMalformedIdentifier, err)
	}

	canonical, ok := ref[IDReferenceKey]
	if !ok || len(ref) != 1 {
		return errors.Join(ErrMalformedIdentifier, errors.New("expected a single @id key"))
	}

	parsed, err := ParseIdentifier(canonical)
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}

// identifierFromReference recognizes a decoded {"@id": "..."} object.
func identifierFromReference(v any) (Identifier, bool) {
	ref, ok := v.(map[string]any)
	if !ok || len(ref) != 1 {
		return Identifier{}, false
	}

	canonical, ok := ref[IDReferenceKey].(string)
	if !ok {
		return Identifier{}, false
	}

	id, err := ParseIdentifier(canonical)
	if err != nil {
		return Identifier{}, false
	}

	return id, true
}
