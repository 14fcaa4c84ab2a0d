package bitemporal_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

func Test_Identifier_CanonicalForms(t *testing.T) {
	keyword, err := bitemporal.KeywordID("person/alice")
	require.NoError(t, err)

	keywordWithColon, err := bitemporal.KeywordID(":person/alice")
	require.NoError(t, err)

	str, err := bitemporal.StringID("alice")
	require.NoError(t, err)

	fixedUUID := uuid.MustParse("0190a4b8-7c2e-7d4a-9f3b-2a1c5e6d7f80")

	tests := []struct {
		name              string
		id                bitemporal.Identifier
		expectedCanonical string
		expectedKind      bitemporal.IDKind
	}{
		{name: "keyword", id: keyword, expectedCanonical: ":person/alice", expectedKind: bitemporal.KeywordKind},
		{name: "keyword with leading colon", id: keywordWithColon, expectedCanonical: ":person/alice", expectedKind: bitemporal.KeywordKind},
		{name: "string", id: str, expectedCanonical: "str:alice", expectedKind: bitemporal.StringKind},
		{name: "uuid", id: bitemporal.UUIDID(fixedUUID), expectedCanonical: "uuid:0190a4b8-7c2e-7d4a-9f3b-2a1c5e6d7f80", expectedKind: bitemporal.UUIDKind},
		{name: "int", id: bitemporal.IntID(-42), expectedCanonical: "int:-42", expectedKind: bitemporal.IntKind},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedCanonical, tc.id.Canonical())
			assert.Equal(t, tc.expectedKind, tc.id.Kind())
			assert.False(t, tc.id.IsZero())

			parsed, parseErr := bitemporal.ParseIdentifier(tc.id.Canonical())
			assert.NoError(t, parseErr)
			assert.Equal(t, tc.id, parsed)
		})
	}
}

func Test_Identifier_Equality(t *testing.T) {
	a1, _ := bitemporal.KeywordID(":a")
	a2, _ := bitemporal.KeywordID("a")
	strA, _ := bitemporal.StringID("a")

	assert.Equal(t, a1, a2)
	assert.True(t, a1 == a2)
	assert.NotEqual(t, a1, strA, "same text of a different kind must differ")
	assert.NotEqual(t, bitemporal.IntID(1), bitemporal.IntID(2))
}

func Test_Identifier_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		build func() error
	}{
		{name: "empty keyword", build: func() error { _, err := bitemporal.KeywordID(":"); return err }},
		{name: "keyword with whitespace", build: func() error { _, err := bitemporal.KeywordID("a b"); return err }},
		{name: "empty string id", build: func() error { _, err := bitemporal.StringID(""); return err }},
		{name: "unknown canonical form", build: func() error { _, err := bitemporal.ParseIdentifier("alice"); return err }},
		{name: "bad uuid", build: func() error { _, err := bitemporal.ParseIdentifier("uuid:nope"); return err }},
		{name: "bad int", build: func() error { _, err := bitemporal.ParseIdentifier("int:1.5"); return err }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.build(), bitemporal.ErrMalformedIdentifier)
		})
	}
}

func Test_Identifier_JSONReference(t *testing.T) {
	// arrange
	id := bitemporal.IntID(7)

	// act
	encoded, err := id.MarshalJSON()
	require.NoError(t, err)

	var decoded bitemporal.Identifier
	decodeErr := decoded.UnmarshalJSON(encoded)

	// assert
	assert.JSONEq(t, `{"@id":"int:7"}`, string(encoded))
	assert.NoError(t, decodeErr)
	assert.Equal(t, id, decoded)
}

func Test_Identifier_ZeroValue_CannotBeEncoded(t *testing.T) {
	var zero bitemporal.Identifier

	_, err := zero.MarshalJSON()

	assert.True(t, zero.IsZero())
	assert.ErrorIs(t, err, bitemporal.ErrMalformedIdentifier)
}

func Test_NewRandomID_IsUUIDKind(t *testing.T) {
	id1, err := bitemporal.NewRandomID()
	require.NoError(t, err)

	id2, err := bitemporal.NewRandomID()
	require.NoError(t, err)

	assert.Equal(t, bitemporal.UUIDKind, id1.Kind())
	assert.NotEqual(t, id1, id2)
}
