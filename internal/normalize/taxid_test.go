package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTaxID(t *testing.T) {
	for _, id := range []string{"123456789", "508721903", "215639847", "999999990"} {
		assert.True(t, ValidTaxID(id), "id %s", id)
	}
	for _, id := range []string{"123456780", "508721900", "12345678", "1234567890", "12345678X"} {
		assert.False(t, ValidTaxID(id), "id %s", id)
	}
}

func TestExtractTaxIDFullIdentifier(t *testing.T) {
	id, ok := ExtractTaxID("123456789")
	require.True(t, ok)
	assert.Equal(t, "123456789", id.Value)
	assert.False(t, id.Unreliable)
}

func TestExtractTaxIDBadChecksumFlagged(t *testing.T) {
	id, ok := ExtractTaxID("123456780")
	require.True(t, ok)
	assert.Equal(t, "123456780", id.Value)
	assert.True(t, id.Unreliable)
}

func TestExtractTaxIDLegacyReference(t *testing.T) {
	// Property/contract reference, not an identifier.
	_, ok := ExtractTaxID("1633-8")
	assert.False(t, ok)
}

func TestExtractTaxIDShortPadded(t *testing.T) {
	id, ok := ExtractTaxID("16338")
	require.True(t, ok)
	assert.Equal(t, "000016338", id.Value)
	assert.True(t, id.Unreliable)
}

func TestExtractTaxIDEmbedded(t *testing.T) {
	id, ok := ExtractTaxID("PT123456789/2024")
	require.True(t, ok)
	assert.Equal(t, "123456789", id.Value)
	assert.False(t, id.Unreliable)

	// hyphenated long reference whose joined digits are not a valid
	// identifier must not be claimed
	_, ok = ExtractTaxID("DOC2024-508721903")
	assert.False(t, ok)
}

func TestExtractTaxIDEmbeddedSuffix(t *testing.T) {
	id, ok := ExtractTaxID("2024508721903")
	require.True(t, ok)
	assert.Equal(t, "508721903", id.Value)
	assert.False(t, id.Unreliable)
}

func TestExtractTaxIDNothing(t *testing.T) {
	_, ok := ExtractTaxID("sem referência")
	assert.False(t, ok)
}
