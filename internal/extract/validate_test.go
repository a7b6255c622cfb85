package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePayloadAccepts(t *testing.T) {
	payload := []byte(`{
		"tax_id": "123456789",
		"issuer_name": "Maria Santos",
		"date": "15-03-2024",
		"gross_amount": "450,00",
		"confidence": 0.92
	}`)
	assert.NoError(t, ValidatePayload(payload))
}

func TestValidatePayloadRejectsUnknownKeys(t *testing.T) {
	err := ValidatePayload([]byte(`{"merchant": "Loja"}`))
	require.Error(t, err)
}

func TestValidatePayloadRejectsWrongTypes(t *testing.T) {
	err := ValidatePayload([]byte(`{"gross_amount": 450.0}`))
	require.Error(t, err)
}

func TestValidatePayloadRejectsMalformedJSON(t *testing.T) {
	err := ValidatePayload([]byte(`{`))
	require.Error(t, err)
}
