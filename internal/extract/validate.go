package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fieldsSchema constrains what a recognition payload may contain before the
// queue accepts it. Strict on keys so a drifting collaborator fails loudly
// instead of feeding garbage into reconciliation.
var fieldsSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"reference":       map[string]any{"type": "string"},
		"tax_id":          map[string]any{"type": "string"},
		"issuer_name":     map[string]any{"type": "string"},
		"payer_name":      map[string]any{"type": "string"},
		"date":            map[string]any{"type": "string"},
		"gross_amount":    map[string]any{"type": "string"},
		"withheld_amount": map[string]any{"type": "string"},
		"net_amount":      map[string]any{"type": "string"},
		"rate":            map[string]any{"type": "string"},
		"category":        map[string]any{"type": "string"},
		"confidence":      map[string]any{"type": "number"},
	},
}

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func compiled() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(fieldsSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("fields.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("fields.json")
	})
	return compiledSchema, compileErr
}

// ValidatePayload validates a raw recognition payload against the expected
// field schema.
func ValidatePayload(data []byte) error {
	schema, err := compiled()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("payload does not match schema: %w", err)
	}
	return nil
}
