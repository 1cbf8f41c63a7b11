package api

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// registrationSchema is the JSON Schema for endpoint registration payloads.
// It rejects structurally bad input before the endpoint service applies the
// cross-field rules.
const registrationSchema = `{
	"type": "object",
	"properties": {
		"name":             {"type": "string", "minLength": 1},
		"target_url":       {"type": "string", "minLength": 1},
		"auth_type":        {"type": "string", "enum": ["none", "header", "bearer", "query_param"]},
		"auth_key":         {"type": "string"},
		"auth_value":       {"type": "string"},
		"requires_payment": {"type": "boolean"},
		"price":            {"type": "string", "pattern": "^\\$?[0-9]+(\\.[0-9]+)?$"},
		"payout_address":   {"type": "string"},
		"rate_limit":       {"type": "integer", "minimum": 0},
		"metadata":         {"type": "object", "additionalProperties": {"type": "string"}}
	},
	"additionalProperties": false
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// validateRegistration checks a decoded registration payload against the
// schema.
func validateRegistration(doc any) error {
	schemaOnce.Do(func() {
		var raw any
		if err := json.Unmarshal([]byte(registrationSchema), &raw); err != nil {
			schemaErr = fmt.Errorf("unmarshal registration schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("tollgate://schema/endpoint", raw); err != nil {
			schemaErr = fmt.Errorf("add registration schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile("tollgate://schema/endpoint")
	})
	if schemaErr != nil {
		return schemaErr
	}
	return compiledSchema.Validate(doc)
}
