// Package schema validates a monitor's config against the JSON Schema for
// its monitor_type, at create_monitor time only — the stored config is
// never re-validated on every read.
package schema

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"monitorplane/internal/apperr"
)

const httpProbeSchema = `{
	"type": "object",
	"required": ["url", "interval_seconds"],
	"properties": {
		"url": {"type": "string", "minLength": 1},
		"method": {"type": "string", "enum": ["GET", "POST", "HEAD"]},
		"interval_seconds": {"type": "integer", "minimum": 5},
		"expected_status": {"type": "integer", "minimum": 100, "maximum": 599},
		"headers": {"type": "object"}
	},
	"additionalProperties": false
}`

const priceFeedSchema = `{
	"type": "object",
	"required": ["symbol", "exchange"],
	"properties": {
		"symbol": {"type": "string", "minLength": 1},
		"exchange": {"type": "string", "minLength": 1},
		"interval_seconds": {"type": "integer", "minimum": 1},
		"api_key_secret_ref": {"type": "string"}
	},
	"additionalProperties": false
}`

const logTailSchema = `{
	"type": "object",
	"required": ["source"],
	"properties": {
		"source": {"type": "string", "minLength": 1},
		"pattern": {"type": "string"},
		"credentials_secret_ref": {"type": "string"}
	},
	"additionalProperties": false
}`

var schemas = map[string]string{
	"http_probe": httpProbeSchema,
	"price_feed": priceFeedSchema,
	"log_tail":   logTailSchema,
}

// Validate checks config against monitorType's schema. It returns
// apperr.ErrValidation (with the gojsonschema error details folded into
// the message) both when config doesn't conform and when monitorType
// isn't known at all — an unknown monitor_type is a validation error,
// not a backend fault.
func Validate(monitorType string, config map[string]interface{}) error {
	raw, ok := schemas[monitorType]
	if !ok {
		return apperr.Validation("no schema registered for monitor type %q", monitorType)
	}

	schemaLoader := gojsonschema.NewStringLoader(raw)

	configBytes, err := json.Marshal(config)
	if err != nil {
		return apperr.Validation("config is not serializable: %v", err)
	}
	docLoader := gojsonschema.NewBytesLoader(configBytes)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return apperr.Validation("schema validation failed to run: %v", err)
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return apperr.Validation("config for monitor type %q is invalid: %s", monitorType, strings.Join(msgs, "; "))
}

// Known reports whether monitorType has a registered schema.
func Known(monitorType string) bool {
	_, ok := schemas[monitorType]
	return ok
}
