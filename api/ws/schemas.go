package ws

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Every client payload is validated against a declared schema before the
// handler touches it, so malformed or extra-field payloads are rejected at
// the door with a uniform error.

const vec3Schema = `{
	"type": "object",
	"properties": {
		"x": {"type": "number"},
		"y": {"type": "number"},
		"z": {"type": "number"}
	},
	"required": ["x", "y"],
	"additionalProperties": false
}`

var payloadSchemas = map[string]*jsonschema.Schema{
	"join_match": mustSchema("join_match", `{
		"type": "object",
		"properties": {
			"match_id": {"type": "string", "minLength": 1}
		},
		"required": ["match_id"],
		"additionalProperties": false
	}`),
	"weapon_fire": mustSchema("weapon_fire", fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"weapon_id": {"type": "string", "minLength": 1},
			"origin": %s,
			"direction": %s
		},
		"required": ["weapon_id", "origin", "direction"],
		"additionalProperties": false
	}`, vec3Schema, vec3Schema)),
	"hit_report": mustSchema("hit_report", `{
		"type": "object",
		"properties": {
			"target_id": {"type": "string", "minLength": 1},
			"weapon_id": {"type": "string", "minLength": 1},
			"damage": {"type": "number"}
		},
		"required": ["target_id", "weapon_id", "damage"],
		"additionalProperties": false
	}`),
	"move": mustSchema("move", fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"to": %s
		},
		"required": ["to"],
		"additionalProperties": false
	}`, vec3Schema)),
	"claim_drop": mustSchema("claim_drop", `{
		"type": "object",
		"properties": {
			"drop_id": {"type": "string", "minLength": 1}
		},
		"required": ["drop_id"],
		"additionalProperties": false
	}`),
}

func mustSchema(name, doc string) *jsonschema.Schema {
	return jsonschema.MustCompileString(name+".json", doc)
}

// validatePayload checks raw against the declared schema for msgType and then
// decodes it into dst. Message types without a schema decode directly.
func validatePayload(msgType string, raw json.RawMessage, dst interface{}) error {
	if sch, ok := payloadSchemas[msgType]; ok {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode %s: %w", msgType, err)
		}
		if err := sch.Validate(v); err != nil {
			return fmt.Errorf("invalid %s payload: %w", msgType, err)
		}
	}
	return json.Unmarshal(raw, dst)
}
