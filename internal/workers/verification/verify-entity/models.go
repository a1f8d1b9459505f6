package verifyentity

// Input identifies the entity one job verifies. EntityName is optional;
// the worker falls back to the stored name when it is absent.
type Input struct {
	EntityTable  string `json:"entityTable"`
	EntityID     string `json:"entityId"`
	EntityName   string `json:"entityName,omitempty"`
	ForceRefresh bool   `json:"forceRefresh,omitempty"`
}

// InputSchema validates the verify-entity payload at enqueue time.
const InputSchema = `{
	"type": "object",
	"properties": {
		"entityTable": {
			"type": "string",
			"enum": ["narrative_entities", "creators", "assets"]
		},
		"entityId": {"type": "string", "minLength": 1},
		"entityName": {"type": "string"},
		"forceRefresh": {"type": "boolean"}
	},
	"required": ["entityTable", "entityId"],
	"additionalProperties": false
}`
