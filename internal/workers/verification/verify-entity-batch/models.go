package verifyentitybatch

// Input selects the entities a batch fans out over. Explicit EntityIDs
// win; otherwise the worker picks up to Limit stale or unverified rows
// from the table.
type Input struct {
	EntityTable  string   `json:"entityTable"`
	EntityIDs    []string `json:"entityIds,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	ForceRefresh bool     `json:"forceRefresh,omitempty"`
}

// Output reports the fan-out result.
type Output struct {
	Selected int `json:"selected"`
	Enqueued int `json:"enqueued"`
}

// InputSchema validates the verify-entity-batch payload at enqueue time.
const InputSchema = `{
	"type": "object",
	"properties": {
		"entityTable": {
			"type": "string",
			"enum": ["narrative_entities", "creators", "assets"]
		},
		"entityIds": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"maxItems": 5000
		},
		"limit": {
			"type": "integer",
			"minimum": 1,
			"maximum": 5000
		},
		"forceRefresh": {"type": "boolean"}
	},
	"required": ["entityTable"],
	"additionalProperties": false
}`
