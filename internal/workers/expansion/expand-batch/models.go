package expandbatch

// Input selects which corpus records a job expands. Exactly one of the
// selection modes applies: explicit RecordIDs win, then Full, then a
// batched diversity sample of Category (all categories when empty).
// BatchStart offsets the reported batch indices so a fan-out of several
// jobs yields a continuous milestone sequence.
type Input struct {
	Category   string   `json:"category,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	BatchStart int      `json:"batchStart,omitempty"`
	BatchSize  int      `json:"batchSize,omitempty"`
	Namespace  string   `json:"namespace,omitempty"`
	Full       bool     `json:"full,omitempty"`
	RecordIDs  []string `json:"recordIds,omitempty"`
}

// Output reports what the job produced.
type Output struct {
	RecordsProcessed int `json:"recordsProcessed"`
	ProposalsBuilt   int `json:"proposalsBuilt"`
	AssetsInserted   int `json:"assetsInserted"`
	AssetsSkipped    int `json:"assetsSkipped"`
	Snapshots        int `json:"snapshots"`
	Batches          int `json:"batches"`
}

// InputSchema validates the expand-batch payload at enqueue time.
const InputSchema = `{
	"type": "object",
	"properties": {
		"category": {
			"type": "string",
			"enum": ["Characters", "Creators", "Comics", ""]
		},
		"limit": {
			"type": "integer",
			"minimum": 1,
			"maximum": 1000
		},
		"batchStart": {
			"type": "integer",
			"minimum": 0
		},
		"batchSize": {
			"type": "integer",
			"minimum": 1,
			"maximum": 1000
		},
		"namespace": {"type": "string"},
		"full": {"type": "boolean"},
		"recordIds": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"maxItems": 1000
		}
	},
	"additionalProperties": false
}`
