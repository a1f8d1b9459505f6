// internal/models/vector.go
package models

// VectorRecord is a record owned by the external vector index. The pipeline
// treats it as read-only input.
type VectorRecord struct {
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata"`
}

// VectorMatch is a similarity query hit.
type VectorMatch struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}
