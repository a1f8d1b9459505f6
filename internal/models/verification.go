// internal/models/verification.go
package models

import "time"

// VerificationStatus is the persisted lifecycle state of an entity.
type VerificationStatus string

const (
	VerificationStatusUnverified VerificationStatus = "unverified"
	VerificationStatusVerified   VerificationStatus = "verified"
	VerificationStatusFailed     VerificationStatus = "failed"
)

// EntityTable is the closed set of tables a verification job may target.
type EntityTable string

const (
	EntityTableNarrative EntityTable = "narrative_entities"
	EntityTableCreators  EntityTable = "creators"
	EntityTableAssets    EntityTable = "assets"
)

// Valid reports whether t names a known verifiable table.
func (t EntityTable) Valid() bool {
	switch t {
	case EntityTableNarrative, EntityTableCreators, EntityTableAssets:
		return true
	}
	return false
}

// VerifiableEntity is the persisted state the verification worker reads
// before deciding whether to skip or re-verify.
type VerifiableEntity struct {
	ID             string
	Name           string
	Status         VerificationStatus
	LastVerifiedAt *time.Time
}

// DataSourceResult is one external source's partial view of an entity.
// Confidence is a scalar in [0,1] used for merge arbitration.
type DataSourceResult struct {
	Name       string                 `json:"name"`
	Confidence float64                `json:"confidence"`
	Data       map[string]interface{} `json:"data"`
}

// ConflictAlternative records one source's value for a disputed field.
type ConflictAlternative struct {
	Source     string      `json:"source"`
	Value      interface{} `json:"value"`
	Confidence float64     `json:"confidence"`
}

// FieldConflict is recorded when two or more sources disagree on a field.
type FieldConflict struct {
	Merged       interface{}           `json:"merged"`
	Alternatives []ConflictAlternative `json:"alternatives"`
}

// MergedRecord is the reconciled view across all responding sources.
// Fields holds per-field winners chosen by highest confidence, Breakdown
// maps each merged field to the sources that agreed with the winning value,
// and Conflicts lists the fields where sources disagreed.
type MergedRecord struct {
	Fields        map[string]interface{}   `json:"fields"`
	Breakdown     map[string][]string      `json:"breakdown"`
	Conflicts     map[string]FieldConflict `json:"conflicts"`
	PrimarySource string                   `json:"primarySource"`
}

// VerificationUpdate is what gets written back after a verify run.
type VerificationUpdate struct {
	Status            VerificationStatus
	MergedFields      map[string]interface{}
	PrimaryDataSource string
	SourceBreakdown   map[string][]string
	SourceConflicts   map[string]FieldConflict
	VerifiedAt        time.Time
}
