// Package verify cross-checks catalog entities against external data
// sources and reconciles what they report.
package verify

import (
	"reflect"

	"asset-workers/internal/models"
)

// MergeSources merges source payloads field by field. The first source
// to supply a field holds it until a source with strictly greater
// confidence disagrees; equal confidence never displaces an earlier
// value.
func MergeSources(sources []models.DataSourceResult) map[string]interface{} {
	merged := make(map[string]interface{})
	supplierConfidence := make(map[string]float64)

	for _, source := range sources {
		for field, value := range source.Data {
			if isEmptyValue(value) {
				continue
			}

			if _, ok := merged[field]; !ok {
				merged[field] = value
				supplierConfidence[field] = source.Confidence
				continue
			}

			if source.Confidence > supplierConfidence[field] {
				merged[field] = value
				supplierConfidence[field] = source.Confidence
			}
		}
	}

	return merged
}

// BuildBreakdown maps each merged field to the sources whose value
// matches the merged one.
func BuildBreakdown(sources []models.DataSourceResult, merged map[string]interface{}) map[string][]string {
	breakdown := make(map[string][]string)

	for field, value := range merged {
		var names []string
		for _, source := range sources {
			if v, ok := source.Data[field]; ok && valuesEqual(v, value) {
				names = append(names, source.Name)
			}
		}
		if len(names) > 0 {
			breakdown[field] = names
		}
	}

	return breakdown
}

// DetectConflicts reports every field where the sources disagree,
// keeping the merged value alongside each source's alternative.
func DetectConflicts(sources []models.DataSourceResult, merged map[string]interface{}) map[string]models.FieldConflict {
	conflicts := make(map[string]models.FieldConflict)

	var fields []string
	seen := make(map[string]bool)
	for _, source := range sources {
		for field := range source.Data {
			if !seen[field] {
				seen[field] = true
				fields = append(fields, field)
			}
		}
	}

	for _, field := range fields {
		var distinct []interface{}
		for _, source := range sources {
			value, ok := source.Data[field]
			if !ok || isEmptyValue(value) {
				continue
			}
			found := false
			for _, existing := range distinct {
				if valuesEqual(existing, value) {
					found = true
					break
				}
			}
			if !found {
				distinct = append(distinct, value)
			}
		}

		if len(distinct) < 2 {
			continue
		}

		var alternatives []models.ConflictAlternative
		for _, source := range sources {
			if value, ok := source.Data[field]; ok && !isEmptyValue(value) {
				alternatives = append(alternatives, models.ConflictAlternative{
					Source:     source.Name,
					Value:      value,
					Confidence: source.Confidence,
				})
			}
		}

		conflicts[field] = models.FieldConflict{
			Merged:       merged[field],
			Alternatives: alternatives,
		}
	}

	return conflicts
}

// SelectPrimary returns the name of the highest-confidence source, or
// "none" when nothing responded.
func SelectPrimary(sources []models.DataSourceResult) string {
	if len(sources) == 0 {
		return "none"
	}

	primary := sources[0]
	for _, source := range sources[1:] {
		if source.Confidence > primary.Confidence {
			primary = source
		}
	}
	return primary.Name
}

func isEmptyValue(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok && s == "" {
		return true
	}
	return false
}

func valuesEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}
