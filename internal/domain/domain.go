// Package domain holds the persisted row types.
package domain

// AllModels lists every row type for automigration.
func AllModels() []any {
	return []any{
		&Concept{},
		&ConceptModel{},
		&DatasetRow{},
	}
}
