// Package specification holds composable gorm filters for the pipeline
// repositories (sources, visuals, tags, jobs).
package specification

import "gorm.io/gorm"

// Specification narrows a query. Repositories apply them in order.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
