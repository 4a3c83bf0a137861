package implementation

import (
	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/repository/specification"

	"gorm.io/gorm"
)

func applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func stageLabels(stages []entity.ProcessingStage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.String()
	}
	return out
}

func nonTerminalVisualLabels() []string {
	statuses := entity.NonTerminalVisualStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
