package entity

import (
	"time"

	"github.com/google/uuid"
)

type VisualStatus string

const (
	VisualStatusPending           VisualStatus = "PENDING"
	VisualStatusPendingGeneration VisualStatus = "PENDING_GENERATION"
	VisualStatusProcessing        VisualStatus = "PROCESSING"
	VisualStatusCompleted         VisualStatus = "COMPLETED"
	VisualStatusFailed            VisualStatus = "FAILED"
	VisualStatusNoImageFound      VisualStatus = "NO_IMAGE_FOUND"
)

func (s VisualStatus) IsTerminal() bool {
	switch s {
	case VisualStatusCompleted, VisualStatusFailed, VisualStatusNoImageFound:
		return true
	}
	return false
}

// NonTerminalVisualStatuses is used by the sibling-count query.
func NonTerminalVisualStatuses() []VisualStatus {
	return []VisualStatus{VisualStatusPending, VisualStatusPendingGeneration, VisualStatusProcessing}
}

type Visual struct {
	Id               uuid.UUID
	SourceId         uuid.UUID
	PlaceholderId    string
	Description      string
	SearchQuery      *string
	Status           VisualStatus
	ImageUrl         *string
	AltText          *string
	AttributionUrl   *string
	AttributionTitle *string
	Score            *float64
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

// Query returns the text sent to the image-search provider.
func (v *Visual) Query() string {
	if v.SearchQuery != nil && *v.SearchQuery != "" {
		return *v.SearchQuery
	}
	return v.Description
}

// VisualOutcome is the terminal write applied by the fan-in job.
type VisualOutcome struct {
	Status           VisualStatus
	ImageUrl         string
	AltText          string
	AttributionUrl   string
	AttributionTitle string
	Score            float64
	ErrorMessage     string
}
