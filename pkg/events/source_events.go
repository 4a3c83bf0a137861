package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeSourceCompleted = "SOURCE_COMPLETED"
	TypeSourceFailed    = "SOURCE_FAILED"
)

func SourceCompleted(sourceId, noteId uuid.UUID) Event {
	return BaseEvent{
		Type: TypeSourceCompleted,
		Data: map[string]interface{}{
			"sourceId": sourceId.String(),
			"noteId":   noteId.String(),
		},
		OccurredAt: time.Now().UTC(),
	}
}

func SourceFailed(sourceId uuid.UUID, stage, message string) Event {
	return BaseEvent{
		Type: TypeSourceFailed,
		Data: map[string]interface{}{
			"sourceId": sourceId.String(),
			"stage":    stage,
			"error":    message,
		},
		OccurredAt: time.Now().UTC(),
	}
}
