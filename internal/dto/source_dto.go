package dto

import (
	"time"

	"github.com/google/uuid"
)

// SourceStatusResponse is the (status, stage, error) triple users see, plus
// visual progress.
type SourceStatusResponse struct {
	Id              uuid.UUID        `json:"id"`
	Kind            string           `json:"kind"`
	Status          string           `json:"status"`
	Stage           string           `json:"stage"`
	ProcessingError *string          `json:"processing_error"`
	Visuals         []VisualResponse `json:"visuals"`
	NoteId          *uuid.UUID       `json:"note_id"`
	UpdatedAt       *time.Time       `json:"updated_at"`
}

type VisualResponse struct {
	Id            uuid.UUID `json:"id"`
	PlaceholderId string    `json:"placeholder_id"`
	Status        string    `json:"status"`
	ImageUrl      *string   `json:"image_url"`
	Score         *float64  `json:"score"`
	ErrorMessage  *string   `json:"error_message"`
}

// CreateTextSourceRequest registers a TEXT source the way the ingestion API does.
type CreateTextSourceRequest struct {
	UserId       uuid.UUID `json:"user_id" validate:"required"`
	Text         string    `json:"text" validate:"required"`
	LanguageCode string    `json:"language_code" validate:"omitempty,max=16"`
}

// CreateObjectSourceRequest registers a source whose content is already in object storage.
type CreateObjectSourceRequest struct {
	UserId       uuid.UUID `json:"user_id" validate:"required"`
	Kind         string    `json:"kind" validate:"required,oneof=YOUTUBE TEXT AUDIO PDF IMAGE"`
	StoragePath  string    `json:"storage_path" validate:"required"`
	MimeType     string    `json:"mime_type"`
	OriginalUrl  string    `json:"original_url"`
	LanguageCode string    `json:"language_code" validate:"omitempty,max=16"`
}

type CreateSourceResponse struct {
	SourceId uuid.UUID `json:"source_id"`
	JobId    uuid.UUID `json:"job_id"`
}

type NoteResponse struct {
	Id            uuid.UUID   `json:"id"`
	SourceId      uuid.UUID   `json:"source_id"`
	Title         string      `json:"title"`
	Summary       string      `json:"summary"`
	Content       string      `json:"content"`
	ContentFormat string      `json:"content_format"`
	LanguageCode  string      `json:"language_code"`
	TagIds        []uuid.UUID `json:"tag_ids"`
	CreatedAt     time.Time   `json:"created_at"`
}
