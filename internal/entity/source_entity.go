package entity

import (
	"time"

	"github.com/google/uuid"
)

type SourceKind string

const (
	SourceKindYoutube SourceKind = "YOUTUBE"
	SourceKindText    SourceKind = "TEXT"
	SourceKindAudio   SourceKind = "AUDIO"
	SourceKindPdf     SourceKind = "PDF"
	SourceKindImage   SourceKind = "IMAGE"
)

type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "PENDING"
	ProcessingStatusProcessing ProcessingStatus = "PROCESSING"
	ProcessingStatusCompleted  ProcessingStatus = "COMPLETED"
	ProcessingStatusFailed     ProcessingStatus = "FAILED"
)

// Metadata keys written by the stage handlers.
const (
	MetaStructure              = "structure"
	MetaStructureProvider      = "structureProvider"
	MetaTranscriptWords        = "transcriptWords"
	MetaTranscriptionProvider  = "transcriptionProvider"
	MetaTranscriptionChunks    = "transcriptionChunks"
	MetaOcrProvider            = "ocrProvider"
	MetaUnresolvedPlaceholders = "unresolvedPlaceholders"
)

type Source struct {
	Id              uuid.UUID
	UserId          uuid.UUID
	Kind            SourceKind
	OriginalUrl     string
	StoragePath     string
	MimeType        string
	ExtractedText   *string
	LanguageCode    string
	Status          ProcessingStatus
	Stage           ProcessingStage
	ProcessingError *string
	Metadata        map[string]interface{}
	Visuals         []*Visual
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

func (s *Source) HasExtractedText() bool {
	return s.ExtractedText != nil && *s.ExtractedText != ""
}

func (s *Source) Text() string {
	if s.ExtractedText == nil {
		return ""
	}
	return *s.ExtractedText
}

// SourceResult is what a text-producing stage persists in one write.
type SourceResult struct {
	ExtractedText string
	LanguageCode  string
	Metadata      map[string]interface{}
}
