package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

type ContentFormat string

const (
	ContentFormatHTML    ContentFormat = "html"
	ContentFormatLexical ContentFormat = "lexical"
)

type Note struct {
	Id            uuid.UUID
	SourceId      uuid.UUID
	UserId        uuid.UUID
	Title         string
	Summary       string
	Content       string
	ContentFormat ContentFormat
	LanguageCode  string
	TagIds        []uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// Tag keeps the display name as first written. Key is the identity used for
// lookups and uniqueness.
type Tag struct {
	Id        uuid.UUID
	Name      string
	Key       string
	CreatedAt time.Time
}

// TagKey collapses whitespace and case-folds a tag name, so "Straße" and
// "STRASSE" resolve to the same tag.
func TagKey(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}
