package specification

import (
	"time"

	"ai-notetaking-pipeline/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BySourceID struct {
	SourceID uuid.UUID
}

func (s BySourceID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_id = ?", s.SourceID)
}

// StageIn matches rows whose stage is one of Stages. It is the guard of every
// conditional stage transition.
type StageIn struct {
	Stages []string
}

func (s StageIn) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("stage IN ?", s.Stages)
}

type StatusIn struct {
	Statuses []string
}

func (s StatusIn) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status IN ?", s.Statuses)
}

type ByDedupeKey struct {
	Key string
}

func (s ByDedupeKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("dedupe_key = ?", s.Key)
}

type FinishedBefore struct {
	Before time.Time
}

func (s FinishedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("finished_at IS NOT NULL AND finished_at < ?", s.Before)
}

// TagKeyIn matches tags by normalized key.
type TagKeyIn struct {
	Names []string
}

func (s TagKeyIn) Apply(db *gorm.DB) *gorm.DB {
	keys := make([]string, len(s.Names))
	for i, n := range s.Names {
		keys[i] = entity.TagKey(n)
	}
	return db.Where("name_key IN ?", keys)
}
