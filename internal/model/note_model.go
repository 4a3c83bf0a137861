package model

import (
	"time"

	"github.com/google/uuid"
)

type Note struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceId      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	UserId        uuid.UUID `gorm:"type:uuid;not null;index"`
	Title         string    `gorm:"type:varchar(255);not null"`
	Summary       string    `gorm:"type:text"`
	Content       string    `gorm:"type:text"`
	ContentFormat string    `gorm:"type:varchar(16);not null;default:'html'"`
	LanguageCode  string    `gorm:"type:varchar(16)"`
	Tags          []Tag     `gorm:"many2many:note_tags;joinForeignKey:NoteId;joinReferences:TagId"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Note) TableName() string {
	return "notes"
}

type Tag struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `gorm:"type:varchar(64);not null"`
	NameKey   string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_tags_name_key"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Tag) TableName() string {
	return "tags"
}

type NoteTag struct {
	NoteId uuid.UUID `gorm:"type:uuid;primaryKey"`
	TagId  uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

func (NoteTag) TableName() string {
	return "note_tags"
}
