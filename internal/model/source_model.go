package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Source struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId          uuid.UUID      `gorm:"type:uuid;not null;index"`
	Kind            string         `gorm:"type:varchar(20);not null"`
	OriginalUrl     string         `gorm:"type:text"`
	StoragePath     string         `gorm:"type:text"`
	MimeType        string         `gorm:"type:varchar(100)"`
	ExtractedText   *string        `gorm:"type:text"`
	LanguageCode    string         `gorm:"type:varchar(16)"`
	Status          string         `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Stage           string         `gorm:"type:varchar(40);not null;default:'QUEUED';index"`
	ProcessingError *string        `gorm:"type:text"`
	Metadata        datatypes.JSON `gorm:"type:jsonb"`
	Visuals         []Visual       `gorm:"foreignKey:SourceId"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
}

func (Source) TableName() string {
	return "sources"
}
