package model

import (
	"time"

	"github.com/google/uuid"
)

type Visual struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceId         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_visual_source_placeholder"`
	PlaceholderId    string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_visual_source_placeholder"`
	Description      string    `gorm:"type:text;not null"`
	SearchQuery      *string   `gorm:"type:text"`
	Status           string    `gorm:"type:varchar(24);not null;default:'PENDING';index"`
	ImageUrl         *string   `gorm:"type:text"`
	AltText          *string   `gorm:"type:text"`
	AttributionUrl   *string   `gorm:"type:text"`
	AttributionTitle *string   `gorm:"type:text"`
	Score            *float64
	ErrorMessage     *string   `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (Visual) TableName() string {
	return "visuals"
}
