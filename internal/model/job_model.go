package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Job struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Name        string         `gorm:"type:varchar(64);not null;index"`
	Payload     datatypes.JSON `gorm:"type:jsonb"`
	DedupeKey   *string        `gorm:"type:varchar(200);uniqueIndex"`
	Status      string         `gorm:"type:varchar(16);not null;index"`
	Attempt     int            `gorm:"not null;default:0"`
	MaxAttempts int            `gorm:"not null;default:0"`
	LastError   *string        `gorm:"type:text"`
	RunAt       *time.Time
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
	FinishedAt  *time.Time `gorm:"index"`
}

func (Job) TableName() string {
	return "jobs"
}
