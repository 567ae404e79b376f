package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Run struct {
	Id                  uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId              uuid.UUID      `gorm:"type:uuid;not null;index"`
	ConstructName       string         `gorm:"type:varchar(255);not null"`
	ConstructDefinition string         `gorm:"type:text"`
	DimensionInfo       string         `gorm:"type:text"`
	Fingerprint         string         `gorm:"type:varchar(64);index"`
	Mode                string         `gorm:"type:varchar(16);not null"`
	Status              string         `gorm:"type:varchar(24);not null;index"`
	Phase               string         `gorm:"type:varchar(32)"`
	RevisionCount       int            `gorm:"not null;default:0"`
	MaxRevisions        int            `gorm:"not null;default:3"`
	Items               datatypes.JSON `gorm:"type:jsonb"`
	Error               string         `gorm:"type:text"`
	CreatedAt           time.Time      `gorm:"autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime"`
	FinishedAt          *time.Time
	DeletedAt           gorm.DeletedAt `gorm:"index"`
}

func (Run) TableName() string {
	return "runs"
}

type RunRound struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RunId     uuid.UUID      `gorm:"type:uuid;not null;index"`
	Round     int            `gorm:"not null"`
	Phase     string         `gorm:"type:varchar(32);not null"`
	Items     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (RunRound) TableName() string {
	return "run_rounds"
}

type RunReview struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RunId     uuid.UUID      `gorm:"type:uuid;not null;index"`
	Round     int            `gorm:"not null"`
	Ratings   datatypes.JSON `gorm:"type:jsonb"`
	Decisions datatypes.JSON `gorm:"type:jsonb"`
	Synthesis string         `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (RunReview) TableName() string {
	return "run_reviews"
}

type RunFeedback struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RunId     uuid.UUID `gorm:"type:uuid;not null;index"`
	Round     int       `gorm:"not null"`
	Source    string    `gorm:"type:varchar(16);not null"`
	Text      string    `gorm:"type:text"`
	Decision  string    `gorm:"type:varchar(16)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (RunFeedback) TableName() string {
	return "run_feedbacks"
}

type ResearchCache struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Fingerprint string    `gorm:"type:varchar(64);not null;index"`
	RunId       uuid.UUID `gorm:"type:uuid"`
	Summary     string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (ResearchCache) TableName() string {
	return "research_cache"
}
