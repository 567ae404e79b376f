package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Run struct {
	Id                  uuid.UUID
	UserId              uuid.UUID
	ConstructName       string
	ConstructDefinition string
	DimensionInfo       string
	Fingerprint         string
	Mode                string
	Status              string
	Phase               string
	RevisionCount       int
	MaxRevisions        int
	Items               json.RawMessage
	Error               string
	CreatedAt           time.Time
	UpdatedAt           *time.Time
	FinishedAt          *time.Time
	DeletedAt           *time.Time
	IsDeleted           bool
}

type RunRound struct {
	Id        uuid.UUID
	RunId     uuid.UUID
	Round     int
	Phase     string
	Items     json.RawMessage
	CreatedAt time.Time
}

type RunReview struct {
	Id        uuid.UUID
	RunId     uuid.UUID
	Round     int
	Ratings   json.RawMessage
	Decisions json.RawMessage
	Synthesis string
	CreatedAt time.Time
}

type RunFeedback struct {
	Id        uuid.UUID
	RunId     uuid.UUID
	Round     int
	Source    string
	Text      string
	Decision  string
	CreatedAt time.Time
}

type ResearchCache struct {
	Id          uuid.UUID
	Fingerprint string
	RunId       uuid.UUID
	Summary     string
	CreatedAt   time.Time
}
