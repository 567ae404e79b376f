package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByRunID filters child tables by their owning run.
type ByRunID struct {
	RunID uuid.UUID
}

func (s ByRunID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("run_id = ?", s.RunID)
}

// ByUserID filters runs by owner.
type ByUserID struct {
	UserID uuid.UUID
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// ByFingerprint filters runs or cache rows by construct fingerprint.
type ByFingerprint struct {
	Fingerprint string
}

func (s ByFingerprint) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("fingerprint = ?", s.Fingerprint)
}

// ExcludeRun skips one run, used when collecting previous items for
// anti-homogeneity memory.
type ExcludeRun struct {
	RunID uuid.UUID
}

func (s ExcludeRun) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id != ?", s.RunID)
}

// ByStatus filters runs by terminal or live status.
type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// CreatedAfter keeps rows newer than the cutoff.
type CreatedAfter struct {
	Cutoff time.Time
}

func (s CreatedAfter) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_at > ?", s.Cutoff)
}
