package specification

import "gorm.io/gorm"

type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// NewestTurnsFirst orders turns newest first; sequence breaks timestamp ties.
type NewestTurnsFirst struct{}

func (NewestTurnsFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("sequence DESC")
}

// OldestTurnsFirst is the chronological order of a session.
type OldestTurnsFirst struct{}

func (OldestTurnsFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("sequence ASC")
}
