// Package orm provides the persistent stores of the rpc broker.
package orm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Session records that a host has been granted account access.
type Session struct {
	db *gorm.DB `gorm:"column:-"`

	ID        uint64    `gorm:"column:id;primaryKey"`
	Host      string    `gorm:"column:host;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the database table name for Session
func (*Session) TableName() string {
	return "session"
}

// NewSession creates a new instance of Session
func NewSession(db *gorm.DB) *Session {
	return &Session{db: db}
}

// Upsert creates the session of host or refreshes it
func (s *Session) Upsert(ctx context.Context, host string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "host"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).
		Create(&Session{Host: host}).Error
}

// List returns all sessions ordered by creation
func (s *Session) List(ctx context.Context) ([]*Session, error) {
	var results []*Session
	err := s.db.WithContext(ctx).Order("id ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Delete removes the session of host
func (s *Session) Delete(ctx context.Context, host string) (bool, error) {
	res := s.db.WithContext(ctx).Where("host = ?", host).Delete(&Session{})
	return res.RowsAffected > 0, res.Error
}
