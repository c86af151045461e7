package orm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting keys.
const (
	SettingActiveRPCURL          = "active_rpc_url"
	SettingActiveAccount         = "active_account"
	SettingOnboarded             = "onboarded"
	SettingBypassConnectAuth     = "bypass_connect_auth"
	SettingBypassSignatureAuth   = "bypass_signature_auth"
	SettingBypassTransactionAuth = "bypass_transaction_auth"
)

// Setting is a single key/value entry
type Setting struct {
	db *gorm.DB `gorm:"column:-"`

	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the database table name for Setting
func (*Setting) TableName() string {
	return "setting"
}

// NewSetting creates a new instance of Setting
func NewSetting(db *gorm.DB) *Setting {
	return &Setting{db: db}
}

// Set stores value under key
func (s *Setting) Set(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&Setting{Key: key, Value: value}).Error
}

// SetIfAbsent stores value under key unless the key exists
func (s *Setting) SetIfAbsent(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Setting{Key: key, Value: value}).Error
}

// All returns every setting as a map
func (s *Setting) All(ctx context.Context) (map[string]string, error) {
	var rows []*Setting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}
