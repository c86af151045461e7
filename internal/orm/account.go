package orm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountType tells where an account's key lives.
type AccountType string

const (
	// AccountTypeLocal accounts hold a private key and sign without the node.
	AccountTypeLocal AccountType = "local"
	// AccountTypeJSONRPC accounts defer signing to the node.
	AccountTypeJSONRPC AccountType = "json-rpc"
)

// Account represents a wallet account
type Account struct {
	db *gorm.DB `gorm:"column:-"`

	ID          uint64      `gorm:"column:id;primaryKey"`
	Address     string      `gorm:"column:address;uniqueIndex:unique_address_rpc_url"`
	RPCURL      string      `gorm:"column:rpc_url;uniqueIndex:unique_address_rpc_url"` // empty: available on every network
	Type        AccountType `gorm:"column:type"`
	PrivateKey  string      `gorm:"column:private_key" json:"-"`
	Impersonate bool        `gorm:"column:impersonate"`
	DisplayName string      `gorm:"column:display_name"`
	CreatedAt   time.Time   `gorm:"column:created_at"`
	UpdatedAt   time.Time   `gorm:"column:updated_at"`
}

// TableName returns the database table name for Account
func (*Account) TableName() string {
	return "account"
}

// NewAccount creates a new instance of Account
func NewAccount(db *gorm.DB) *Account {
	return &Account{db: db}
}

// Upsert creates or updates an account keyed by address and rpc url
func (a *Account) Upsert(ctx context.Context, account *Account) error {
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}, {Name: "rpc_url"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "private_key", "impersonate", "display_name", "updated_at"}),
		}).
		Create(account).Error
}

// List returns all accounts in insertion order
func (a *Account) List(ctx context.Context) ([]*Account, error) {
	var results []*Account
	err := a.db.WithContext(ctx).Order("id ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of stored accounts
func (a *Account) Count(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&Account{}).Count(&count).Error
	return count, err
}
