package orm

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// MaxTransactions bounds the stored history.
const MaxTransactions = 100

// Transaction is an entry of the sent transaction history
type Transaction struct {
	db *gorm.DB `gorm:"column:-"`

	ID        uint64 `gorm:"column:id;primaryKey" json:"-"`
	Hash      string `gorm:"column:hash;index" json:"hash"`
	From      string `gorm:"column:from_address;index" json:"from"`
	To        string `gorm:"column:to_address" json:"to,omitempty"`
	Value     string `gorm:"column:value" json:"value,omitempty"`
	Data      string `gorm:"column:data" json:"data,omitempty"`
	ChainID   int64  `gorm:"column:chain_id" json:"chainId"`
	Timestamp int64  `gorm:"column:timestamp" json:"timestamp"` // unix milliseconds
}

// TableName returns the database table name for Transaction
func (*Transaction) TableName() string {
	return "transaction_history"
}

// NewTransaction creates a new instance of Transaction
func NewTransaction(db *gorm.DB) *Transaction {
	return &Transaction{db: db}
}

// Add appends a transaction and drops everything beyond the newest limit entries
func (t *Transaction) Add(ctx context.Context, tx *Transaction, limit int) error {
	return t.db.WithContext(ctx).Transaction(func(dbTX *gorm.DB) error {
		if err := dbTX.Create(tx).Error; err != nil {
			return err
		}
		var oldest []uint64
		err := dbTX.Model(&Transaction{}).
			Order("id DESC").
			Offset(limit - 1).
			Limit(1).
			Pluck("id", &oldest).Error
		if err != nil || len(oldest) == 0 {
			return err
		}
		return dbTX.Where("id < ?", oldest[0]).Delete(&Transaction{}).Error
	})
}

// List returns the history, most recent first. Empty from or a zero chainID disable the filter.
func (t *Transaction) List(ctx context.Context, from string, chainID int64) ([]*Transaction, error) {
	query := t.db.WithContext(ctx).Order("id DESC")
	if from != "" {
		query = query.Where("LOWER(from_address) = ?", strings.ToLower(from))
	}
	if chainID != 0 {
		query = query.Where("chain_id = ?", chainID)
	}
	var results []*Transaction
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
