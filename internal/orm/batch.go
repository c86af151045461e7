package orm

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Batch is a group of calls submitted together by wallet_sendCalls
type Batch struct {
	db *gorm.DB `gorm:"column:-"`

	BatchID           string            `gorm:"column:batch_id;primaryKey" json:"id"`
	ChainID           int64             `gorm:"column:chain_id" json:"chainId"`
	RPCURL            string            `gorm:"column:rpc_url" json:"rpcUrl"`
	Calls             []json.RawMessage `gorm:"column:calls;serializer:json" json:"calls"`
	TransactionHashes []string          `gorm:"column:transaction_hashes;serializer:json" json:"transactionHashes"`
	CreatedAt         time.Time         `gorm:"column:created_at" json:"createdAt"`
}

// TableName returns the database table name for Batch
func (*Batch) TableName() string {
	return "batch"
}

// NewBatch creates a new instance of Batch
func NewBatch(db *gorm.DB) *Batch {
	return &Batch{db: db}
}

// Create stores a batch; batches are immutable once written
func (b *Batch) Create(ctx context.Context, batch *Batch) error {
	return b.db.WithContext(ctx).Create(batch).Error
}

// Get retrieves a batch by id
func (b *Batch) Get(ctx context.Context, batchID string) (*Batch, error) {
	var result Batch
	err := b.db.WithContext(ctx).Where("batch_id = ?", batchID).First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Count returns the number of stored batches
func (b *Batch) Count(ctx context.Context) (int64, error) {
	var count int64
	err := b.db.WithContext(ctx).Model(&Batch{}).Count(&count).Error
	return count, err
}
