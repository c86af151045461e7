package orm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Token is an ERC20 token watched for an account on a network
type Token struct {
	db *gorm.DB `gorm:"column:-"`

	ID             uint64    `gorm:"column:id;primaryKey" json:"-"`
	AccountAddress string    `gorm:"column:account_address;uniqueIndex:unique_account_rpc_token" json:"accountAddress"`
	RPCURL         string    `gorm:"column:rpc_url;uniqueIndex:unique_account_rpc_token" json:"rpcUrl"`
	TokenAddress   string    `gorm:"column:token_address;uniqueIndex:unique_account_rpc_token" json:"tokenAddress"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"createdAt"`
}

// TableName returns the database table name for Token
func (*Token) TableName() string {
	return "token"
}

// NewToken creates a new instance of Token
func NewToken(db *gorm.DB) *Token {
	return &Token{db: db}
}

// Add records a token, ignoring duplicates
func (t *Token) Add(ctx context.Context, token *Token) error {
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(token).Error
}

// List returns the tokens of an account on a network
func (t *Token) List(ctx context.Context, accountAddress, rpcURL string) ([]*Token, error) {
	var results []*Token
	err := t.db.WithContext(ctx).
		Where("account_address = ? AND rpc_url = ?", accountAddress, rpcURL).
		Order("id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
