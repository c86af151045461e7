package orm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NetworkType tells which RPC extensions a node offers.
type NetworkType string

const (
	// NetworkTypeAnvil is a local development node with testing methods (automine, mining).
	NetworkTypeAnvil NetworkType = "anvil"
	// NetworkTypeRemote is a production-like node without testing methods.
	NetworkTypeRemote NetworkType = "remote"
)

// NoChainID is the chain id of a network that has not been resolved yet.
const NoChainID int64 = -1

// Network represents a configured chain endpoint
type Network struct {
	db *gorm.DB `gorm:"column:-"`

	ID        uint64      `gorm:"column:id;primaryKey"`
	ChainID   int64       `gorm:"column:chain_id;index"`
	Name      string      `gorm:"column:name"`
	RPCURL    string      `gorm:"column:rpc_url;uniqueIndex"`
	Type      NetworkType `gorm:"column:type"`
	CreatedAt time.Time   `gorm:"column:created_at"`
	UpdatedAt time.Time   `gorm:"column:updated_at"`
}

// TableName returns the database table name for Network
func (*Network) TableName() string {
	return "network"
}

// NewNetwork creates a new instance of Network
func NewNetwork(db *gorm.DB) *Network {
	return &Network{db: db}
}

// EffectiveType returns the network type, anvil when unset
func (n *Network) EffectiveType() NetworkType {
	if n.Type == "" {
		return NetworkTypeAnvil
	}
	return n.Type
}

// Upsert creates or updates a network keyed by its rpc url
func (n *Network) Upsert(ctx context.Context, network *Network) error {
	return n.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rpc_url"}},
			DoUpdates: clause.AssignmentColumns([]string{"chain_id", "name", "type", "updated_at"}),
		}).
		Create(network).Error
}

// List returns all networks in insertion order
func (n *Network) List(ctx context.Context) ([]*Network, error) {
	var results []*Network
	err := n.db.WithContext(ctx).Order("id ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of stored networks
func (n *Network) Count(ctx context.Context) (int64, error) {
	var count int64
	err := n.db.WithContext(ctx).Model(&Network{}).Count(&count).Error
	return count, err
}
