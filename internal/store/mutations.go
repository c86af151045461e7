package store

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/devwallet/rpcbroker/internal/orm"
)

// AddSession grants host account access.
func (s *Store) AddSession(ctx context.Context, host string) error {
	return s.mutate(ctx, func() error {
		return s.sessionOrm.Upsert(ctx, host)
	})
}

// RevokeSession removes the session of host and reports whether one existed.
func (s *Store) RevokeSession(ctx context.Context, host string) (bool, error) {
	var removed bool
	err := s.mutate(ctx, func() error {
		var err error
		removed, err = s.sessionOrm.Delete(ctx, host)
		return err
	})
	return removed, err
}

// SwitchNetwork makes the network serving rpcURL the active one.
func (s *Store) SwitchNetwork(ctx context.Context, rpcURL string) error {
	return s.mutate(ctx, func() error {
		return s.settingOrm.Set(ctx, orm.SettingActiveRPCURL, rpcURL)
	})
}

// UpsertNetwork adds or replaces the network keyed by its rpc url.
func (s *Store) UpsertNetwork(ctx context.Context, network orm.Network) error {
	return s.mutate(ctx, func() error {
		return s.networkOrm.Upsert(ctx, &network)
	})
}

// UpsertAccount adds or replaces an account.
func (s *Store) UpsertAccount(ctx context.Context, account orm.Account) error {
	return s.mutate(ctx, func() error {
		return s.accountOrm.Upsert(ctx, &account)
	})
}

// SetActiveAccount selects the account listed first.
func (s *Store) SetActiveAccount(ctx context.Context, address string) error {
	return s.mutate(ctx, func() error {
		return s.settingOrm.Set(ctx, orm.SettingActiveAccount, normalizeAddress(address))
	})
}

// UpdateSettings replaces the bypass flags.
func (s *Store) UpdateSettings(ctx context.Context, settings Settings) error {
	return s.mutate(ctx, func() error {
		values := map[string]bool{
			orm.SettingBypassConnectAuth:     settings.BypassConnectAuth,
			orm.SettingBypassSignatureAuth:   settings.BypassSignatureAuth,
			orm.SettingBypassTransactionAuth: settings.BypassTransactionAuth,
		}
		for key, value := range values {
			if err := s.settingOrm.Set(ctx, key, strconv.FormatBool(value)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetOnboarded sets the global onboarding flag.
func (s *Store) SetOnboarded(ctx context.Context, onboarded bool) error {
	return s.mutate(ctx, func() error {
		return s.settingOrm.Set(ctx, orm.SettingOnboarded, strconv.FormatBool(onboarded))
	})
}

// AddToken watches an ERC20 token for an account on a network.
func (s *Store) AddToken(ctx context.Context, accountAddress, rpcURL, tokenAddress string) error {
	return s.tokenOrm.Add(ctx, &orm.Token{
		AccountAddress: normalizeAddress(accountAddress),
		RPCURL:         rpcURL,
		TokenAddress:   normalizeAddress(tokenAddress),
	})
}

// Tokens lists the tokens watched for an account on a network.
func (s *Store) Tokens(ctx context.Context, accountAddress, rpcURL string) ([]*orm.Token, error) {
	return s.tokenOrm.List(ctx, normalizeAddress(accountAddress), rpcURL)
}

// AddTransaction appends to the bounded transaction history.
func (s *Store) AddTransaction(ctx context.Context, tx *orm.Transaction) error {
	return s.transactionOrm.Add(ctx, tx, orm.MaxTransactions)
}

// Transactions lists the history, most recent first, filtered by sender and chain.
func (s *Store) Transactions(ctx context.Context, from string, chainID int64) ([]*orm.Transaction, error) {
	return s.transactionOrm.List(ctx, from, chainID)
}

// SaveBatch stores a submitted batch.
func (s *Store) SaveBatch(ctx context.Context, batch *orm.Batch) error {
	return s.batchOrm.Create(ctx, batch)
}

// Batch retrieves a batch, ErrBatchNotFound when unknown.
func (s *Store) Batch(ctx context.Context, batchID string) (*orm.Batch, error) {
	batch, err := s.batchOrm.Get(ctx, strings.ToLower(batchID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBatchNotFound
	}
	return batch, err
}
