// Package store keeps the wallet state and serves consistent snapshots of it.
package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"gorm.io/gorm"

	"github.com/devwallet/rpcbroker/internal/config"
	"github.com/devwallet/rpcbroker/internal/orm"
	"github.com/devwallet/rpcbroker/internal/signer"
)

// ErrBatchNotFound is returned for unknown batch ids.
var ErrBatchNotFound = errors.New("batch not found")

// Store persists the wallet state and keeps the latest snapshot in memory.
type Store struct {
	sessionOrm     *orm.Session
	networkOrm     *orm.Network
	accountOrm     *orm.Account
	settingOrm     *orm.Setting
	batchOrm       *orm.Batch
	transactionOrm *orm.Transaction
	tokenOrm       *orm.Token

	mu        sync.Mutex
	snapshot  atomic.Pointer[Snapshot]
	hydrated  chan struct{}
	hydrateMu sync.Once
}

// NewStore creates a Store over db. Call Load before serving requests.
func NewStore(db *gorm.DB) *Store {
	s := &Store{
		sessionOrm:     orm.NewSession(db),
		networkOrm:     orm.NewNetwork(db),
		accountOrm:     orm.NewAccount(db),
		settingOrm:     orm.NewSetting(db),
		batchOrm:       orm.NewBatch(db),
		transactionOrm: orm.NewTransaction(db),
		tokenOrm:       orm.NewToken(db),
		hydrated:       make(chan struct{}),
	}
	s.snapshot.Store(emptySnapshot())
	return s
}

// Snapshot returns the current state. Before Load it is empty.
func (s *Store) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// WaitHydrated blocks until the first Load finished.
func (s *Store) WaitHydrated(ctx context.Context) error {
	select {
	case <-s.hydrated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Hydrated reports whether the first Load finished.
func (s *Store) Hydrated() bool {
	select {
	case <-s.hydrated:
		return true
	default:
		return false
	}
}

// Load reads the whole state from the database.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reload(ctx); err != nil {
		return err
	}
	s.hydrateMu.Do(func() { close(s.hydrated) })
	return nil
}

func (s *Store) reload(ctx context.Context) error {
	networks, err := s.networkOrm.List(ctx)
	if err != nil {
		return err
	}
	accounts, err := s.accountOrm.List(ctx)
	if err != nil {
		return err
	}
	settings, err := s.settingOrm.All(ctx)
	if err != nil {
		return err
	}
	sessions, err := s.sessionOrm.List(ctx)
	if err != nil {
		return err
	}

	snap := emptySnapshot()
	for _, network := range networks {
		snap.Networks = append(snap.Networks, *network)
	}
	for _, account := range accounts {
		snap.Accounts = append(snap.Accounts, *account)
	}
	for _, session := range sessions {
		snap.sessions = append(snap.sessions, session.Host)
	}

	if len(snap.Networks) > 0 {
		snap.Network = snap.Networks[0]
		for _, network := range snap.Networks {
			if network.RPCURL == settings[orm.SettingActiveRPCURL] {
				snap.Network = network
				break
			}
		}
	}
	snap.ActiveAccount = settings[orm.SettingActiveAccount]
	if snap.ActiveAccount == "" && len(snap.Accounts) > 0 {
		snap.ActiveAccount = snap.Accounts[0].Address
	}
	snap.Onboarded = parseBool(settings[orm.SettingOnboarded])
	snap.Settings = Settings{
		BypassConnectAuth:     parseBool(settings[orm.SettingBypassConnectAuth]),
		BypassSignatureAuth:   parseBool(settings[orm.SettingBypassSignatureAuth]),
		BypassTransactionAuth: parseBool(settings[orm.SettingBypassTransactionAuth]),
	}

	s.snapshot.Store(snap)
	return nil
}

// mutate runs fn and publishes a fresh snapshot.
func (s *Store) mutate(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	return s.reload(ctx)
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(value)
	return err == nil && b
}

// Seed writes the configured networks, accounts and settings when the database holds none yet.
func (s *Store) Seed(ctx context.Context, cfg *config.Config) error {
	networkCount, err := s.networkOrm.Count(ctx)
	if err != nil {
		return err
	}
	if networkCount == 0 {
		for _, nc := range cfg.Networks {
			network := &orm.Network{ChainID: nc.ChainID, Name: nc.Name, RPCURL: nc.RPCURL, Type: orm.NetworkType(nc.Type)}
			if network.Type == "" {
				network.Type = orm.NetworkTypeAnvil
			}
			if err = s.networkOrm.Upsert(ctx, network); err != nil {
				return err
			}
		}
		log.Info("seeded networks", "count", len(cfg.Networks))
	}

	accountCount, err := s.accountOrm.Count(ctx)
	if err != nil {
		return err
	}
	if accountCount == 0 {
		for _, ac := range cfg.Accounts {
			account, err := accountFromConfig(ac)
			if err != nil {
				return err
			}
			if err = s.accountOrm.Upsert(ctx, account); err != nil {
				return err
			}
		}
		log.Info("seeded accounts", "count", len(cfg.Accounts))
	}

	defaults := map[string]string{
		orm.SettingActiveRPCURL:          cfg.ActiveRPCURL,
		orm.SettingActiveAccount:         normalizeAddress(cfg.ActiveAccount),
		orm.SettingOnboarded:             strconv.FormatBool(cfg.Onboarded),
		orm.SettingBypassConnectAuth:     strconv.FormatBool(cfg.Settings.BypassConnectAuth),
		orm.SettingBypassSignatureAuth:   strconv.FormatBool(cfg.Settings.BypassSignatureAuth),
		orm.SettingBypassTransactionAuth: strconv.FormatBool(cfg.Settings.BypassTransactionAuth),
	}
	for key, value := range defaults {
		if value == "" {
			continue
		}
		if err = s.settingOrm.SetIfAbsent(ctx, key, value); err != nil {
			return err
		}
	}
	return s.Load(ctx)
}

func accountFromConfig(ac config.AccountConfig) (*orm.Account, error) {
	account := &orm.Account{
		Address:     normalizeAddress(ac.Address),
		RPCURL:      ac.RPCURL,
		Type:        orm.AccountType(ac.Type),
		Impersonate: ac.Impersonate,
		DisplayName: ac.DisplayName,
	}
	if account.Type == orm.AccountTypeLocal {
		key, err := signer.ParsePrivateKey(ac.PrivateKey)
		if err != nil {
			return nil, err
		}
		derived := signer.AddressOf(key)
		if account.Address != "" && !strings.EqualFold(account.Address, derived.Hex()) {
			return nil, errors.New("local account address does not match its private key: " + account.Address)
		}
		account.Address = derived.Hex()
		account.PrivateKey = ac.PrivateKey
	}
	return account, nil
}

func normalizeAddress(address string) string {
	if !common.IsHexAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}
