package store

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/devwallet/rpcbroker/internal/config"
	"github.com/devwallet/rpcbroker/internal/orm"
)

const (
	anvilURL  = "http://127.0.0.1:8545"
	remoteURL = "https://eth.drpc.org"

	localKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	localAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	rpcAddress   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	otherAddress = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, orm.AutoMigrate(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Networks: []config.NetworkConfig{
			{ChainID: 31337, Name: "Anvil", RPCURL: anvilURL, Type: "anvil"},
			{ChainID: 1, Name: "Mainnet", RPCURL: remoteURL, Type: "remote"},
		},
		ActiveRPCURL:  anvilURL,
		ActiveAccount: rpcAddress,
		Accounts: []config.AccountConfig{
			{Type: "local", PrivateKey: localKey},
			{Type: "json-rpc", Address: rpcAddress, Impersonate: true, RPCURL: anvilURL},
			{Type: "json-rpc", Address: otherAddress, RPCURL: remoteURL},
		},
		Settings:  config.SettingsConfig{BypassConnectAuth: true},
		Onboarded: true,
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	st := NewStore(db)
	require.NoError(t, st.Seed(ctx, testConfig()))

	snap := st.Snapshot()
	require.Len(t, snap.Networks, 2)
	assert.Equal(t, anvilURL, snap.Network.RPCURL)
	assert.True(t, snap.Onboarded)
	assert.True(t, snap.Settings.BypassConnectAuth)
	assert.False(t, snap.Settings.BypassTransactionAuth)

	require.Len(t, snap.Accounts, 3)
	local := snap.FindAccount(localAddress)
	require.NotNil(t, local)
	assert.Equal(t, orm.AccountTypeLocal, local.Type)
	assert.Equal(t, localAddress, local.Address)

	t.Run("ExistingRowsWin", func(t *testing.T) {
		require.NoError(t, st.SwitchNetwork(ctx, remoteURL))
		cfg := testConfig()
		cfg.Networks = cfg.Networks[:1]
		cfg.Onboarded = false

		again := NewStore(db)
		require.NoError(t, again.Seed(ctx, cfg))
		snap := again.Snapshot()
		assert.Len(t, snap.Networks, 2)
		assert.Equal(t, remoteURL, snap.Network.RPCURL)
		assert.True(t, snap.Onboarded)
	})

	t.Run("MismatchedLocalAddress", func(t *testing.T) {
		cfg := testConfig()
		cfg.Accounts = []config.AccountConfig{{Type: "local", PrivateKey: localKey, Address: otherAddress}}
		assert.Error(t, NewStore(setupTestDB(t)).Seed(ctx, cfg))
	})
}

func TestSnapshotAddresses(t *testing.T) {
	ctx := context.Background()
	st := NewStore(setupTestDB(t))
	require.NoError(t, st.Seed(ctx, testConfig()))

	snap := st.Snapshot()
	assert.Equal(t, []string{rpcAddress, localAddress}, snap.Addresses(anvilURL))
	assert.Equal(t, []string{localAddress, otherAddress}, snap.Addresses(remoteURL))

	require.NoError(t, st.SetActiveAccount(ctx, localAddress))
	assert.Equal(t, []string{localAddress, rpcAddress}, st.Snapshot().Addresses(anvilURL))
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	st := NewStore(setupTestDB(t))
	require.NoError(t, st.Load(ctx))

	before := st.Snapshot()
	require.NoError(t, st.AddSession(ctx, "app.example"))

	assert.False(t, before.HasSession("app.example"))
	assert.True(t, st.Snapshot().HasSession("app.example"))
	assert.False(t, st.Snapshot().HasSession(""))
	assert.Equal(t, []string{"app.example"}, st.Snapshot().Sessions())

	removed, err := st.RevokeSession(ctx, "app.example")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, st.Snapshot().HasSession("app.example"))
}

func TestWaitHydrated(t *testing.T) {
	st := NewStore(setupTestDB(t))
	assert.False(t, st.Hydrated())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, st.WaitHydrated(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() {
		done <- st.WaitHydrated(context.Background())
	}()
	require.NoError(t, st.Load(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitHydrated did not return after Load")
	}
	assert.True(t, st.Hydrated())
}

func TestNetworksAndSettings(t *testing.T) {
	ctx := context.Background()
	st := NewStore(setupTestDB(t))
	require.NoError(t, st.Seed(ctx, testConfig()))

	require.NoError(t, st.UpsertNetwork(ctx, orm.Network{ChainID: 10, Name: "Optimism", RPCURL: "https://mainnet.optimism.io", Type: orm.NetworkTypeRemote}))
	require.NoError(t, st.SwitchNetwork(ctx, "https://mainnet.optimism.io"))

	snap := st.Snapshot()
	assert.Equal(t, int64(10), snap.Network.ChainID)
	network, ok := snap.NetworkByChainID(31337)
	require.True(t, ok)
	assert.Equal(t, anvilURL, network.RPCURL)
	_, ok = snap.NetworkByChainID(5)
	assert.False(t, ok)
	assert.Equal(t, anvilURL, snap.NetworkFor(anvilURL).RPCURL)
	assert.Equal(t, int64(10), snap.NetworkFor("http://unknown").ChainID)

	require.NoError(t, st.UpdateSettings(ctx, Settings{BypassSignatureAuth: true}))
	require.NoError(t, st.SetOnboarded(ctx, false))
	snap = st.Snapshot()
	assert.Equal(t, Settings{BypassSignatureAuth: true}, snap.Settings)
	assert.False(t, snap.Onboarded)
}

func TestBatchesAndHistory(t *testing.T) {
	ctx := context.Background()
	st := NewStore(setupTestDB(t))

	require.NoError(t, st.SaveBatch(ctx, &orm.Batch{BatchID: "0xabcdef", TransactionHashes: []string{"0x01"}}))
	batch, err := st.Batch(ctx, "0xABCDEF")
	require.NoError(t, err)
	assert.Equal(t, []string{"0x01"}, batch.TransactionHashes)

	_, err = st.Batch(ctx, "0x00")
	assert.ErrorIs(t, err, ErrBatchNotFound)

	require.NoError(t, st.AddTransaction(ctx, &orm.Transaction{Hash: "0x01", From: localAddress, ChainID: 31337}))
	txs, err := st.Transactions(ctx, localAddress, 31337)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	require.NoError(t, st.AddToken(ctx, localAddress, anvilURL, "0x5FbDB2315678afecb367f032d93F642f64180aa3"))
	tokens, err := st.Tokens(ctx, localAddress, anvilURL)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
}
