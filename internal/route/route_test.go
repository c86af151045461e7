package route

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/devwallet/rpcbroker/internal/config"
	"github.com/devwallet/rpcbroker/internal/controller"
	"github.com/devwallet/rpcbroker/internal/messenger"
	"github.com/devwallet/rpcbroker/internal/orm"
	"github.com/devwallet/rpcbroker/internal/pending"
	"github.com/devwallet/rpcbroker/internal/store"
	"github.com/devwallet/rpcbroker/internal/testutil"
	"github.com/devwallet/rpcbroker/internal/transport"
	"github.com/devwallet/rpcbroker/internal/types"
)

const walletKey = "wallet-secret"

func setupRouter(t *testing.T) (*gin.Engine, *testutil.Node) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, orm.AutoMigrate(db))

	node := testutil.NewNode(t)
	node.Result("eth_chainId", "0x7a69")

	conf := &config.Config{
		WalletAPIKeys:  []string{walletKey},
		RateLimiterQPS: 100,
		Networks:       []config.NetworkConfig{{ChainID: 31337, Name: "Anvil", RPCURL: node.URL, Type: "anvil"}},
		ActiveRPCURL:   node.URL,
		Onboarded:      true,
	}
	st := store.NewStore(db)
	require.NoError(t, st.Seed(context.Background(), conf))

	pool, err := transport.NewPool(4, 5*time.Second)
	require.NoError(t, err)
	inpage := messenger.NewChannel(types.ChannelInpage, nil)
	wallet := messenger.NewChannel(types.ChannelWallet, nil)
	controller.InitAPI(st, pending.NewQueue(), pool, inpage, wallet)

	router := gin.New()
	Route(router, conf, Channels{Inpage: inpage, Wallet: wallet}, st, false)
	return router, node
}

func TestRoute(t *testing.T) {
	router, _ := setupRouter(t)

	do := func(method, path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("HealthEndpoints", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/health", "", "").Code)
		w := do(http.MethodGet, "/ready", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		var resp types.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, types.Success, resp.ErrCode)
	})

	t.Run("InpageRPC", func(t *testing.T) {
		body := `{"request":{"jsonrpc":"2.0","id":1,"method":"eth_chainId"},"sender":{"tab":{"id":1,"url":"https://app.example.com"},"url":"https://app.example.com"}}`
		w := do(http.MethodPost, "/inpage/rpc", body, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"0x7a69"}`, w.Body.String())
	})

	t.Run("WalletRequiresKey", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/wallet/settings", "", "").Code)
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/wallet/settings", "", "wrong").Code)
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/wallet/settings", "", walletKey).Code)
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/wallet/pending?token="+walletKey, "", "").Code)
	})

	t.Run("WalletRPC", func(t *testing.T) {
		body := `{"request":{"id":2,"method":"eth_chainId"},"sender":{"url":"chrome-extension://devwallet/popup.html"}}`
		w := do(http.MethodPost, "/wallet/rpc", body, walletKey)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"result":"0x7a69"}`, w.Body.String())
	})

	t.Run("NotFound", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/nowhere", "", "").Code)
	})
}
