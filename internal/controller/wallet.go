package controller

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"

	"github.com/devwallet/rpcbroker/internal/pending"
	"github.com/devwallet/rpcbroker/internal/store"
	"github.com/devwallet/rpcbroker/internal/types"
)

// WalletController serves the wallet interface API
type WalletController struct {
	store *store.Store
	queue *pending.Queue
}

// NewWalletController creates a new WalletController
func NewWalletController(st *store.Store, queue *pending.Queue) *WalletController {
	return &WalletController{store: st, queue: queue}
}

// SettingsView is the settings document of the wallet interface.
type SettingsView struct {
	store.Settings
	Onboarded bool `json:"onboarded"`
}

type settingsUpdate struct {
	BypassConnectAuth     *bool `json:"bypassConnectAuth"`
	BypassSignatureAuth   *bool `json:"bypassSignatureAuth"`
	BypassTransactionAuth *bool `json:"bypassTransactionAuth"`
	Onboarded             *bool `json:"onboarded"`
}

// ListPending lists the requests waiting for a decision
func (wc *WalletController) ListPending(c *gin.Context) {
	types.RenderSuccess(c, wc.queue.List())
}

// Decide settles a pending request
func (wc *WalletController) Decide(c *gin.Context) {
	var decision types.Decision
	if err := c.ShouldBindJSON(&decision); err != nil {
		types.RenderFailure(c, types.InvalidParamsCode, err)
		return
	}
	if err := decision.Validate(); err != nil {
		types.RenderFailure(c, types.InvalidParamsCode, err)
		return
	}
	types.RenderSuccess(c, gin.H{"resolved": wc.queue.Resolve(decision)})
}

// Close drops a pending request whose approval surface went away
func (wc *WalletController) Close(c *gin.Context) {
	var signal types.ClosedSignal
	if err := c.ShouldBindJSON(&signal); err != nil {
		types.RenderFailure(c, types.InvalidParamsCode, err)
		return
	}
	types.RenderSuccess(c, gin.H{"removed": wc.queue.RemoveRequest(signal.Request)})
}

// Transactions lists the sent transaction history
func (wc *WalletController) Transactions(c *gin.Context) {
	var chainID int64
	if raw := c.Query("chain_id"); raw != "" {
		var err error
		if strings.HasPrefix(raw, "0x") {
			chainID, err = types.ParseChainID(raw)
		} else {
			chainID, err = strconv.ParseInt(raw, 10, 64)
		}
		if err != nil {
			types.RenderFailure(c, types.InvalidParamsCode, fmt.Errorf("invalid chain_id: %w", err))
			return
		}
	}

	txs, err := wc.store.Transactions(c.Request.Context(), c.Query("address"), chainID)
	if err != nil {
		log.Error("Failed to list transactions", "error", err)
		types.RenderFailure(c, types.InternalServerError, err)
		return
	}
	types.RenderSuccess(c, txs)
}

// Batch returns a stored wallet_sendCalls batch
func (wc *WalletController) Batch(c *gin.Context) {
	batch, err := wc.store.Batch(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrBatchNotFound) {
		types.RenderFailure(c, types.InvalidParamsCode, err)
		return
	}
	if err != nil {
		log.Error("Failed to get batch", "id", c.Param("id"), "error", err)
		types.RenderFailure(c, types.InternalServerError, err)
		return
	}
	types.RenderSuccess(c, batch)
}

// Sessions lists the connected hosts
func (wc *WalletController) Sessions(c *gin.Context) {
	hosts := wc.store.Snapshot().Sessions()
	sessions := make([]types.SessionInfo, 0, len(hosts))
	for _, host := range hosts {
		sessions = append(sessions, types.SessionInfo{Host: host})
	}
	types.RenderSuccess(c, sessions)
}

// RevokeSession disconnects a host
func (wc *WalletController) RevokeSession(c *gin.Context) {
	host := types.NormalizeHost(c.Param("host"))
	removed, err := wc.store.RevokeSession(c.Request.Context(), host)
	if err != nil {
		log.Error("Failed to revoke session", "host", host, "error", err)
		types.RenderFailure(c, types.InternalServerError, err)
		return
	}
	if removed {
		log.Info("session revoked", "host", host)
	}
	types.RenderSuccess(c, gin.H{"removed": removed})
}

// GetSettings returns the approval bypass flags and the onboarding flag
func (wc *WalletController) GetSettings(c *gin.Context) {
	snap := wc.store.Snapshot()
	types.RenderSuccess(c, SettingsView{Settings: snap.Settings, Onboarded: snap.Onboarded})
}

// UpdateSettings changes the fields present in the body
func (wc *WalletController) UpdateSettings(c *gin.Context) {
	var update settingsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		types.RenderFailure(c, types.InvalidParamsCode, err)
		return
	}

	ctx := c.Request.Context()
	settings := wc.store.Snapshot().Settings
	if update.BypassConnectAuth != nil {
		settings.BypassConnectAuth = *update.BypassConnectAuth
	}
	if update.BypassSignatureAuth != nil {
		settings.BypassSignatureAuth = *update.BypassSignatureAuth
	}
	if update.BypassTransactionAuth != nil {
		settings.BypassTransactionAuth = *update.BypassTransactionAuth
	}
	if err := wc.store.UpdateSettings(ctx, settings); err != nil {
		log.Error("Failed to update settings", "error", err)
		types.RenderFailure(c, types.InternalServerError, err)
		return
	}
	if update.Onboarded != nil {
		if err := wc.store.SetOnboarded(ctx, *update.Onboarded); err != nil {
			log.Error("Failed to update onboarding flag", "error", err)
			types.RenderFailure(c, types.InternalServerError, err)
			return
		}
	}
	wc.GetSettings(c)
}
