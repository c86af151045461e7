package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/devwallet/rpcbroker/internal/orm"
	"github.com/devwallet/rpcbroker/internal/store"
	"github.com/devwallet/rpcbroker/internal/transport"
	"github.com/devwallet/rpcbroker/internal/types"
)

// Batch statuses reported by wallet_getCallsStatus.
const (
	CallsStatusPending   = "PENDING"
	CallsStatusConfirmed = "CONFIRMED"
)

// CallsStatus is the result of wallet_getCallsStatus.
type CallsStatus struct {
	Status   string         `json:"status"`
	Receipts []CallsReceipt `json:"receipts"`
}

// CallsReceipt is the projection of a transaction receipt returned for a batch.
type CallsReceipt struct {
	BlockHash       json.RawMessage `json:"blockHash"`
	BlockNumber     json.RawMessage `json:"blockNumber"`
	GasUsed         json.RawMessage `json:"gasUsed"`
	Logs            json.RawMessage `json:"logs"`
	TransactionHash json.RawMessage `json:"transactionHash"`
	Status          json.RawMessage `json:"status"`
}

type atomicBatchCapability struct {
	AtomicBatch struct {
		Supported bool `json:"supported"`
	} `json:"atomicBatch"`
}

// handleInpage answers the methods the wallet implements itself for dapp pages.
// It reports false when method has to go to the node.
func (r *Router) handleInpage(ctx context.Context, rc *requestContext, req types.RPCRequest) (*types.RPCResponse, bool) {
	switch req.Method {
	case types.MethodRequestAccounts:
		return r.requestAccounts(ctx, rc, req), true
	case types.MethodAccounts:
		return r.accounts(rc, req), true
	case types.MethodGetCallsStatus:
		return r.getCallsStatus(ctx, rc, req), true
	case types.MethodGetCapabilities:
		return r.getCapabilities(rc, req), true
	case types.MethodShowCallsStatus:
		return r.showCallsStatus(ctx, rc, req), true
	case types.MethodWatchAsset:
		return r.watchAsset(ctx, rc, req), true
	case types.MethodSwitchEthereumChain:
		return r.switchEthereumChain(ctx, rc, req), true
	case types.MethodAddEthereumChain:
		return r.addEthereumChain(ctx, rc, req), true
	}
	return nil, false
}

func (r *Router) requestAccounts(ctx context.Context, rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	if !rc.snap.Settings.BypassConnectAuth {
		if _, rejection := r.awaitApproval(ctx, rc, req); rejection != nil {
			return rejection
		}
	}

	if err := r.store.AddSession(ctx, rc.host); err != nil {
		log.Error("failed to add session", "host", rc.host, "error", err)
		return errorResponse(req.ID, err)
	}

	snap := r.store.Snapshot()
	active := snap.Network
	if chainID := active.ChainID; chainID != orm.NoChainID {
		r.inpage.Send(types.TopicConnect, types.ConnectEvent{ChainID: types.EncodeChainID(chainID)})
	}
	log.Info("site connected", "host", rc.host, "chain", active.ChainID)
	return types.NewResultResponse(req.ID, snap.Addresses(active.RPCURL))
}

func (r *Router) accounts(rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	if !rc.snap.HasSession(rc.host) {
		return types.NewResultResponse(req.ID, []string{})
	}
	return types.NewResultResponse(req.ID, rc.snap.Addresses(rc.snap.Network.RPCURL))
}

func (r *Router) getCallsStatus(ctx context.Context, rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	batchID, rpcErr := types.DecodeBatchID(req.Method, req.Params)
	if rpcErr != nil {
		return types.NewErrorResponse(req.ID, rpcErr)
	}
	batch, err := r.store.Batch(ctx, batchID)
	if errors.Is(err, store.ErrBatchNotFound) {
		return types.NewErrorResponse(req.ID, types.NewRPCError(types.InvalidParamsCode, "unknown batch id "+batchID, nil))
	}
	if err != nil {
		return errorResponse(req.ID, err)
	}

	client := rc.client
	if batch.RPCURL != "" {
		client = r.dialer.Get(batch.RPCURL)
	}

	raw := make([]json.RawMessage, len(batch.TransactionHashes))
	g, gctx := errgroup.WithContext(ctx)
	for i, hash := range batch.TransactionHashes {
		g.Go(func() error {
			receipt, callErr := transport.Call(gctx, client, "eth_getTransactionReceipt", hash)
			if callErr != nil {
				log.Debug("receipt lookup failed", "hash", hash, "error", callErr)
				return nil
			}
			raw[i] = receipt
			return nil
		})
	}
	_ = g.Wait()

	receipts := make([]CallsReceipt, 0, len(raw))
	for _, receipt := range raw {
		trimmed := bytes.TrimSpace(receipt)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return types.NewResultResponse(req.ID, CallsStatus{Status: CallsStatusPending, Receipts: []CallsReceipt{}})
		}
		var projected CallsReceipt
		if err = json.Unmarshal(trimmed, &projected); err != nil {
			return errorResponse(req.ID, err)
		}
		receipts = append(receipts, projected)
	}
	return types.NewResultResponse(req.ID, CallsStatus{Status: CallsStatusConfirmed, Receipts: receipts})
}

func (r *Router) getCapabilities(rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	capabilities := map[string]atomicBatchCapability{}
	for _, network := range rc.snap.Networks {
		if network.ChainID == orm.NoChainID {
			continue
		}
		capabilities[types.EncodeChainID(network.ChainID)] = atomicBatchCapability{}
	}
	return types.NewResultResponse(req.ID, capabilities)
}

func (r *Router) showCallsStatus(ctx context.Context, rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	batchID, rpcErr := types.DecodeBatchID(req.Method, req.Params)
	if rpcErr != nil {
		return types.NewErrorResponse(req.ID, rpcErr)
	}
	batch, err := r.store.Batch(ctx, batchID)
	if errors.Is(err, store.ErrBatchNotFound) {
		return types.NewErrorResponse(req.ID, types.NewRPCError(types.InvalidParamsCode, "unknown batch id "+batchID, nil))
	}
	if err != nil {
		return errorResponse(req.ID, err)
	}
	if len(batch.TransactionHashes) > 0 {
		r.wallet.Send(types.TopicPushRoute, "/transaction/"+batch.TransactionHashes[0])
	}
	return types.NewResultResponse(req.ID, nil)
}

func (r *Router) watchAsset(ctx context.Context, rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	asset, rpcErr := types.DecodeWatchAsset(req.Params)
	if rpcErr != nil {
		return types.NewErrorResponse(req.ID, rpcErr)
	}
	if strings.EqualFold(asset.Type, "ERC20") && asset.Options.Address != "" {
		err := r.store.AddToken(ctx, rc.snap.ActiveAccount, rc.snap.Network.RPCURL, asset.Options.Address)
		if err != nil {
			log.Warn("failed to watch token", "token", asset.Options.Address, "error", err)
		}
	}
	return types.NewResultResponse(req.ID, true)
}

func (r *Router) switchEthereumChain(ctx context.Context, rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	chainID, hexID, rpcErr := types.DecodeSwitchChain(req.Params)
	if rpcErr != nil {
		return types.NewErrorResponse(req.ID, rpcErr)
	}
	network, ok := rc.snap.NetworkByChainID(chainID)
	if !ok {
		return types.NewErrorResponse(req.ID, types.NewRPCError(types.UnrecognizedChainCode, types.UnrecognizedChainText, nil))
	}
	if err := r.store.SwitchNetwork(ctx, network.RPCURL); err != nil {
		return errorResponse(req.ID, err)
	}
	r.broadcastChainChanged(rc.host, hexID)
	return types.NewResultResponse(req.ID, nil)
}

func (r *Router) addEthereumChain(ctx context.Context, rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	params, chainID, rpcErr := types.DecodeAddChain(req.Params)
	if rpcErr != nil {
		return types.NewErrorResponse(req.ID, rpcErr)
	}
	network := orm.Network{
		ChainID: chainID,
		Name:    params.ChainName,
		RPCURL:  params.RPCURLs[0],
		Type:    orm.NetworkTypeRemote,
	}
	if err := r.store.UpsertNetwork(ctx, network); err != nil {
		return errorResponse(req.ID, err)
	}
	if err := r.store.SwitchNetwork(ctx, network.RPCURL); err != nil {
		return errorResponse(req.ID, err)
	}
	r.broadcastChainChanged(rc.host, types.EncodeChainID(chainID))
	return types.NewResultResponse(req.ID, nil)
}

// broadcastChainChanged tells the requesting site about the new chain. Other sessions are not notified.
func (r *Router) broadcastChainChanged(host, hexID string) {
	sessions := []types.SessionInfo{}
	if host != "" {
		sessions = append(sessions, types.SessionInfo{Host: host})
	}
	r.inpage.Send(types.TopicChainChanged, types.ChainChangedEvent{ChainID: hexID, Sessions: sessions})
}
