package controller

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/devwallet/rpcbroker/internal/batch"
	"github.com/devwallet/rpcbroker/internal/orm"
	"github.com/devwallet/rpcbroker/internal/signer"
	"github.com/devwallet/rpcbroker/internal/transport"
	"github.com/devwallet/rpcbroker/internal/types"
)

// execute runs an authorized request: locally for wallet-held keys and batches, otherwise on the node.
func (r *Router) execute(ctx context.Context, rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	if err := r.store.WaitHydrated(ctx); err != nil {
		return errorResponse(req.ID, err)
	}
	if rc.client == nil {
		return types.NewErrorResponse(req.ID, types.NewRPCError(types.UnsupportedMethodCode, types.NotOnboardedMessage, nil))
	}

	if rc.network.EffectiveType() == orm.NetworkTypeAnvil && req.Method == types.MethodPersonalSign {
		req = toEthSign(req)
	}

	switch req.Method {
	case types.MethodSendTransaction:
		tx, rpcErr := types.DecodeSendTransaction(req.Params)
		if rpcErr != nil {
			return types.NewErrorResponse(req.ID, rpcErr)
		}
		if account := rc.snap.FindAccount(tx.From.Hex()); signer.IsLocal(account) {
			return r.sendLocalTransaction(ctx, rc, req, account, tx)
		}

	case types.MethodPersonalSign, types.MethodSign:
		decode := types.DecodePersonalSign
		if req.Method == types.MethodSign {
			decode = types.DecodeEthSign
		}
		msg, rpcErr := decode(req.Params)
		if rpcErr != nil {
			return types.NewErrorResponse(req.ID, rpcErr)
		}
		if account := rc.snap.FindAccount(msg.Address.Hex()); signer.IsLocal(account) {
			return signLocally(req, account, func(key *ecdsa.PrivateKey) (interface{}, error) {
				return signer.SignMessage(key, signer.MessageBytes(msg.Data))
			})
		}

	case types.MethodSignTypedDataV4:
		typed, rpcErr := types.DecodeSignTypedData(req.Params)
		if rpcErr != nil {
			return types.NewErrorResponse(req.ID, rpcErr)
		}
		if account := rc.snap.FindAccount(typed.Address.Hex()); signer.IsLocal(account) {
			return signLocally(req, account, func(key *ecdsa.PrivateKey) (interface{}, error) {
				return signer.SignTypedData(key, typed.TypedData)
			})
		}

	case types.MethodSendCalls:
		return r.sendCalls(ctx, rc, req)
	}

	return r.forward(ctx, rc, req)
}

// toEthSign rewrites personal_sign [data, address] into eth_sign [address, data].
func toEthSign(req types.RPCRequest) types.RPCRequest {
	var params []json.RawMessage
	if err := json.Unmarshal(req.Params, &params); err != nil || len(params) < 2 {
		return req
	}
	swapped, err := json.Marshal([]json.RawMessage{params[1], params[0]})
	if err != nil {
		return req
	}
	req.Method = types.MethodSign
	req.Params = swapped
	return req
}

func signLocally(req types.RPCRequest, account *orm.Account, sign func(*ecdsa.PrivateKey) (interface{}, error)) *types.RPCResponse {
	key, err := signer.KeyOf(account)
	if err != nil {
		log.Error("failed to load local key", "address", account.Address, "error", err)
		return errorResponse(req.ID, err)
	}
	signature, err := sign(key)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return types.NewResultResponse(req.ID, signature)
}

func (r *Router) sendLocalTransaction(ctx context.Context, rc *requestContext, req types.RPCRequest, account *orm.Account, tx *types.TransactionRequest) *types.RPCResponse {
	key, err := signer.KeyOf(account)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	hash, err := signer.SendTransaction(ctx, rc.client, key, tx)
	if err != nil {
		log.Warn("local transaction failed", "from", account.Address, "error", err)
		return errorResponse(req.ID, err)
	}
	r.recordTransaction(ctx, rc, tx, hash.Hex())
	r.wallet.Send(types.TopicTransactionExecuted, nil)
	return types.NewResultResponse(req.ID, hash)
}

func (r *Router) sendCalls(ctx context.Context, rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	params, rpcErr := types.DecodeSendCalls(req.Params)
	if rpcErr != nil {
		return types.NewErrorResponse(req.ID, rpcErr)
	}

	var submitter batch.Submitter = batch.NodeSubmitter{Client: rc.client}
	if params.From != nil {
		if account := rc.snap.FindAccount(params.From.Hex()); signer.IsLocal(account) {
			key, err := signer.KeyOf(account)
			if err != nil {
				return errorResponse(req.ID, err)
			}
			submitter = &localSubmitter{client: rc.client, key: key}
		}
	}

	coordinator := &batch.Coordinator{
		Client:    rc.client,
		Network:   rc.network,
		Submitter: submitter,
		Recorder:  r.store,
	}
	batchID, err := coordinator.Execute(ctx, params)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	r.wallet.Send(types.TopicTransactionExecuted, nil)
	return types.NewResultResponse(req.ID, batchID)
}

// forward relays req to the node and applies the post-processing of sends.
func (r *Router) forward(ctx context.Context, rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	upstream := req
	resp, err := rc.client.Request(ctx, &upstream)
	if err != nil {
		log.Warn("node request failed", "request", rc.logID, "method", req.Method, "rpc", rc.rpcURL, "error", err)
		resp = types.NewErrorResponse(req.ID, types.NewRPCError(types.InternalErrorCode, types.UnknownErrorMessage, nil))
	}
	resp.ID = req.ID

	if req.Method == types.MethodSendTransaction {
		if resp.Error == nil && resp.HasResult() {
			var hash string
			if tx, rpcErr := types.DecodeSendTransaction(req.Params); rpcErr == nil && json.Unmarshal(resp.Result, &hash) == nil {
				r.recordTransaction(ctx, rc, tx, hash)
			}
		}
		r.wallet.Send(types.TopicTransactionExecuted, nil)
	}

	if resp.Error == nil && resp.Success != nil && !*resp.Success && !resp.HasResult() {
		resp = types.NewErrorResponse(req.ID, types.NewRPCError(types.InternalErrorCode, types.UnknownErrorMessage, nil))
	}
	return resp
}

func (r *Router) recordTransaction(ctx context.Context, rc *requestContext, tx *types.TransactionRequest, hash string) {
	record := &orm.Transaction{
		Hash:      hash,
		From:      tx.From.Hex(),
		To:        tx.ToString(),
		Value:     tx.ValueString(),
		Data:      tx.DataString(),
		ChainID:   rc.network.ChainID,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := r.store.AddTransaction(ctx, record); err != nil {
		log.Error("failed to record transaction", "hash", hash, "error", err)
	}
}

// localSubmitter signs batched calls with a wallet-held key.
type localSubmitter struct {
	client transport.Requester
	key    *ecdsa.PrivateKey
}

// Submit implements batch.Submitter.
func (l *localSubmitter) Submit(ctx context.Context, call map[string]json.RawMessage) (string, error) {
	encoded, err := json.Marshal(call)
	if err != nil {
		return "", err
	}
	var tx types.TransactionRequest
	if err = json.Unmarshal(encoded, &tx); err != nil {
		return "", types.NewRPCError(types.InvalidParamsCode, err.Error(), nil)
	}
	hash, err := signer.SendTransaction(ctx, l.client, l.key, &tx)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}
