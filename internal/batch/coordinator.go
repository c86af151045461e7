// Package batch submits groups of calls so they land in the same block.
package batch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/devwallet/rpcbroker/internal/orm"
	"github.com/devwallet/rpcbroker/internal/transport"
	"github.com/devwallet/rpcbroker/internal/types"
)

var batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rpcbroker_batches_total",
	Help: "wallet_sendCalls batches by outcome.",
}, []string{"outcome"})

// Submitter sends one call as a transaction and returns its hash.
type Submitter interface {
	Submit(ctx context.Context, call map[string]json.RawMessage) (string, error)
}

// Recorder persists a finished batch.
type Recorder interface {
	SaveBatch(ctx context.Context, batch *orm.Batch) error
}

// NodeSubmitter submits calls through the node's eth_sendTransaction.
type NodeSubmitter struct {
	Client transport.Requester
}

// Submit implements Submitter.
func (n NodeSubmitter) Submit(ctx context.Context, call map[string]json.RawMessage) (string, error) {
	var hash string
	if err := transport.CallResult(ctx, n.Client, &hash, "eth_sendTransaction", call); err != nil {
		return "", err
	}
	return hash, nil
}

// Coordinator runs one batch against one network.
type Coordinator struct {
	Client    transport.Requester
	Network   orm.Network
	Submitter Submitter
	Recorder  Recorder
}

// ID derives the batch id from the ordered transaction hashes.
func ID(hashes []string) string {
	if hashes == nil {
		hashes = []string{}
	}
	encoded, _ := json.Marshal(hashes)
	return crypto.Keccak256Hash(encoded).Hex()
}

// Execute simulates every call, submits them with block production paused and returns the batch id.
// Calls already submitted when a later one fails are not rolled back.
func (c *Coordinator) Execute(ctx context.Context, params *types.SendCallsParams) (batchID string, err error) {
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		batchesTotal.WithLabelValues(outcome).Inc()
	}()

	calls, err := prepareCalls(params)
	if err != nil {
		return "", err
	}

	for i, call := range calls {
		if _, err = transport.Call(ctx, c.Client, "eth_call", call); err != nil {
			log.Debug("batch simulation failed", "call", i, "error", err)
			return "", err
		}
	}

	automine := false
	if c.Network.EffectiveType() == orm.NetworkTypeAnvil {
		if getErr := transport.CallResult(ctx, c.Client, &automine, "anvil_getAutomine"); getErr != nil {
			log.Debug("anvil_getAutomine unavailable", "error", getErr)
			automine = false
		}
		if automine {
			if _, err = transport.Call(ctx, c.Client, "evm_setAutomine", false); err != nil {
				return "", err
			}
			defer func() {
				restoreCtx := context.WithoutCancel(ctx)
				if _, restoreErr := transport.Call(restoreCtx, c.Client, "evm_setAutomine", true); restoreErr != nil {
					log.Error("failed to restore automine", "rpc", c.Network.RPCURL, "error", restoreErr)
				}
			}()
		}
	}

	hashes := make([]string, 0, len(calls))
	for i, call := range calls {
		hash, submitErr := c.Submitter.Submit(ctx, call)
		if submitErr != nil {
			log.Warn("batch submission aborted", "call", i, "submitted", len(hashes), "error", submitErr)
			return "", submitErr
		}
		hashes = append(hashes, hash)
	}

	if automine {
		if _, err = transport.Call(ctx, c.Client, "anvil_mine", "0x1", "0x0"); err != nil {
			return "", err
		}
	}

	batchID = ID(hashes)
	err = c.Recorder.SaveBatch(ctx, &orm.Batch{
		BatchID:           batchID,
		ChainID:           c.Network.ChainID,
		RPCURL:            c.Network.RPCURL,
		Calls:             params.Calls,
		TransactionHashes: hashes,
	})
	if err != nil {
		return "", fmt.Errorf("failed to save batch: %w", err)
	}
	log.Info("batch submitted", "id", batchID, "transactions", len(hashes))
	return batchID, nil
}

// prepareCalls substitutes the effective sender into every call and drops explicit nonces.
func prepareCalls(params *types.SendCallsParams) ([]map[string]json.RawMessage, error) {
	var from json.RawMessage
	if params.From != nil && *params.From != (common.Address{}) {
		from, _ = json.Marshal(params.From)
	}

	calls := make([]map[string]json.RawMessage, 0, len(params.Calls))
	for i, raw := range params.Calls {
		call := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &call); err != nil {
			return nil, types.NewRPCError(types.InvalidParamsCode, fmt.Sprintf("invalid call %d: %v", i, err), nil)
		}
		if from != nil {
			call["from"] = from
		}
		delete(call, "nonce")
		calls = append(calls, call)
	}
	return calls, nil
}
