package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/devwallet/rpcbroker/internal/transport"
	"github.com/devwallet/rpcbroker/internal/types"
)

type callArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

// SendTransaction fills the missing fields of req from the node, signs it with key and broadcasts it.
func SendTransaction(ctx context.Context, r transport.Requester, key *ecdsa.PrivateKey, req *types.TransactionRequest) (common.Hash, error) {
	from := AddressOf(key)
	if req.From != (common.Address{}) && req.From != from {
		return common.Hash{}, fmt.Errorf("transaction sender %s does not match key %s", req.From.Hex(), from.Hex())
	}

	var chainID hexutil.Big
	if err := transport.CallResult(ctx, r, &chainID, "eth_chainId"); err != nil {
		return common.Hash{}, err
	}

	var nonce uint64
	if req.Nonce != nil {
		nonce = uint64(*req.Nonce)
	} else {
		var pending hexutil.Uint64
		if err := transport.CallResult(ctx, r, &pending, "eth_getTransactionCount", from, "pending"); err != nil {
			return common.Hash{}, err
		}
		nonce = uint64(pending)
	}

	data := req.Payload()
	var gas uint64
	if req.Gas != nil {
		gas = uint64(*req.Gas)
	} else {
		var estimated hexutil.Uint64
		args := callArgs{From: from, To: req.To, Value: req.Value, Data: data}
		if err := transport.CallResult(ctx, r, &estimated, "eth_estimateGas", args); err != nil {
			return common.Hash{}, err
		}
		gas = uint64(estimated)
	}

	value := new(big.Int)
	if req.Value != nil {
		value = req.Value.ToInt()
	}

	var tx *ethtypes.Transaction
	switch {
	case req.MaxFeePerGas != nil:
		tip, err := priorityFee(ctx, r, req)
		if err != nil {
			return common.Hash{}, err
		}
		tx = ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   chainID.ToInt(),
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: req.MaxFeePerGas.ToInt(),
			Gas:       gas,
			To:        req.To,
			Value:     value,
			Data:      data,
		})
	case req.GasPrice != nil:
		tx = ethtypes.NewTx(&ethtypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: req.GasPrice.ToInt(),
			Gas:      gas,
			To:       req.To,
			Value:    value,
			Data:     data,
		})
	default:
		tip, err := priorityFee(ctx, r, req)
		if err != nil {
			return common.Hash{}, err
		}
		var gasPrice hexutil.Big
		if err = transport.CallResult(ctx, r, &gasPrice, "eth_gasPrice"); err != nil {
			return common.Hash{}, err
		}
		tx = ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   chainID.ToInt(),
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: new(big.Int).Add(gasPrice.ToInt(), tip),
			Gas:       gas,
			To:        req.To,
			Value:     value,
			Data:      data,
		})
	}

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID.ToInt()), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode transaction: %w", err)
	}

	var hash common.Hash
	if err = transport.CallResult(ctx, r, &hash, "eth_sendRawTransaction", hexutil.Bytes(raw)); err != nil {
		return common.Hash{}, err
	}
	if hash != signed.Hash() {
		log.Warn("node returned unexpected transaction hash", "expected", signed.Hash(), "got", hash)
	}
	log.Debug("local transaction sent", "from", from, "nonce", nonce, "hash", hash)
	return hash, nil
}

func priorityFee(ctx context.Context, r transport.Requester, req *types.TransactionRequest) (*big.Int, error) {
	if req.MaxPriorityFeePerGas != nil {
		return req.MaxPriorityFeePerGas.ToInt(), nil
	}
	var tip hexutil.Big
	if err := transport.CallResult(ctx, r, &tip, "eth_maxPriorityFeePerGas"); err != nil {
		return nil, err
	}
	return tip.ToInt(), nil
}
