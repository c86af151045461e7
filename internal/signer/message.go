package signer

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// MessageBytes decodes a hex message; anything that is not 0x hex is signed as its UTF-8 bytes.
func MessageBytes(data string) []byte {
	if strings.HasPrefix(data, "0x") || strings.HasPrefix(data, "0X") {
		if decoded, err := hexutil.Decode(data); err == nil {
			return decoded
		}
	}
	return []byte(data)
}

// SignMessage signs an EIP-191 personal message.
func SignMessage(key *ecdsa.PrivateKey, message []byte) (hexutil.Bytes, error) {
	return signHash(key, accounts.TextHash(message))
}

// SignTypedData signs EIP-712 typed data given as JSON.
func SignTypedData(key *ecdsa.PrivateKey, typedDataJSON []byte) (hexutil.Bytes, error) {
	var typedData apitypes.TypedData
	if err := json.Unmarshal(typedDataJSON, &typedData); err != nil {
		return nil, fmt.Errorf("failed to parse typed data: %w", err)
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return signHash(key, hash)
}

// signHash signs a 32 byte digest and shifts v to 27/28.
func signHash(key *ecdsa.PrivateKey, hash []byte) (hexutil.Bytes, error) {
	signature, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}
	signature[64] += 27
	return signature, nil
}
