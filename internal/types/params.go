package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tidwall/gjson"
)

// Methods that require human approval unless bypassed.
const (
	MethodSendTransaction = "eth_sendTransaction"
	MethodSign            = "eth_sign"
	MethodSignTypedDataV4 = "eth_signTypedData_v4"
	MethodPersonalSign    = "personal_sign"
	MethodSendCalls       = "wallet_sendCalls"

	MethodRequestAccounts     = "eth_requestAccounts"
	MethodAccounts            = "eth_accounts"
	MethodGetCallsStatus      = "wallet_getCallsStatus"
	MethodGetCapabilities     = "wallet_getCapabilities"
	MethodShowCallsStatus     = "wallet_showCallsStatus"
	MethodWatchAsset          = "wallet_watchAsset"
	MethodSwitchEthereumChain = "wallet_switchEthereumChain"
	MethodAddEthereumChain    = "wallet_addEthereumChain"
)

// TransactionRequest is the transaction object of eth_sendTransaction and of every batched call.
type TransactionRequest struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Data                 *hexutil.Bytes  `json:"data,omitempty"`
	Input                *hexutil.Bytes  `json:"input,omitempty"`
	Gas                  *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Nonce                *hexutil.Uint64 `json:"nonce,omitempty"`
}

// Payload returns the call data, preferring `input` over `data`.
func (t *TransactionRequest) Payload() []byte {
	if t.Input != nil {
		return *t.Input
	}
	if t.Data != nil {
		return *t.Data
	}
	return nil
}

// ValueString renders the value in decimal, empty when absent.
func (t *TransactionRequest) ValueString() string {
	if t.Value == nil {
		return ""
	}
	return t.Value.ToInt().String()
}

// DataString renders the call data as hex, empty when absent.
func (t *TransactionRequest) DataString() string {
	if t.Input == nil && t.Data == nil {
		return ""
	}
	return hexutil.Encode(t.Payload())
}

// ToString renders the recipient, empty for contract creation.
func (t *TransactionRequest) ToString() string {
	if t.To == nil {
		return ""
	}
	return t.To.Hex()
}

// MessageParams holds an address and the payload it signs.
type MessageParams struct {
	Address common.Address
	Data    string
}

// TypedDataParams holds an eth_signTypedData_v4 request.
type TypedDataParams struct {
	Address   common.Address
	TypedData json.RawMessage
}

// SendCallsParams is the first parameter of wallet_sendCalls.
type SendCallsParams struct {
	Version      string            `json:"version,omitempty"`
	ChainID      string            `json:"chainId,omitempty"`
	From         *common.Address   `json:"from,omitempty"`
	Calls        []json.RawMessage `json:"calls"`
	Capabilities json.RawMessage   `json:"capabilities,omitempty"`
}

// AddChainParams is the chain descriptor of wallet_addEthereumChain.
type AddChainParams struct {
	ChainID           string   `json:"chainId"`
	ChainName         string   `json:"chainName"`
	RPCURLs           []string `json:"rpcUrls"`
	BlockExplorerURLs []string `json:"blockExplorerUrls,omitempty"`
	NativeCurrency    *struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"nativeCurrency,omitempty"`
}

// WatchAssetParams is the wallet_watchAsset request object.
type WatchAssetParams struct {
	Type    string `json:"type"`
	Options struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol,omitempty"`
		Decimals int    `json:"decimals,omitempty"`
		Image    string `json:"image,omitempty"`
	} `json:"options"`
}

func invalidParams(method string, format string, args ...interface{}) *RPCError {
	return NewRPCError(InvalidParamsCode, fmt.Sprintf("invalid %s params: %s", method, fmt.Sprintf(format, args...)), nil)
}

// positional splits params into its array elements.
func positional(method string, params json.RawMessage, minLen int) ([]json.RawMessage, *RPCError) {
	var values []json.RawMessage
	if err := json.Unmarshal(params, &values); err != nil {
		return nil, invalidParams(method, "expected an array")
	}
	if len(values) < minLen {
		return nil, invalidParams(method, "expected at least %d parameters, got %d", minLen, len(values))
	}
	return values, nil
}

func decodeString(method string, raw json.RawMessage) (string, *RPCError) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", invalidParams(method, "expected a string")
	}
	return s, nil
}

// DecodeSendTransaction decodes eth_sendTransaction params.
func DecodeSendTransaction(params json.RawMessage) (*TransactionRequest, *RPCError) {
	values, rpcErr := positional(MethodSendTransaction, params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var tx TransactionRequest
	if err := json.Unmarshal(values[0], &tx); err != nil {
		return nil, invalidParams(MethodSendTransaction, "%v", err)
	}
	return &tx, nil
}

// DecodePersonalSign decodes personal_sign params. Whichever parameter is not an address is the message.
func DecodePersonalSign(params json.RawMessage) (*MessageParams, *RPCError) {
	values, rpcErr := positional(MethodPersonalSign, params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	first, rpcErr := decodeString(MethodPersonalSign, values[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	second, rpcErr := decodeString(MethodPersonalSign, values[1])
	if rpcErr != nil {
		return nil, rpcErr
	}

	data, from := first, second
	if common.IsHexAddress(first) && !common.IsHexAddress(second) {
		data, from = second, first
	}
	if !common.IsHexAddress(from) {
		return nil, invalidParams(MethodPersonalSign, "no signer address")
	}
	return &MessageParams{Address: common.HexToAddress(from), Data: data}, nil
}

// DecodeEthSign decodes eth_sign params: [address, data].
func DecodeEthSign(params json.RawMessage) (*MessageParams, *RPCError) {
	values, rpcErr := positional(MethodSign, params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	from, rpcErr := decodeString(MethodSign, values[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	data, rpcErr := decodeString(MethodSign, values[1])
	if rpcErr != nil {
		return nil, rpcErr
	}
	if !common.IsHexAddress(from) {
		return nil, invalidParams(MethodSign, "invalid address %q", from)
	}
	return &MessageParams{Address: common.HexToAddress(from), Data: data}, nil
}

// DecodeSignTypedData decodes eth_signTypedData_v4 params. The typed data may arrive as a JSON string or an object.
func DecodeSignTypedData(params json.RawMessage) (*TypedDataParams, *RPCError) {
	values, rpcErr := positional(MethodSignTypedDataV4, params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	from, rpcErr := decodeString(MethodSignTypedDataV4, values[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	if !common.IsHexAddress(from) {
		return nil, invalidParams(MethodSignTypedDataV4, "invalid address %q", from)
	}

	typed := bytes.TrimSpace(values[1])
	if len(typed) > 0 && typed[0] == '"' {
		var encoded string
		if err := json.Unmarshal(typed, &encoded); err != nil {
			return nil, invalidParams(MethodSignTypedDataV4, "%v", err)
		}
		typed = []byte(encoded)
	}
	if !json.Valid(typed) {
		return nil, invalidParams(MethodSignTypedDataV4, "typed data is not valid JSON")
	}
	return &TypedDataParams{Address: common.HexToAddress(from), TypedData: typed}, nil
}

// DecodeSendCalls decodes wallet_sendCalls params.
func DecodeSendCalls(params json.RawMessage) (*SendCallsParams, *RPCError) {
	values, rpcErr := positional(MethodSendCalls, params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p SendCallsParams
	if err := json.Unmarshal(values[0], &p); err != nil {
		return nil, invalidParams(MethodSendCalls, "%v", err)
	}
	if len(p.Calls) == 0 {
		return nil, invalidParams(MethodSendCalls, "no calls")
	}
	for i, call := range p.Calls {
		if !gjson.ValidBytes(call) || !gjson.ParseBytes(call).IsObject() {
			return nil, invalidParams(MethodSendCalls, "call %d is not an object", i)
		}
	}
	return &p, nil
}

// DecodeBatchID decodes the batch id of wallet_getCallsStatus and wallet_showCallsStatus.
func DecodeBatchID(method string, params json.RawMessage) (string, *RPCError) {
	values, rpcErr := positional(method, params, 1)
	if rpcErr != nil {
		return "", rpcErr
	}
	return decodeString(method, values[0])
}

// DecodeSwitchChain decodes wallet_switchEthereumChain params and returns the numeric chain id.
func DecodeSwitchChain(params json.RawMessage) (int64, string, *RPCError) {
	values, rpcErr := positional(MethodSwitchEthereumChain, params, 1)
	if rpcErr != nil {
		return 0, "", rpcErr
	}
	hexID := gjson.GetBytes(values[0], "chainId").String()
	chainID, err := ParseChainID(hexID)
	if err != nil {
		return 0, "", invalidParams(MethodSwitchEthereumChain, "%v", err)
	}
	return chainID, hexID, nil
}

// DecodeAddChain decodes wallet_addEthereumChain params.
func DecodeAddChain(params json.RawMessage) (*AddChainParams, int64, *RPCError) {
	values, rpcErr := positional(MethodAddEthereumChain, params, 1)
	if rpcErr != nil {
		return nil, 0, rpcErr
	}
	var p AddChainParams
	if err := json.Unmarshal(values[0], &p); err != nil {
		return nil, 0, invalidParams(MethodAddEthereumChain, "%v", err)
	}
	chainID, err := ParseChainID(p.ChainID)
	if err != nil {
		return nil, 0, invalidParams(MethodAddEthereumChain, "%v", err)
	}
	if len(p.RPCURLs) == 0 || p.RPCURLs[0] == "" {
		return nil, 0, invalidParams(MethodAddEthereumChain, "rpcUrls is empty")
	}
	return &p, chainID, nil
}

// DecodeWatchAsset decodes wallet_watchAsset params, given either as an object or a one element array.
func DecodeWatchAsset(params json.RawMessage) (*WatchAssetParams, *RPCError) {
	raw := bytes.TrimSpace(params)
	if len(raw) > 0 && raw[0] == '[' {
		values, rpcErr := positional(MethodWatchAsset, params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		raw = values[0]
	}
	var p WatchAssetParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidParams(MethodWatchAsset, "%v", err)
	}
	return &p, nil
}

// ExtractSigner returns the address expected to sign a request, empty when the method carries none.
func ExtractSigner(method string, params json.RawMessage) string {
	switch method {
	case MethodSendTransaction:
		return gjson.GetBytes(params, "0.from").String()
	case MethodPersonalSign:
		first := gjson.GetBytes(params, "0").String()
		if common.IsHexAddress(first) {
			return first
		}
		return gjson.GetBytes(params, "1").String()
	case MethodSign, MethodSignTypedDataV4:
		return gjson.GetBytes(params, "0").String()
	case MethodSendCalls:
		return gjson.GetBytes(params, "0.from").String()
	}
	return ""
}

// ParseChainID parses a hex encoded chain id.
func ParseChainID(hexID string) (int64, error) {
	if !strings.HasPrefix(hexID, "0x") && !strings.HasPrefix(hexID, "0X") {
		return 0, fmt.Errorf("chain id %q is not hex encoded", hexID)
	}
	id, ok := new(big.Int).SetString(hexID[2:], 16)
	if !ok || !id.IsInt64() {
		return 0, fmt.Errorf("invalid chain id %q", hexID)
	}
	return id.Int64(), nil
}

// EncodeChainID hex encodes a chain id.
func EncodeChainID(chainID int64) string {
	return hexutil.EncodeUint64(uint64(chainID))
}
