package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devwallet/rpcbroker/internal/orm"
	"github.com/devwallet/rpcbroker/internal/testutil"
	"github.com/devwallet/rpcbroker/internal/transport"
	"github.com/devwallet/rpcbroker/internal/types"
)

const sender = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

type memoryRecorder struct {
	batches []*orm.Batch
}

func (m *memoryRecorder) SaveBatch(_ context.Context, batch *orm.Batch) error {
	m.batches = append(m.batches, batch)
	return nil
}

func fakeAnvil(t *testing.T, automine bool) *testutil.Node {
	node := testutil.NewNode(t)
	node.Result("eth_call", "0x")
	node.Result("anvil_getAutomine", automine)
	node.Result("evm_setAutomine", nil)
	node.Result("anvil_mine", nil)

	var nonce atomic.Int64
	node.Handle("eth_sendTransaction", func(json.RawMessage) (interface{}, *types.RPCError) {
		return fmt.Sprintf("0x%064x", nonce.Add(1)), nil
	})
	return node
}

func sendCalls(calls ...string) *types.SendCallsParams {
	from := common.HexToAddress(sender)
	params := &types.SendCallsParams{From: &from}
	for _, call := range calls {
		params.Calls = append(params.Calls, json.RawMessage(call))
	}
	return params
}

func newCoordinator(node *testutil.Node, networkType orm.NetworkType, recorder Recorder) *Coordinator {
	client := transport.NewClient(node.URL, time.Second)
	return &Coordinator{
		Client:    client,
		Network:   orm.Network{ChainID: 31337, RPCURL: node.URL, Type: networkType},
		Submitter: NodeSubmitter{Client: client},
		Recorder:  recorder,
	}
}

func TestID(t *testing.T) {
	hashes := []string{"0x01", "0x02"}
	assert.Equal(t, crypto.Keccak256Hash([]byte(`["0x01","0x02"]`)).Hex(), ID(hashes))
	assert.Equal(t, ID(hashes), ID([]string{"0x01", "0x02"}))
	assert.NotEqual(t, ID(hashes), ID([]string{"0x02", "0x01"}))
	assert.Equal(t, crypto.Keccak256Hash([]byte(`[]`)).Hex(), ID(nil))
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	calls := []string{`{"to":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8","value":"0x1"}`, `{"to":"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC","nonce":"0x9"}`}

	t.Run("AutomineRestored", func(t *testing.T) {
		node := fakeAnvil(t, true)
		recorder := &memoryRecorder{}
		batchID, err := newCoordinator(node, orm.NetworkTypeAnvil, recorder).Execute(ctx, sendCalls(calls...))
		require.NoError(t, err)

		assert.Equal(t, []string{
			"eth_call", "eth_call",
			"anvil_getAutomine", "evm_setAutomine",
			"eth_sendTransaction", "eth_sendTransaction",
			"anvil_mine", "evm_setAutomine",
		}, node.Methods())

		setCalls := []string{}
		for _, call := range node.Calls() {
			if call.Method == "evm_setAutomine" {
				setCalls = append(setCalls, string(call.Params))
			}
		}
		assert.Equal(t, []string{"[false]", "[true]"}, setCalls)

		require.Len(t, recorder.batches, 1)
		saved := recorder.batches[0]
		assert.Equal(t, batchID, saved.BatchID)
		assert.Equal(t, ID(saved.TransactionHashes), batchID)
		assert.Len(t, saved.TransactionHashes, 2)
		assert.Equal(t, int64(31337), saved.ChainID)
	})

	t.Run("AutomineOff", func(t *testing.T) {
		node := fakeAnvil(t, false)
		_, err := newCoordinator(node, orm.NetworkTypeAnvil, &memoryRecorder{}).Execute(ctx, sendCalls(calls...))
		require.NoError(t, err)
		assert.Equal(t, 0, node.Count("evm_setAutomine"))
		assert.Equal(t, 0, node.Count("anvil_mine"))
		assert.Equal(t, 2, node.Count("eth_sendTransaction"))
	})

	t.Run("AutomineQueryFails", func(t *testing.T) {
		node := fakeAnvil(t, true)
		node.Handle("anvil_getAutomine", func(json.RawMessage) (interface{}, *types.RPCError) {
			return nil, types.NewRPCError(types.MethodNotFoundCode, "not supported", nil)
		})
		_, err := newCoordinator(node, orm.NetworkTypeAnvil, &memoryRecorder{}).Execute(ctx, sendCalls(calls...))
		require.NoError(t, err)
		assert.Equal(t, 0, node.Count("evm_setAutomine"))
	})

	t.Run("RemoteSkipsAutomine", func(t *testing.T) {
		node := fakeAnvil(t, true)
		_, err := newCoordinator(node, orm.NetworkTypeRemote, &memoryRecorder{}).Execute(ctx, sendCalls(calls...))
		require.NoError(t, err)
		assert.Equal(t, 0, node.Count("anvil_getAutomine"))
		assert.Equal(t, 0, node.Count("evm_setAutomine"))
	})

	t.Run("SimulationFailureSubmitsNothing", func(t *testing.T) {
		node := fakeAnvil(t, true)
		var simulated atomic.Int32
		node.Handle("eth_call", func(json.RawMessage) (interface{}, *types.RPCError) {
			if simulated.Add(1) == 2 {
				return nil, types.NewRPCError(3, "execution reverted", nil)
			}
			return "0x", nil
		})
		recorder := &memoryRecorder{}
		_, err := newCoordinator(node, orm.NetworkTypeAnvil, recorder).Execute(ctx, sendCalls(calls...))
		require.Error(t, err)
		assert.Equal(t, "execution reverted", err.Error())
		assert.Equal(t, 0, node.Count("eth_sendTransaction"))
		assert.Equal(t, 0, node.Count("evm_setAutomine"))
		assert.Empty(t, recorder.batches)
	})

	t.Run("SubmitFailureRestoresAutomine", func(t *testing.T) {
		node := fakeAnvil(t, true)
		var submitted atomic.Int32
		node.Handle("eth_sendTransaction", func(json.RawMessage) (interface{}, *types.RPCError) {
			if submitted.Add(1) == 2 {
				return nil, types.NewRPCError(-32000, "nonce too low", nil)
			}
			return "0x01", nil
		})
		recorder := &memoryRecorder{}
		_, err := newCoordinator(node, orm.NetworkTypeAnvil, recorder).Execute(ctx, sendCalls(calls...))
		require.Error(t, err)
		assert.Empty(t, recorder.batches)
		assert.Equal(t, 0, node.Count("anvil_mine"))

		methods := node.Methods()
		assert.Equal(t, "evm_setAutomine", methods[len(methods)-1])
		assert.JSONEq(t, `[true]`, string(node.Calls()[len(methods)-1].Params))
	})

	t.Run("SenderSubstitutedNonceDropped", func(t *testing.T) {
		node := fakeAnvil(t, false)
		_, err := newCoordinator(node, orm.NetworkTypeAnvil, &memoryRecorder{}).Execute(ctx, sendCalls(calls...))
		require.NoError(t, err)

		for _, call := range node.Calls() {
			if call.Method != "eth_sendTransaction" && call.Method != "eth_call" {
				continue
			}
			var params []map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(call.Params, &params))
			require.Len(t, params, 1)
			assert.JSONEq(t, `"`+sender+`"`, string(params[0]["from"]))
			assert.NotContains(t, params[0], "nonce")
		}
	})
}
