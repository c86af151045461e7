package pending

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devwallet/rpcbroker/internal/types"
)

func pendingRequest(id int64, url string) types.PendingRequest {
	return types.PendingRequest{
		RPCRequest: types.RPCRequest{JSONRPC: "2.0", ID: id, Method: types.MethodPersonalSign},
		Sender:     types.Sender{URL: url},
	}
}

func TestQueueResolve(t *testing.T) {
	t.Run("Approved", func(t *testing.T) {
		q := NewQueue()
		req := pendingRequest(1, "https://app.example")
		entry, err := q.Add(req)
		require.NoError(t, err)
		assert.Equal(t, 1, q.Len())

		assert.True(t, q.Resolve(types.Decision{Request: req, Status: types.PendingStatusApproved}))
		decision, err := entry.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, types.PendingStatusApproved, decision.Status)
		assert.Equal(t, 0, q.Len())
	})

	t.Run("UnknownIDIgnored", func(t *testing.T) {
		q := NewQueue()
		_, err := q.Add(pendingRequest(1, "https://app.example"))
		require.NoError(t, err)

		assert.False(t, q.Resolve(types.Decision{Request: pendingRequest(2, "https://app.example"), Status: types.PendingStatusApproved}))
		assert.Equal(t, 1, q.Len())
	})

	t.Run("ScopedBySender", func(t *testing.T) {
		q := NewQueue()
		a, err := q.Add(pendingRequest(1, "https://a.example"))
		require.NoError(t, err)
		_, err = q.Add(pendingRequest(1, "https://b.example"))
		require.NoError(t, err)

		assert.True(t, q.Resolve(types.Decision{Request: pendingRequest(1, "https://www.a.example"), Status: types.PendingStatusRejected}))
		decision, err := a.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, types.PendingStatusRejected, decision.Status)
		assert.Equal(t, 1, q.Len())
	})

	t.Run("UniqueIDFallback", func(t *testing.T) {
		q := NewQueue()
		entry, err := q.Add(pendingRequest(5, "https://app.example"))
		require.NoError(t, err)

		assert.True(t, q.Resolve(types.Decision{Request: pendingRequest(5, ""), Status: types.PendingStatusApproved}))
		_, err = entry.Wait(context.Background())
		require.NoError(t, err)
	})

	t.Run("AmbiguousIDFallback", func(t *testing.T) {
		q := NewQueue()
		_, err := q.Add(pendingRequest(5, "https://a.example"))
		require.NoError(t, err)
		_, err = q.Add(pendingRequest(5, "https://b.example"))
		require.NoError(t, err)

		assert.False(t, q.Resolve(types.Decision{Request: pendingRequest(5, ""), Status: types.PendingStatusApproved}))
		assert.Equal(t, 2, q.Len())
	})

	t.Run("SecondDecisionIgnored", func(t *testing.T) {
		q := NewQueue()
		req := pendingRequest(1, "https://app.example")
		_, err := q.Add(req)
		require.NoError(t, err)

		assert.True(t, q.Resolve(types.Decision{Request: req, Status: types.PendingStatusApproved}))
		assert.False(t, q.Resolve(types.Decision{Request: req, Status: types.PendingStatusRejected}))
	})
}

func TestQueueAddDuplicate(t *testing.T) {
	q := NewQueue()
	_, err := q.Add(pendingRequest(1, "https://app.example"))
	require.NoError(t, err)
	_, err = q.Add(pendingRequest(1, "https://app.example"))
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestQueueRemove(t *testing.T) {
	t.Run("WakesWaiter", func(t *testing.T) {
		q := NewQueue()
		req := pendingRequest(1, "https://app.example")
		entry, err := q.Add(req)
		require.NoError(t, err)

		assert.True(t, q.RemoveRequest(req))
		_, err = entry.Wait(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("Idempotent", func(t *testing.T) {
		q := NewQueue()
		entry, err := q.Add(pendingRequest(1, "https://app.example"))
		require.NoError(t, err)

		assert.True(t, q.Remove(entry.Key()))
		assert.False(t, q.Remove(entry.Key()))
		assert.False(t, q.RemoveRequest(pendingRequest(1, "https://app.example")))
		assert.Equal(t, 0, q.Len())
	})

	t.Run("ConcurrentRemoveOnce", func(t *testing.T) {
		q := NewQueue()
		entry, err := q.Add(pendingRequest(1, "https://app.example"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		removed := make(chan bool, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				removed <- q.Remove(entry.Key())
			}()
		}
		wg.Wait()
		close(removed)

		count := 0
		for ok := range removed {
			if ok {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})
}

func TestEntryWaitContext(t *testing.T) {
	q := NewQueue()
	entry, err := q.Add(pendingRequest(1, "https://app.example"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = entry.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Len())
}

func TestQueueList(t *testing.T) {
	q := NewQueue()
	for i := int64(1); i <= 5; i++ {
		_, err := q.Add(pendingRequest(i, "https://app.example"))
		require.NoError(t, err)
	}
	require.True(t, q.Remove(Key{Host: "app.example", ID: 3}))

	list := q.List()
	require.Len(t, list, 4)
	ids := []int64{list[0].ID, list[1].ID, list[2].ID, list[3].ID}
	assert.Equal(t, []int64{1, 2, 4, 5}, ids)
	assert.Equal(t, "app.example#4", KeyOf(list[2]).String())
}
