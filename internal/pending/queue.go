// Package pending holds requests waiting for a decision from the wallet interface.
package pending

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/devwallet/rpcbroker/internal/types"
)

var (
	// ErrDuplicateRequest is returned when the sender already has a pending request with the same id.
	ErrDuplicateRequest = errors.New("a request with this id is already pending")
	// ErrClosed is returned by Wait when the request was removed without a decision.
	ErrClosed = errors.New("pending request closed")
)

var pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "rpcbroker_pending_requests",
	Help: "Requests waiting for a wallet decision.",
})

// Key identifies a pending request: the request id scoped by the sender's host.
type Key struct {
	Host string
	ID   int64
}

func (k Key) String() string {
	return k.Host + "#" + strconv.FormatInt(k.ID, 10)
}

// KeyOf returns the key of a pending request.
func KeyOf(req types.PendingRequest) Key {
	return Key{Host: req.Sender.Host(), ID: req.ID}
}

// Entry is the continuation handle of one queued request.
type Entry struct {
	key      Key
	seq      uint64
	request  types.PendingRequest
	decision chan types.Decision
	closed   chan struct{}
	once     sync.Once
}

// Key returns the entry's key.
func (e *Entry) Key() Key {
	return e.key
}

// Wait suspends until a decision arrives, the entry is removed, or ctx ends.
func (e *Entry) Wait(ctx context.Context) (types.Decision, error) {
	select {
	case d := <-e.decision:
		return d, nil
	case <-e.closed:
		// A decision may have raced the close.
		select {
		case d := <-e.decision:
			return d, nil
		default:
		}
		return types.Decision{}, ErrClosed
	case <-ctx.Done():
		return types.Decision{}, ctx.Err()
	}
}

func (e *Entry) close() {
	e.once.Do(func() { close(e.closed) })
}

// Queue is the correlation table of pending requests.
type Queue struct {
	entries *xsync.MapOf[string, *Entry]
	seq     atomic.Uint64
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{entries: xsync.NewMapOf[string, *Entry]()}
}

// Add queues req and returns its continuation handle.
func (q *Queue) Add(req types.PendingRequest) (*Entry, error) {
	entry := &Entry{
		key:      KeyOf(req),
		seq:      q.seq.Add(1),
		request:  req,
		decision: make(chan types.Decision, 1),
		closed:   make(chan struct{}),
	}
	if _, loaded := q.entries.LoadOrStore(entry.key.String(), entry); loaded {
		return nil, ErrDuplicateRequest
	}
	pendingGauge.Inc()
	log.Debug("request queued for approval", "host", entry.key.Host, "id", req.ID, "method", req.Method)
	return entry, nil
}

// Resolve delivers a decision to the matching entry and removes it.
// Decisions that match nothing are ignored and reported as false.
func (q *Queue) Resolve(d types.Decision) bool {
	key := KeyOf(d.Request)
	entry, ok := q.entries.LoadAndDelete(key.String())
	if !ok && d.Request.Sender.URL == "" {
		key, ok = q.uniqueByID(d.Request.ID)
		if ok {
			entry, ok = q.entries.LoadAndDelete(key.String())
		}
	}
	if !ok {
		log.Debug("decision matches no pending request", "id", d.Request.ID, "status", d.Status)
		return false
	}
	pendingGauge.Dec()
	entry.decision <- d
	entry.close()
	log.Debug("pending request settled", "host", key.Host, "id", key.ID, "status", d.Status)
	return true
}

// uniqueByID finds the only entry with id, if exactly one exists.
func (q *Queue) uniqueByID(id int64) (Key, bool) {
	var found Key
	count := 0
	q.entries.Range(func(_ string, entry *Entry) bool {
		if entry.key.ID == id {
			found = entry.key
			count++
		}
		return count < 2
	})
	return found, count == 1
}

// Remove deletes the entry with key. Removing an absent entry is a no-op.
func (q *Queue) Remove(key Key) bool {
	entry, ok := q.entries.LoadAndDelete(key.String())
	if !ok {
		return false
	}
	pendingGauge.Dec()
	entry.close()
	log.Debug("pending request removed", "host", key.Host, "id", key.ID)
	return true
}

// RemoveRequest deletes the entry matching req, falling back to a unique id match when req carries no sender.
func (q *Queue) RemoveRequest(req types.PendingRequest) bool {
	if q.Remove(KeyOf(req)) {
		return true
	}
	if req.Sender.URL != "" {
		return false
	}
	if key, ok := q.uniqueByID(req.ID); ok {
		return q.Remove(key)
	}
	return false
}

// Len returns the number of queued requests.
func (q *Queue) Len() int {
	return q.entries.Size()
}

// List returns the queued requests, oldest first.
func (q *Queue) List() []types.PendingRequest {
	entries := make([]*Entry, 0, q.entries.Size())
	q.entries.Range(func(_ string, entry *Entry) bool {
		entries = append(entries, entry)
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]types.PendingRequest, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.request)
	}
	return out
}
