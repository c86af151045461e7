package transport

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Pool hands out one Client per node url and keeps the most used ones.
type Pool struct {
	mu      sync.Mutex
	clients *lru.TwoQueueCache
	timeout time.Duration
}

// NewPool creates a Pool holding at most size clients.
func NewPool(size int, timeout time.Duration) (*Pool, error) {
	clients, err := lru.New2Q(size)
	if err != nil {
		return nil, err
	}
	return &Pool{clients: clients, timeout: timeout}, nil
}

// Get returns the client for rpcURL, creating it on first use.
func (p *Pool) Get(rpcURL string) Requester {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.clients.Get(rpcURL); ok {
		return cached.(*Client)
	}
	client := NewClient(rpcURL, p.timeout)
	p.clients.Add(rpcURL, client)
	return client
}

// Len returns the number of cached clients.
func (p *Pool) Len() int {
	return p.clients.Len()
}
