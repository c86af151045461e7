// Package messenger connects the broker with page and wallet-interface contexts.
package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/devwallet/rpcbroker/internal/types"
)

// ErrNoHandler is returned when a message arrives for a topic nobody replies to.
var ErrNoHandler = errors.New("no handler registered for topic")

// Handler answers one message; the returned value is sent back to the sender.
type Handler func(ctx context.Context, payload json.RawMessage) (interface{}, error)

// Messenger is the request/reply and broadcast capability of one context.
type Messenger interface {
	Reply(topic string, handler Handler)
	Send(topic string, payload interface{})
}

// Publisher mirrors broadcasts to an external bus.
type Publisher interface {
	Publish(subject string, data []byte) error
}

const subscriberBuffer = 64

type originKey struct{}

// WithOrigin returns a copy of ctx carrying the origin of the stream a message arrived on.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// Origin returns the origin stored by WithOrigin, empty when none is set.
func Origin(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

type subscriber struct {
	id  string
	out chan []byte
}

// Channel is a Messenger whose broadcasts reach every connected stream of one context.
type Channel struct {
	name        string
	handlers    *xsync.MapOf[string, Handler]
	subscribers *xsync.MapOf[string, *subscriber]
	connected   *xsync.Counter
	publisher   Publisher
}

// NewChannel creates a Channel named name. publisher may be nil.
func NewChannel(name string, publisher Publisher) *Channel {
	return &Channel{
		name:        name,
		handlers:    xsync.NewMapOf[string, Handler](),
		subscribers: xsync.NewMapOf[string, *subscriber](),
		connected:   xsync.NewCounter(),
		publisher:   publisher,
	}
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// Reply registers the handler of topic, replacing any previous one.
func (c *Channel) Reply(topic string, handler Handler) {
	c.handlers.Store(topic, handler)
}

// Send broadcasts payload on topic. Slow subscribers drop the message.
func (c *Channel) Send(topic string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to encode broadcast", "channel", c.name, "topic", topic, "error", err)
		return
	}
	data, err := json.Marshal(types.Message{Topic: topic, Payload: raw})
	if err != nil {
		log.Error("failed to encode broadcast", "channel", c.name, "topic", topic, "error", err)
		return
	}

	c.subscribers.Range(func(_ string, sub *subscriber) bool {
		select {
		case sub.out <- data:
		default:
			log.Warn("dropping broadcast for slow subscriber", "channel", c.name, "subscriber", sub.id, "topic", topic)
		}
		return true
	})

	if c.publisher != nil {
		subject := fmt.Sprintf("rpcbroker.%s.%s", c.name, topic)
		if err = c.publisher.Publish(subject, data); err != nil {
			log.Warn("failed to publish broadcast", "subject", subject, "error", err)
		}
	}
	log.Debug("broadcast sent", "channel", c.name, "topic", topic)
}

// Dispatch runs the handler registered for msg's topic.
func (c *Channel) Dispatch(ctx context.Context, msg types.Message) (interface{}, error) {
	handler, ok := c.handlers.Load(msg.Topic)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, msg.Topic)
	}
	return handler(ctx, msg.Payload)
}

// Subscribe registers a stream and returns its id and outbound queue.
func (c *Channel) Subscribe() (string, <-chan []byte) {
	sub := &subscriber{id: uuid.NewString(), out: make(chan []byte, subscriberBuffer)}
	c.subscribers.Store(sub.id, sub)
	c.connected.Inc()
	return sub.id, sub.out
}

// Unsubscribe removes a stream.
func (c *Channel) Unsubscribe(id string) {
	if _, ok := c.subscribers.LoadAndDelete(id); ok {
		c.connected.Dec()
	}
}

// Connected returns the number of open streams.
func (c *Channel) Connected() int64 {
	return c.connected.Value()
}
