package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devwallet/rpcbroker/internal/types"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (p *recordingPublisher) Publish(subject string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return p.err
}

func decode(t *testing.T, data []byte) types.Message {
	var msg types.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestChannelSend(t *testing.T) {
	t.Run("FanOut", func(t *testing.T) {
		channel := NewChannel(types.ChannelInpage, nil)
		_, first := channel.Subscribe()
		_, second := channel.Subscribe()
		assert.Equal(t, int64(2), channel.Connected())

		channel.Send(types.TopicConnect, types.ConnectEvent{ChainID: "0x7a69"})
		for _, out := range []<-chan []byte{first, second} {
			msg := decode(t, <-out)
			assert.Equal(t, types.TopicConnect, msg.Topic)
			assert.JSONEq(t, `{"chainId":"0x7a69"}`, string(msg.Payload))
		}
	})

	t.Run("NilPayload", func(t *testing.T) {
		channel := NewChannel(types.ChannelWallet, nil)
		_, out := channel.Subscribe()
		channel.Send(types.TopicTransactionExecuted, nil)
		msg := decode(t, <-out)
		assert.Equal(t, types.TopicTransactionExecuted, msg.Topic)
		assert.Equal(t, "null", string(msg.Payload))
	})

	t.Run("SlowSubscriberDrops", func(t *testing.T) {
		channel := NewChannel(types.ChannelWallet, nil)
		_, out := channel.Subscribe()
		for i := 0; i < subscriberBuffer+10; i++ {
			channel.Send(types.TopicTransactionExecuted, i)
		}
		assert.Len(t, out, subscriberBuffer)
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		channel := NewChannel(types.ChannelWallet, nil)
		id, out := channel.Subscribe()
		channel.Unsubscribe(id)
		channel.Unsubscribe(id)
		assert.Equal(t, int64(0), channel.Connected())

		channel.Send(types.TopicTransactionExecuted, nil)
		assert.Len(t, out, 0)
	})

	t.Run("Publisher", func(t *testing.T) {
		publisher := &recordingPublisher{}
		channel := NewChannel(types.ChannelWallet, publisher)
		channel.Send(types.TopicPushRoute, "/transaction/0x01")
		assert.Equal(t, []string{"rpcbroker.wallet.pushRoute"}, publisher.subjects)

		publisher.err = errors.New("bus down")
		channel.Send(types.TopicPushRoute, "/transaction/0x02")
		assert.Len(t, publisher.subjects, 2)
	})

	t.Run("UnencodablePayload", func(t *testing.T) {
		publisher := &recordingPublisher{}
		channel := NewChannel(types.ChannelWallet, publisher)
		_, out := channel.Subscribe()
		channel.Send(types.TopicPushRoute, make(chan int))
		assert.Len(t, out, 0)
		assert.Empty(t, publisher.subjects)
	})
}

func TestChannelDispatch(t *testing.T) {
	channel := NewChannel(types.ChannelWallet, nil)
	channel.Reply("echo", func(_ context.Context, payload json.RawMessage) (interface{}, error) {
		return payload, nil
	})

	result, err := channel.Dispatch(context.Background(), types.Message{Topic: "echo", Payload: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(result.(json.RawMessage)))

	channel.Reply("echo", func(context.Context, json.RawMessage) (interface{}, error) {
		return "replaced", nil
	})
	result, err = channel.Dispatch(context.Background(), types.Message{Topic: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "replaced", result)

	_, err = channel.Dispatch(context.Background(), types.Message{Topic: "missing"})
	assert.ErrorIs(t, err, ErrNoHandler)
	assert.Contains(t, err.Error(), "missing")
}

func TestOriginContext(t *testing.T) {
	assert.Equal(t, "", Origin(context.Background()))
	ctx := WithOrigin(context.Background(), "https://app.example.com")
	assert.Equal(t, "https://app.example.com", Origin(ctx))
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{"NoOrigin", "", []string{"http://localhost:3000"}, true},
		{"NoRestriction", "http://evil.example", nil, true},
		{"Wildcard", "http://evil.example", []string{"*"}, true},
		{"Listed", "HTTP://LOCALHOST:3000", []string{"http://localhost:3000"}, true},
		{"NotListed", "http://evil.example", []string{"http://localhost:3000"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, originAllowed(tt.origin, tt.allowed))
		})
	}
}

func TestServeWS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	channel := NewChannel(types.ChannelWallet, nil)
	channel.Reply("echo", func(_ context.Context, payload json.RawMessage) (interface{}, error) {
		return payload, nil
	})
	channel.Reply("origin", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return Origin(ctx), nil
	})

	router := gin.New()
	router.GET("/ws", ServeWS(channel, nil))
	server := httptest.NewServer(router)
	defer server.Close()

	header := http.Header{}
	header.Set("Origin", "https://app.example.com")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return channel.Connected() == 1 }, time.Second, 10*time.Millisecond)

	readMessage := func() types.Message {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		return decode(t, data)
	}

	t.Run("Broadcast", func(t *testing.T) {
		channel.Send(types.TopicTransactionExecuted, nil)
		assert.Equal(t, types.TopicTransactionExecuted, readMessage().Topic)
	})

	t.Run("Reply", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(types.Message{ID: "1", Topic: "echo", Payload: json.RawMessage(`[1,2]`)}))
		reply := readMessage()
		assert.Equal(t, "1", reply.ID)
		assert.Equal(t, "echo", reply.Topic)
		assert.JSONEq(t, `[1,2]`, string(reply.Payload))
		assert.Empty(t, reply.Error)
	})

	t.Run("UnknownTopic", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(types.Message{ID: "2", Topic: "missing"}))
		reply := readMessage()
		assert.Equal(t, "2", reply.ID)
		assert.Contains(t, reply.Error, ErrNoHandler.Error())
	})

	t.Run("OriginInContext", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(types.Message{ID: "3", Topic: "origin"}))
		reply := readMessage()
		assert.Equal(t, "3", reply.ID)
		assert.JSONEq(t, `"https://app.example.com"`, string(reply.Payload))
	})

	t.Run("Disconnect", func(t *testing.T) {
		require.NoError(t, conn.Close())
		assert.Eventually(t, func() bool { return channel.Connected() == 0 }, time.Second, 10*time.Millisecond)
	})
}
