package messenger

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/devwallet/rpcbroker/internal/types"
)

const (
	bufferSize   = 1024
	writeTimeout = 10 * time.Second
)

// ServeWS upgrades the request and streams the channel's broadcasts. Inbound frames are dispatched to the
// channel's handlers and answered on the same socket.
func ServeWS(channel *Channel, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  bufferSize,
		WriteBufferSize: bufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("failed to upgrade websocket", "channel", channel.Name(), "error", err)
			return
		}
		defer func() {
			_ = conn.Close()
		}()

		id, broadcasts := channel.Subscribe()
		defer channel.Unsubscribe(id)
		log.Debug("websocket connected", "channel", channel.Name(), "subscriber", id)

		ctx := WithOrigin(c.Request.Context(), c.Request.Header.Get("Origin"))
		replies := make(chan []byte, bufferSize)
		readDone := make(chan struct{})

		go func() {
			defer close(readDone)
			for {
				msgType, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if msgType != websocket.TextMessage {
					continue
				}
				var msg types.Message
				if err = json.Unmarshal(data, &msg); err != nil {
					log.Debug("dropping malformed websocket frame", "channel", channel.Name(), "error", err)
					continue
				}
				go func(msg types.Message) {
					reply := types.Message{ID: msg.ID, Topic: msg.Topic}
					result, dispatchErr := channel.Dispatch(ctx, msg)
					if dispatchErr != nil {
						reply.Error = dispatchErr.Error()
					} else if reply.Payload, dispatchErr = json.Marshal(result); dispatchErr != nil {
						reply.Error = dispatchErr.Error()
					}
					encoded, _ := json.Marshal(reply)
					select {
					case replies <- encoded:
					case <-readDone:
					}
				}(msg)
			}
		}()

		for {
			var data []byte
			select {
			case <-ctx.Done():
				return
			case <-readDone:
				return
			case data = <-broadcasts:
			case data = <-replies:
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err = conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("websocket write failed", "channel", channel.Name(), "subscriber", id, "error", err)
				return
			}
		}
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	origin = strings.ToLower(origin)
	for _, host := range allowed {
		if host == "*" || strings.EqualFold(origin, host) {
			return true
		}
	}
	return false
}
