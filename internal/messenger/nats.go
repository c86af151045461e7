package messenger

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/nats-io/nats.go"
)

// ConnectNATS dials the bus that mirrors broadcasts.
func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("rpcbroker"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			log.Info("nats reconnected", "url", conn.ConnectedUrl())
		}),
	)
}
