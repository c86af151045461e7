package types

import "encoding/json"

// Messenger channels.
const (
	ChannelInpage = "inpage"
	ChannelWallet = "wallet"
)

// Topics exchanged over the messenger.
const (
	TopicConnect              = "connect"
	TopicChainChanged         = "chainChanged"
	TopicPendingRequest       = "pendingRequest"
	TopicPendingRequestClosed = "pendingRequestClosed"
	TopicTransactionExecuted  = "transactionExecuted"
	TopicPushRoute            = "pushRoute"
	TopicRequest              = "request"
)

// Message is the envelope written to and read from messenger streams.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SessionInfo is the public view of a session.
type SessionInfo struct {
	Host string `json:"host"`
}

// ConnectEvent is sent to the page after accounts were exposed.
type ConnectEvent struct {
	ChainID string `json:"chainId"`
}

// ChainChangedEvent is sent to the page after the active network changed.
type ChainChangedEvent struct {
	ChainID  string        `json:"chainId"`
	Sessions []SessionInfo `json:"sessions"`
}

// Envelope carries an inbound request together with its sender identity and an optional network override.
type Envelope struct {
	Request RPCRequest `json:"request"`
	Sender  Sender     `json:"sender"`
	RPCURL  string     `json:"rpc_url,omitempty"`
}

// ClosedSignal tells the broker a pending request's surface went away.
type ClosedSignal struct {
	Request PendingRequest `json:"request"`
}
