package controller

import (
	"github.com/devwallet/rpcbroker/internal/messenger"
	"github.com/devwallet/rpcbroker/internal/pending"
	"github.com/devwallet/rpcbroker/internal/store"
)

var (
	// RPCCtl the rpc controller
	RPCCtl *RPCController
	// WalletCtl the wallet interface controller
	WalletCtl *WalletController
)

// InitAPI init the api controller
func InitAPI(st *store.Store, queue *pending.Queue, dialer Dialer, inpage, wallet messenger.Messenger) *Router {
	router := NewRouter(st, queue, dialer, inpage, wallet)
	RegisterHandlers(router, queue, inpage, wallet)
	RPCCtl = NewRPCController(router)
	WalletCtl = NewWalletController(st, queue)
	return router
}
