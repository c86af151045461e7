package controller

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"

	"github.com/devwallet/rpcbroker/internal/types"
)

// RPCController exposes the router over HTTP
type RPCController struct {
	router *Router
}

// NewRPCController creates a new RPCController
func NewRPCController(router *Router) *RPCController {
	return &RPCController{router: router}
}

// Inpage handles requests relayed from dapp pages. The sender is the request's Origin; any sender or
// rpc_url in the body is ignored.
func (rc *RPCController) Inpage(c *gin.Context) {
	env, ok := bindEnvelope(c)
	if !ok {
		return
	}
	sender := types.PageSender(c.GetHeader("Origin"))
	types.SendResponse(c, rc.router.Handle(c.Request.Context(), env.Request, sender, ""))
}

// Wallet handles requests of the wallet interface. They are never treated as page requests.
func (rc *RPCController) Wallet(c *gin.Context) {
	env, ok := bindEnvelope(c)
	if !ok {
		return
	}
	sender := env.Sender
	sender.Tab = nil
	types.SendResponse(c, rc.router.Handle(c.Request.Context(), env.Request, sender, env.RPCURL))
}

func bindEnvelope(c *gin.Context) (types.Envelope, bool) {
	var env types.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		log.Debug("Invalid JSON-RPC envelope", "error", err)
		types.SendError(c, 0, types.ParseErrorCode, "Invalid JSON-RPC request")
		return env, false
	}
	if env.Request.Method == "" {
		types.SendError(c, env.Request.ID, types.InvalidRequestCode, "Invalid JSON-RPC request: method is required")
		return env, false
	}
	return env, true
}
