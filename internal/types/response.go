// Package types provides the JSON-RPC wire types and error codes shared by the rpc broker.
package types

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// Success shows OK.
	Success = 0
	// InternalServerError shows a fatal error in the server
	InternalServerError = 500

	// JSON-RPC Standard Errors (-32700 to -32600)

	// ParseErrorCode indicates a JSON parsing error
	ParseErrorCode = -32700
	// InvalidRequestCode indicates an invalid JSON-RPC request
	InvalidRequestCode = -32600
	// MethodNotFoundCode indicates that the requested method does not exist
	MethodNotFoundCode = -32601
	// InvalidParamsCode indicates that the parameters provided to the method are invalid
	InvalidParamsCode = -32602
	// InternalErrorCode indicates an internal JSON-RPC error
	InternalErrorCode = -32603

	// Provider Errors (EIP-1193)

	// UserRejectedRequestCode indicates that the user rejected the request
	UserRejectedRequestCode = 4001
	// UnauthorizedCode indicates that the origin has not been authorized by the user
	UnauthorizedCode = 4100
	// UnsupportedMethodCode indicates that the provider does not support the method
	UnsupportedMethodCode = 4200
	// UnrecognizedChainCode indicates that the chain has not been added to the wallet
	UnrecognizedChainCode = 4902

	// JSONRPCVersion is the version of JSON-RPC used
	JSONRPCVersion = "2.0"
)

// Fixed error messages returned to callers.
const (
	UserRejectedMessage   = "User rejected the request."
	UnauthorizedMessage   = "The requested method and/or account has not been authorized by the user."
	NotOnboardedMessage   = "Wallet has not been onboarded."
	CannotSignMessage     = "Account cannot sign. It is a watch-only account or impersonation is not supported on this network."
	UnrecognizedChainText = "Unrecognized chain ID"
	UnknownErrorMessage   = "An unknown error occurred."
)

// Response the response schema
type Response struct {
	ErrCode int         `json:"errcode"`
	ErrMsg  string      `json:"errmsg"`
	Data    interface{} `json:"data"`
}

// RenderJSON renders response with json
func RenderJSON(ctx *gin.Context, errCode int, err error, data interface{}) {
	var errMsg string
	if err != nil {
		errMsg = err.Error()
	}
	renderData := Response{
		ErrCode: errCode,
		ErrMsg:  errMsg,
		Data:    data,
	}
	ctx.JSON(http.StatusOK, renderData)
}

// RenderSuccess renders success response with json
func RenderSuccess(ctx *gin.Context, data interface{}) {
	RenderJSON(ctx, Success, nil, data)
}

// RenderFailure renders an error response with json
func RenderFailure(ctx *gin.Context, errCode int, err error) {
	RenderJSON(ctx, errCode, err, nil)
}

// SendResponse writes a JSON-RPC response
func SendResponse(c *gin.Context, resp *RPCResponse) {
	c.JSON(http.StatusOK, resp)
}

// SendError sends a JSON-RPC error response
func SendError(c *gin.Context, id int64, code int, message string) {
	SendResponse(c, NewErrorResponse(id, NewRPCError(code, message, nil)))
}
