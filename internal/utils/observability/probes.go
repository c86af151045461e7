// Package observability provides the probes, metrics middleware and metrics server of the rpc broker.
package observability

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/devwallet/rpcbroker/internal/types"
)

// ErrNotReady is reported by Ready before the wallet state is loaded.
var ErrNotReady = errors.New("wallet state not loaded")

// ReadinessChecker reports whether the service can answer requests.
type ReadinessChecker interface {
	Hydrated() bool
}

// ProbesController probe check controller
type ProbesController struct {
	readiness ReadinessChecker
}

// NewProbesController returns an ProbesController instance
func NewProbesController(readiness ReadinessChecker) *ProbesController {
	return &ProbesController{readiness: readiness}
}

// HealthCheck the api controller for health check
func (a *ProbesController) HealthCheck(c *gin.Context) {
	types.RenderSuccess(c, nil)
}

// Ready the api controller for ready check
func (a *ProbesController) Ready(c *gin.Context) {
	if a.readiness != nil && !a.readiness.Hydrated() {
		types.RenderFailure(c, types.InternalServerError, ErrNotReady)
		return
	}
	types.RenderSuccess(c, nil)
}
