// Package middleware provides the gin middleware of the rpc broker.
package middleware

import (
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"

	"github.com/devwallet/rpcbroker/internal/config"
	"github.com/devwallet/rpcbroker/internal/types"
	"github.com/devwallet/rpcbroker/internal/utils"
)

// WalletAuth admits only requests carrying one of the wallet interface keys as a Bearer token
func WalletAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := utils.BearerToken(c.GetHeader("Authorization"))
		if apiKey == "" {
			apiKey = c.Query("token")
		}

		if !utils.IsValidAPIKey(apiKey, cfg.WalletAPIKeys) {
			log.Debug("Unauthorized wallet request", "path", c.FullPath(), "client", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.Response{
				ErrCode: types.UnauthorizedCode,
				ErrMsg:  types.UnauthorizedMessage,
			})
			return
		}

		c.Next()
	}
}
