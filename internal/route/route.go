// Package route registers the http routes of the rpc broker.
package route

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/devwallet/rpcbroker/internal/config"
	"github.com/devwallet/rpcbroker/internal/controller"
	"github.com/devwallet/rpcbroker/internal/messenger"
	"github.com/devwallet/rpcbroker/internal/middleware"
	"github.com/devwallet/rpcbroker/internal/utils/observability"
)

// Channels are the messenger channels streamed over websockets.
type Channels struct {
	Inpage *messenger.Channel
	Wallet *messenger.Channel
}

// Route register route for the broker
func Route(router *gin.Engine, conf *config.Config, channels Channels, readiness observability.ReadinessChecker, enablePprof bool) {
	router.Use(gin.Recovery())

	origins := conf.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	observability.Use(router, "rpcbroker", prometheus.DefaultRegisterer, readiness)

	if enablePprof {
		pprof.Register(router)
	}

	registerInpageRoutes(router.Group("/inpage"), conf, channels.Inpage)
	registerWalletRoutes(router.Group("/wallet", middleware.WalletAuth(conf)), conf, channels.Wallet)
}

func registerInpageRoutes(group *gin.RouterGroup, conf *config.Config, channel *messenger.Channel) {
	group.POST("/rpc", middleware.RateLimiter(conf), controller.RPCCtl.Inpage)
	group.GET("/ws", messenger.ServeWS(channel, conf.CORSOrigins))
}

func registerWalletRoutes(group *gin.RouterGroup, conf *config.Config, channel *messenger.Channel) {
	group.POST("/rpc", controller.RPCCtl.Wallet)
	group.GET("/ws", messenger.ServeWS(channel, conf.CORSOrigins))

	group.GET("/pending", controller.WalletCtl.ListPending)
	group.POST("/pending", controller.WalletCtl.Decide)
	group.POST("/pending/close", controller.WalletCtl.Close)

	group.GET("/transactions", controller.WalletCtl.Transactions)
	group.GET("/batches/:id", controller.WalletCtl.Batch)

	group.GET("/sessions", controller.WalletCtl.Sessions)
	group.DELETE("/sessions/:host", controller.WalletCtl.RevokeSession)

	group.GET("/settings", controller.WalletCtl.GetSettings)
	group.PUT("/settings", controller.WalletCtl.UpdateSettings)
}
