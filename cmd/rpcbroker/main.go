package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/devwallet/rpcbroker/internal/config"
	"github.com/devwallet/rpcbroker/internal/controller"
	"github.com/devwallet/rpcbroker/internal/messenger"
	"github.com/devwallet/rpcbroker/internal/orm"
	"github.com/devwallet/rpcbroker/internal/pending"
	"github.com/devwallet/rpcbroker/internal/route"
	"github.com/devwallet/rpcbroker/internal/store"
	"github.com/devwallet/rpcbroker/internal/transport"
	"github.com/devwallet/rpcbroker/internal/types"
	"github.com/devwallet/rpcbroker/internal/utils"
	"github.com/devwallet/rpcbroker/internal/utils/database"
	"github.com/devwallet/rpcbroker/internal/utils/observability"
)

func action(ctx *cli.Context) error {
	// Load config file.
	cfgFile := ctx.String(utils.ConfigFileFlag.Name)
	cfg, err := config.NewConfig(cfgFile)
	if err != nil {
		log.Crit("failed to load config file", "config file", cfgFile, "error", err)
	}
	if err = cfg.Validate(); err != nil {
		log.Crit("invalid config", "config file", cfgFile, "error", err)
	}

	db, err := database.InitDB(&cfg.DBConfig)
	if err != nil {
		log.Crit("failed to init db", "error", err)
	}
	defer func() {
		if closeErr := database.CloseDB(db); closeErr != nil {
			log.Warn("failed to close db", "error", closeErr)
		}
	}()
	if err = orm.AutoMigrate(db); err != nil {
		log.Crit("failed to migrate db", "error", err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.NewStore(db)
	if err = st.Seed(runCtx, cfg); err != nil {
		log.Crit("failed to load wallet state", "error", err)
	}

	var publisher messenger.Publisher
	if cfg.NatsURL != "" {
		conn, natsErr := messenger.ConnectNATS(cfg.NatsURL)
		if natsErr != nil {
			log.Crit("failed to connect to nats", "url", cfg.NatsURL, "error", natsErr)
		}
		defer drainNATS(conn)
		publisher = conn
	}
	inpage := messenger.NewChannel(types.ChannelInpage, publisher)
	wallet := messenger.NewChannel(types.ChannelWallet, publisher)

	pool, err := transport.NewPool(cfg.ClientCacheSize, cfg.RequestTimeout())
	if err != nil {
		log.Crit("failed to create rpc client pool", "error", err)
	}
	controller.InitAPI(st, pending.NewQueue(), pool, inpage, wallet)

	observability.Server(runCtx, ctx)

	router := gin.New()
	route.Route(router, cfg, route.Channels{Inpage: inpage, Wallet: wallet}, st, ctx.Bool(utils.PprofFlag.Name))
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", ctx.String(utils.HTTPListenAddrFlag.Name), ctx.Int(utils.HTTPPortFlag.Name)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		log.Info("Start rpc broker success...", "version", utils.Version, "address", srv.Addr)
		if runServerErr := srv.ListenAndServe(); runServerErr != nil && !errors.Is(runServerErr, http.ErrServerClosed) {
			return runServerErr
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Start shutdown rpc broker server...")
		closeCtx, cancelExit := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelExit()
		if shutdownErr := srv.Shutdown(closeCtx); shutdownErr != nil {
			log.Warn("shutdown rpc broker server failure", "error", shutdownErr)
		}
		return nil
	})

	if err = g.Wait(); err != nil {
		log.Error("rpc broker server failure", "error", err)
		return err
	}
	log.Info("rpc broker exiting success")
	return nil
}

func drainNATS(conn *nats.Conn) {
	if err := conn.Drain(); err != nil {
		log.Warn("failed to drain nats connection", "error", err)
	}
}

// Run the rpc broker.
func main() {
	app := cli.NewApp()
	app.Action = action
	app.Name = "rpcbroker"
	app.Usage = "The wallet JSON-RPC broker"
	app.Version = utils.Version
	app.Flags = append(app.Flags, utils.CommonFlags...)
	app.Commands = []*cli.Command{}
	app.Before = func(ctx *cli.Context) error {
		return utils.LogSetup(ctx)
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
