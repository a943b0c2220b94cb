package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/omni/bridge-node/config"
	"github.com/omni/bridge-node/contract"
	"github.com/omni/bridge-node/db"
	"github.com/omni/bridge-node/ethclient"
	"github.com/omni/bridge-node/headerstore"
	"github.com/omni/bridge-node/logging"
	"github.com/omni/bridge-node/merkle"
	"github.com/omni/bridge-node/node"
	"github.com/omni/bridge-node/p2p"
	"github.com/omni/bridge-node/presenter"
	"github.com/omni/bridge-node/repository"
	"github.com/omni/bridge-node/wallet"
)

var configPath = flag.String("config", "config.yml", "path to the config file")

func main() {
	flag.Parse()

	logger := logging.New()

	cfg, err := config.ReadConfigFromFile(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)
	logger.WithField("bridge_id", cfg.Bridge.ID).Info("starting bridge node")

	repo := repository.NewMemoryRepo()
	if cfg.DBConfig != nil {
		dbConn, err2 := db.ConnectToDBAndMigrate(cfg.DBConfig)
		if err2 != nil {
			logger.WithError(err2).Fatal("can't connect to database and apply migrations")
		}
		defer dbConn.Close()
		repo = repository.NewRepo(dbConn)
	} else {
		logger.Warn("postgres is not configured, peers and proposals are kept in memory")
	}

	w, err := wallet.FromConfig(cfg.Wallet)
	if err != nil {
		logger.WithError(err).Fatal("can't load wallet")
	}
	logger.WithField("signer", w.Address().Hex()).Info("loaded wallet")

	policy, err := merkle.ParsePolicy(cfg.Node.MerklePolicy)
	if err != nil {
		logger.WithError(err).Fatal("can't parse merkle policy")
	}

	var chains [2]*node.Chain
	for i, side := range cfg.Bridge.Sides() {
		chainLogger := logger.WithField("chain", side.ChainName)
		client, err2 := ethclient.NewClient(side.Chain.RPC.Host, side.Chain.RPC.Timeout, side.Chain.ChainID)
		if err2 != nil {
			chainLogger.WithError(err2).Fatal("can't dial rpc client")
		}
		opts := &contract.TxOpts{From: w, GasLimit: side.GasLimit}
		if side.GasPrice > 0 {
			opts.GasPrice = new(big.Int).SetUint64(side.GasPrice)
		}
		chains[i] = &node.Chain{
			Name:         side.ChainName,
			Address:      side.Address,
			Bridge:       contract.NewBridgeContract(client, side.Address, opts),
			Source:       client,
			SyncInterval: side.Chain.SyncInterval,
		}

		path := filepath.Join(cfg.Node.DataDir, fmt.Sprintf("%s_headers.csv", side.ChainName))
		store, err2 := headerstore.Open(side.ChainName, path, cfg.Node.SyncBatchSize, chainLogger)
		switch {
		case errors.Is(err2, headerstore.ErrChainDiscontinuity):
			chainLogger.WithError(err2).WithField("path", path).
				Error("header log is corrupted, run resync_headers to rebuild it")
		case err2 != nil:
			chainLogger.WithError(err2).Fatal("can't open header log")
		default:
			chains[i].Store = store
			defer func() {
				if err3 := store.Close(); err3 != nil {
					chainLogger.WithError(err3).Error("can't close header log")
				}
			}()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	peers := p2p.NewPeerSet(ctx, cfg.Node.Address(), cfg.Bridge.ID, cfg.Node.DialTimeout, repo.Peers, logger.WithField("service", "peers"))
	defer peers.Close()

	n := node.New(chains, peers, w, repo.Proposals, node.Options{
		BridgeID:         cfg.Bridge.ID,
		ProposeThreshold: cfg.Node.ProposeThreshold,
		QueryInterval:    cfg.Node.QueryInterval,
		PingInterval:     cfg.Node.PingInterval,
		PruneInterval:    cfg.Node.PruneInterval,
		ReceiptPollLimit: cfg.Node.ReceiptPollLimit,
		Workers:          cfg.Node.Workers,
		MerklePolicy:     policy,
	}, logger.WithField("service", "node"))

	server, err := p2p.Listen(cfg.Node.Listen, n.Inbox(), logger.WithField("service", "p2p"))
	if err != nil {
		logger.WithError(err).Fatal("can't listen for peer connections")
	}

	bootstrap(ctx, logger, peers, repo, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.Serve(gctx)
	})
	g.Go(func() error {
		return serveMetrics(gctx, cfg.Metrics.Host)
	})
	if cfg.Presenter != nil {
		pr := presenter.NewPresenter(logger.WithField("service", "presenter"), n)
		g.Go(func() error {
			return pr.Serve(gctx, cfg.Presenter.Host)
		})
	}

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		select {
		case <-c:
			logger.Warn("caught CTRL-C, gracefully terminating")
			cancel()
		case <-gctx.Done():
		}
	}()

	if err = g.Wait(); err != nil {
		logger.WithError(err).Error("bridge node stopped with error")
	}
}

func bootstrap(ctx context.Context, logger logging.Logger, peers *p2p.PeerSet, repo *repository.Repo, cfg *config.Config) {
	addrs := cfg.Node.BootstrapPeers
	known, err := repo.Peers.FindPeers(ctx, cfg.Bridge.ID)
	if err != nil {
		logger.WithError(err).Warn("can't load known peers")
	}
	addrs = append(addrs, known...)
	added := 0
	for _, addr := range addrs {
		if peers.AddIfNew(addr) {
			added++
		}
	}
	logger.WithField("count", added).Info("connecting to initial peers")
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("can't start listener for prometheus metrics: %w", err)
	}
	return nil
}
