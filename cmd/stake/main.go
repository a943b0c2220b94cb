package main

import (
	"context"
	"flag"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omni/bridge-node/config"
	"github.com/omni/bridge-node/contract"
	"github.com/omni/bridge-node/ethclient"
	"github.com/omni/bridge-node/logging"
	"github.com/omni/bridge-node/wallet"
)

var (
	configPath = flag.String("config", "config.yml", "path to the config file")
	home       = flag.Bool("home", false, "stake on the home bridge")
	foreign    = flag.Bool("foreign", false, "stake on the foreign bridge")
	amount     = flag.String("amount", "", "amount of stake token units to deposit")
)

func main() {
	flag.Parse()

	logger := logging.New()

	cfg, err := config.ReadConfigFromFile(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	if *home == *foreign {
		logger.Fatal("exactly one of --home or --foreign should be specified")
	}
	value, ok := new(big.Int).SetString(*amount, 10)
	if !ok || value.Sign() <= 0 {
		logger.WithField("amount", *amount).Fatal("amount should be a positive integer")
	}
	side := cfg.Bridge.Foreign
	if *home {
		side = cfg.Bridge.Home
	}

	w, err := wallet.FromConfig(cfg.Wallet)
	if err != nil {
		logger.WithError(err).Fatal("can't load wallet")
	}
	client, err := ethclient.NewClient(side.Chain.RPC.Host, side.Chain.RPC.Timeout, side.Chain.ChainID)
	if err != nil {
		logger.WithError(err).Fatal("can't dial rpc client")
	}
	opts := &contract.TxOpts{From: w, GasLimit: side.GasLimit}
	if side.GasPrice > 0 {
		opts.GasPrice = new(big.Int).SetUint64(side.GasPrice)
	}
	bridge := contract.NewBridgeContract(client, side.Address, opts)

	stakeLogger := logger.WithFields(logrus.Fields{
		"chain":  side.ChainName,
		"bridge": side.Address.Hex(),
		"signer": w.Address().Hex(),
		"amount": value.String(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	txHash, err := bridge.DepositStake(ctx, value)
	if err != nil {
		stakeLogger.WithError(err).Fatal("can't deposit stake")
	}
	stakeLogger.WithField("tx_hash", txHash.Hex()).Info("sent stake transaction")

	stake, err := bridge.Stake(ctx, w.Address())
	if err != nil {
		stakeLogger.WithError(err).Warn("can't get current stake")
		return
	}
	stakeLogger.WithField("stake", stake.String()).Info("current stake, may not include the new deposit yet")
}
