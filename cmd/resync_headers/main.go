package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"github.com/omni/bridge-node/config"
	"github.com/omni/bridge-node/headerstore"
	"github.com/omni/bridge-node/logging"
)

var (
	configPath = flag.String("config", "config.yml", "path to the config file")
	home       = flag.Bool("home", false, "resync home chain headers")
	foreign    = flag.Bool("foreign", false, "resync foreign chain headers")
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
	side := cfg.Bridge.Foreign
	if *home {
		side = cfg.Bridge.Home
	}

	path := filepath.Join(cfg.Node.DataDir, fmt.Sprintf("%s_headers.csv", side.ChainName))
	chainLogger := logger.WithField("chain", side.ChainName).WithField("path", path)
	if err = headerstore.Resync(path); err != nil {
		chainLogger.WithError(err).Fatal("can't remove header log")
	}
	chainLogger.Info("removed header log, headers will be synced again from block 1 on the next start")
}
