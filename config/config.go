package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/omni/bridge-node/utils"
)

const (
	defaultRPCTimeout       = 30 * time.Second
	defaultSyncInterval     = 2 * time.Second
	defaultQueryInterval    = 2 * time.Second
	defaultPingInterval     = 5 * time.Minute
	defaultPruneInterval    = 10 * time.Second
	defaultDialTimeout      = 5 * time.Second
	defaultProposeThreshold = 512
	defaultReceiptPollLimit = 30
	defaultSyncBatchSize    = 1000
	defaultWorkers          = 8
	defaultGasLimit         = 500000
	defaultDataDir          = "data"
	defaultMetricsHost      = ":2112"
)

var ErrInvalidConfig = errors.New("invalid config")

type RPCConfig struct {
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
}

type ChainConfig struct {
	RPC          *RPCConfig    `yaml:"rpc"`
	ChainID      string        `yaml:"chain_id"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

type BridgeSideConfig struct {
	ChainName string         `yaml:"chain"`
	Chain     *ChainConfig   `yaml:"-"`
	Address   common.Address `yaml:"address"`
	GasLimit  uint64         `yaml:"gas_limit"`
	GasPrice  uint64         `yaml:"gas_price"`
}

type BridgeConfig struct {
	ID      string            `yaml:"id"`
	Home    *BridgeSideConfig `yaml:"home"`
	Foreign *BridgeSideConfig `yaml:"foreign"`
}

// Sides returns home and foreign sides in a fixed order, the order is used for
// indexing chains inside the node.
func (cfg *BridgeConfig) Sides() [2]*BridgeSideConfig {
	return [2]*BridgeSideConfig{cfg.Home, cfg.Foreign}
}

type NodeConfig struct {
	Host             string        `yaml:"host"`
	Port             uint16        `yaml:"port"`
	Listen           string        `yaml:"listen"`
	DataDir          string        `yaml:"data_dir"`
	BootstrapPeers   []string      `yaml:"bootstrap_peers"`
	ProposeThreshold uint64        `yaml:"propose_threshold"`
	QueryInterval    time.Duration `yaml:"query_interval"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PruneInterval    time.Duration `yaml:"prune_interval"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	ReceiptPollLimit uint          `yaml:"receipt_poll_limit"`
	SyncBatchSize    uint64        `yaml:"sync_batch_size"`
	Workers          int           `yaml:"workers"`
	MerklePolicy     string        `yaml:"merkle_policy"`
}

// Address is the externally advertised "host:port" of the node.
func (cfg *NodeConfig) Address() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port)))
}

type WalletConfig struct {
	PrivateKey string `yaml:"private_key"`
	Keystore   string `yaml:"keystore"`
	Password   string `yaml:"password"`
}

type DBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"database"`
}

type PresenterConfig struct {
	Host string `yaml:"host"`
}

type MetricsConfig struct {
	Host string `yaml:"host"`
}

type Config struct {
	Chains    map[string]*ChainConfig `yaml:"chains"`
	Bridge    *BridgeConfig           `yaml:"bridge"`
	Node      *NodeConfig             `yaml:"node"`
	Wallet    *WalletConfig           `yaml:"wallet"`
	DBConfig  *DBConfig               `yaml:"postgres"`
	LogLevel  logrus.Level            `yaml:"log_level"`
	Presenter *PresenterConfig        `yaml:"presenter"`
	Metrics   *MetricsConfig          `yaml:"metrics"`
}

func readYamlConfig(blob []byte) (*Config, error) {
	cfg := &Config{
		LogLevel: logrus.InfoLevel,
	}
	if err := parseYaml(cfg, blob); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) init() error {
	for _, chain := range cfg.Chains {
		if chain.RPC == nil {
			return fmt.Errorf("chain rpc is not specified: %w", ErrInvalidConfig)
		}
		if chain.RPC.Timeout == 0 {
			chain.RPC.Timeout = defaultRPCTimeout
		}
		if chain.SyncInterval == 0 {
			chain.SyncInterval = defaultSyncInterval
		}
	}
	if cfg.Bridge == nil || cfg.Bridge.Home == nil || cfg.Bridge.Foreign == nil {
		return fmt.Errorf("bridge must have both home and foreign sides: %w", ErrInvalidConfig)
	}
	for _, side := range cfg.Bridge.Sides() {
		var ok bool
		side.Chain, ok = cfg.Chains[side.ChainName]
		if !ok {
			return fmt.Errorf("unknown chain %q: %w", side.ChainName, ErrInvalidConfig)
		}
		if side.GasLimit == 0 {
			side.GasLimit = defaultGasLimit
		}
	}
	if cfg.Bridge.Home.Address == cfg.Bridge.Foreign.Address {
		return fmt.Errorf("home and foreign bridge addresses must differ: %w", ErrInvalidConfig)
	}
	if cfg.Bridge.ID == "" {
		cfg.Bridge.ID = fmt.Sprintf("%s_%s", cfg.Bridge.Home.Address, cfg.Bridge.Foreign.Address)
	}
	if cfg.Node == nil {
		return fmt.Errorf("node section is not specified: %w", ErrInvalidConfig)
	}
	cfg.Node.init()
	if cfg.Node.Host == "" || cfg.Node.Port == 0 {
		return fmt.Errorf("node host and port are required: %w", ErrInvalidConfig)
	}
	switch cfg.Node.MerklePolicy {
	case "drop", "duplicate":
	default:
		return fmt.Errorf("unknown merkle policy %q: %w", cfg.Node.MerklePolicy, ErrInvalidConfig)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{Host: defaultMetricsHost}
	}
	return nil
}

func (cfg *NodeConfig) init() {
	if cfg.Listen == "" {
		cfg.Listen = fmt.Sprintf(":%d", cfg.Port)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.ProposeThreshold == 0 {
		cfg.ProposeThreshold = defaultProposeThreshold
	}
	cfg.ProposeThreshold = utils.LastPowerOfTwo(cfg.ProposeThreshold)
	if cfg.QueryInterval == 0 {
		cfg.QueryInterval = defaultQueryInterval
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = defaultPruneInterval
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.ReceiptPollLimit == 0 {
		cfg.ReceiptPollLimit = defaultReceiptPollLimit
	}
	if cfg.SyncBatchSize == 0 {
		cfg.SyncBatchSize = defaultSyncBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MerklePolicy == "" {
		cfg.MerklePolicy = "drop"
	}
}

func ReadConfig(blob []byte) (*Config, error) {
	cfg, err := readYamlConfig(blob)
	if err != nil {
		return nil, err
	}
	if err = cfg.init(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ReadConfigWithEnv(blob []byte) (*Config, error) {
	return ReadConfig([]byte(os.ExpandEnv(string(blob))))
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}
	return ReadConfigWithEnv(blob)
}
