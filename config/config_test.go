package config_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/omni/bridge-node/config"
)

const testCfg = `
chains:
  sokol:
    rpc:
      host: https://sokol.poa.network/${RPC_PROJECT_KEY}
      timeout: 20s
    chain_id: 77
    sync_interval: 5s
  kovan:
    rpc:
      host: https://kovan.infura.io/v3/test
    chain_id: 42
bridge:
  id: sokol-kovan
  home:
    chain: sokol
    address: 0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6
    gas_price: 1000000000
  foreign:
    chain: kovan
    address: 0x4aa42145Aa6Ebf72e164C9bBC74fbD3788045016
    gas_limit: 300000
node:
  host: 10.0.0.1
  port: 8000
  propose_threshold: 600
  bootstrap_peers:
    - 10.0.0.2:8000
    - 10.0.0.3:8000
wallet:
  private_key: ${BRIDGE_PRIVATE_KEY}
postgres:
  user: test_user
  password: test_password
  host: test_host
  port: 5432
  database: test_db
log_level: debug
presenter:
  host: 0.0.0.0:3333
`

//nolint:paralleltest
func TestReadConfigWithEnv(t *testing.T) {
	t.Setenv("RPC_PROJECT_KEY", "12345678")
	t.Setenv("BRIDGE_PRIVATE_KEY", "0xabcdef")
	cfg, err := config.ReadConfigWithEnv([]byte(testCfg))
	require.NoError(t, err)
	sokolChainCfg := &config.ChainConfig{
		RPC: &config.RPCConfig{
			Host:    "https://sokol.poa.network/12345678",
			Timeout: 20 * time.Second,
		},
		ChainID:      "77",
		SyncInterval: 5 * time.Second,
	}
	kovanChainCfg := &config.ChainConfig{
		RPC: &config.RPCConfig{
			Host:    "https://kovan.infura.io/v3/test",
			Timeout: 30 * time.Second,
		},
		ChainID:      "42",
		SyncInterval: 2 * time.Second,
	}
	require.Equal(t, &config.Config{
		Chains: map[string]*config.ChainConfig{
			"sokol": sokolChainCfg,
			"kovan": kovanChainCfg,
		},
		Bridge: &config.BridgeConfig{
			ID: "sokol-kovan",
			Home: &config.BridgeSideConfig{
				ChainName: "sokol",
				Chain:     sokolChainCfg,
				Address:   common.HexToAddress("0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6"),
				GasLimit:  500000,
				GasPrice:  1000000000,
			},
			Foreign: &config.BridgeSideConfig{
				ChainName: "kovan",
				Chain:     kovanChainCfg,
				Address:   common.HexToAddress("0x4aa42145Aa6Ebf72e164C9bBC74fbD3788045016"),
				GasLimit:  300000,
			},
		},
		Node: &config.NodeConfig{
			Host:             "10.0.0.1",
			Port:             8000,
			Listen:           ":8000",
			DataDir:          "data",
			BootstrapPeers:   []string{"10.0.0.2:8000", "10.0.0.3:8000"},
			ProposeThreshold: 512,
			QueryInterval:    2 * time.Second,
			PingInterval:     5 * time.Minute,
			PruneInterval:    10 * time.Second,
			DialTimeout:      5 * time.Second,
			ReceiptPollLimit: 30,
			SyncBatchSize:    1000,
			Workers:          8,
			MerklePolicy:     "drop",
		},
		Wallet: &config.WalletConfig{
			PrivateKey: "0xabcdef",
		},
		DBConfig: &config.DBConfig{
			User:     "test_user",
			Password: "test_password",
			Host:     "test_host",
			Port:     5432,
			DB:       "test_db",
		},
		LogLevel: logrus.DebugLevel,
		Presenter: &config.PresenterConfig{
			Host: "0.0.0.0:3333",
		},
		Metrics: &config.MetricsConfig{
			Host: ":2112",
		},
	}, cfg)
	require.Equal(t, "10.0.0.1:8000", cfg.Node.Address())
}

func TestReadConfig_UnknownChain(t *testing.T) {
	t.Parallel()

	_, err := config.ReadConfig([]byte(`
chains:
  sokol:
    rpc:
      host: http://localhost:8545
bridge:
  home:
    chain: sokol
    address: 0x0000000000000000000000000000000000000001
  foreign:
    chain: kovan
    address: 0x0000000000000000000000000000000000000002
node:
  host: localhost
  port: 8000
`))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestReadConfig_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.ReadConfig([]byte(`
node:
  host: localhost
  port: 8000
  unknown_field: 1
`))
	require.Error(t, err)
}

func TestReadConfig_DefaultBridgeID(t *testing.T) {
	t.Parallel()

	cfg, err := config.ReadConfig([]byte(`
chains:
  a:
    rpc:
      host: http://localhost:8545
  b:
    rpc:
      host: http://localhost:8546
bridge:
  home:
    chain: a
    address: 0x0000000000000000000000000000000000000001
  foreign:
    chain: b
    address: 0x0000000000000000000000000000000000000002
node:
  host: localhost
  port: 8000
  merkle_policy: duplicate
`))
	require.NoError(t, err)
	require.Equal(t, "0x0000000000000000000000000000000000000001_0x0000000000000000000000000000000000000002", cfg.Bridge.ID)
	require.Equal(t, "duplicate", cfg.Node.MerklePolicy)
	require.Equal(t, uint64(512), cfg.Node.ProposeThreshold)
	require.Equal(t, logrus.InfoLevel, cfg.LogLevel)
}
