package bridgeabi

//nolint:golint
import (
	_ "embed"

	"github.com/omni/bridge-node/contract/abi"
)

//go:embed bridge.json
var bridgeJSONABI string

const (
	RootStored = "event RootStored(address indexed chain, uint256 start, uint256 end, bytes32 headerRoot)"
	Staked     = "event Staked(address indexed validator, uint256 amount)"
)

var (
	BridgeABI = abi.MustReadABI(bridgeJSONABI)

	RootStoredEventSignature = BridgeABI.Events["RootStored"].ID
	StakedEventSignature     = BridgeABI.Events["Staked"].ID
)
