package registry

import (
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/dedis/randlottery/contracts/lottery"
	"github.com/dedis/randlottery/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/xerrors"
)

// SubscriptionFundAmount is what a development deployment funds its
// subscription with: 1 LINK.
const SubscriptionFundAmount = "1"

const defaultConfig = `
development_chains = ["hardhat", "localhost"]

[networks.31337]
name = "hardhat"
entrance_fee = "0.01"
gas_lane = "0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc"
callback_gas_limit = 500000
interval = 30
block_confirmations = 1

[networks.5]
name = "goerli"
vrf_coordinator = "0x2Ca8E0C643bDe4C2E08ab1fA0da3401AdC2Ed3bc"
entrance_fee = "0.01"
gas_lane = "0x79d3d8832d904592c0bf9818b621522c988bb8b0c05cdc3b15aea1b6e8db0c15"
callback_gas_limit = 500000
interval = 30
block_confirmations = 6
`

// Registry is the deployment configuration of every known chain, keyed by
// chain id.
type Registry struct {
	DevelopmentChains []string            `toml:"development_chains"`
	Networks          map[string]*Network `toml:"networks"`
}

type Network struct {
	ChainID              int64
	Name                 string `toml:"name"`
	VRFCoordinator       string `toml:"vrf_coordinator"`
	EntranceFee          string `toml:"entrance_fee"`
	GasLane              string `toml:"gas_lane"`
	SubscriptionID       int64  `toml:"subscription_id"`
	CallbackGasLimit     int64  `toml:"callback_gas_limit"`
	Interval             int64  `toml:"interval"`
	BlockConfirmations   int64  `toml:"block_confirmations"`
	RequestConfirmations int64  `toml:"request_confirmations"`
}

// Default returns the built-in hardhat and goerli configuration.
func Default() *Registry {
	r, err := Parse(defaultConfig)
	if err != nil {
		panic("invalid default network config: " + err.Error())
	}
	return r
}

func Parse(config string) (*Registry, error) {
	r := &Registry{}
	if _, err := toml.Decode(config, r); err != nil {
		return nil, xerrors.Errorf("couldn't decode network config: %v", err)
	}
	return r, r.init()
}

func Load(path string) (*Registry, error) {
	r := &Registry{}
	if _, err := toml.DecodeFile(path, r); err != nil {
		return nil, xerrors.Errorf("couldn't decode %s: %v", path, err)
	}
	return r, r.init()
}

func (r *Registry) init() error {
	for key, n := range r.Networks {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return xerrors.Errorf("invalid chain id %q: %v", key, err)
		}
		if n.Name == "" {
			return xerrors.Errorf("network %d has no name", id)
		}
		n.ChainID = id
	}
	return nil
}

func (r *Registry) Network(chainID int64) (*Network, error) {
	n, ok := r.Networks[strconv.FormatInt(chainID, 10)]
	if !ok {
		return nil, xerrors.Errorf("no configuration for chain %d", chainID)
	}
	return n, nil
}

// IsDevelopment tells whether contracts on network name are mocked locally.
func (r *Registry) IsDevelopment(name string) bool {
	for _, d := range r.DevelopmentChains {
		if d == name {
			return true
		}
	}
	return false
}

// LotteryConfig builds the constructor parameters of a lottery on this
// network. A zero coordinator or subscription falls back to the configured
// one.
func (n *Network) LotteryConfig(coordinator common.Address,
	subID uint64) (*lottery.Config, error) {
	if coordinator == (common.Address{}) {
		if !common.IsHexAddress(n.VRFCoordinator) {
			return nil, xerrors.Errorf("network %s has no coordinator", n.Name)
		}
		coordinator = common.HexToAddress(n.VRFCoordinator)
	}
	if subID == 0 {
		subID = uint64(n.SubscriptionID)
	}
	fee, err := utils.ParseEther(n.EntranceFee)
	if err != nil {
		return nil, xerrors.Errorf("network %s: %v", n.Name, err)
	}
	lane, err := hexutil.Decode(n.GasLane)
	if err != nil || len(lane) != common.HashLength {
		return nil, xerrors.Errorf("network %s: invalid gas lane %q", n.Name, n.GasLane)
	}
	if n.CallbackGasLimit <= 0 || n.CallbackGasLimit > int64(^uint32(0)) {
		return nil, xerrors.Errorf("network %s: invalid callback gas limit %d",
			n.Name, n.CallbackGasLimit)
	}
	if n.Interval <= 0 {
		return nil, xerrors.Errorf("network %s: invalid interval %d", n.Name, n.Interval)
	}
	if n.RequestConfirmations < 0 || n.RequestConfirmations > int64(^uint16(0)) {
		return nil, xerrors.Errorf("network %s: invalid request confirmations %d",
			n.Name, n.RequestConfirmations)
	}
	cfg := &lottery.Config{
		Coordinator:          coordinator,
		EntranceFee:          fee,
		GasLane:              common.BytesToHash(lane),
		SubscriptionID:       subID,
		CallbackGasLimit:     uint32(n.CallbackGasLimit),
		Interval:             uint64(n.Interval),
		RequestConfirmations: uint16(n.RequestConfirmations),
	}
	if cfg.RequestConfirmations == 0 {
		cfg.RequestConfirmations = lottery.DefaultRequestConfirmations
	}
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("network %s: %v", n.Name, err)
	}
	return cfg, nil
}
