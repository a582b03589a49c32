package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dedis/randlottery/contracts/lottery"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func TestDefault(t *testing.T) {
	r := Default()
	hardhat, err := r.Network(31337)
	require.NoError(t, err)
	require.Equal(t, "hardhat", hardhat.Name)
	require.Equal(t, int64(31337), hardhat.ChainID)
	require.True(t, r.IsDevelopment(hardhat.Name))

	goerli, err := r.Network(5)
	require.NoError(t, err)
	require.False(t, r.IsDevelopment(goerli.Name))
	require.Equal(t, int64(6), goerli.BlockConfirmations)

	_, err = r.Network(1)
	require.Error(t, err)
}

func TestNetwork_LotteryConfig(t *testing.T) {
	hardhat, err := Default().Network(31337)
	require.NoError(t, err)

	_, err = hardhat.LotteryConfig(common.Address{}, 1)
	require.Error(t, err)

	coord := common.HexToAddress("0xc0087")
	cfg, err := hardhat.LotteryConfig(coord, 1)
	require.NoError(t, err)
	require.Equal(t, coord, cfg.Coordinator)
	require.Equal(t, "10000000000000000", cfg.EntranceFee.Dec())
	require.Equal(t, common.HexToHash("0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc"), cfg.GasLane)
	require.Equal(t, uint32(500000), cfg.CallbackGasLimit)
	require.Equal(t, uint64(30), cfg.Interval)
	require.Equal(t, lottery.DefaultRequestConfirmations, cfg.RequestConfirmations)

	goerli, err := Default().Network(5)
	require.NoError(t, err)
	cfg, err = goerli.LotteryConfig(common.Address{}, 588)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x2Ca8E0C643bDe4C2E08ab1fA0da3401AdC2Ed3bc"), cfg.Coordinator)
	require.Equal(t, uint64(588), cfg.SubscriptionID)

	// goerli has no subscription configured
	_, err = goerli.LotteryConfig(common.Address{}, 0)
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.toml")
	config := `
development_chains = ["devnet"]

[networks.1337]
name = "devnet"
entrance_fee = "0.5"
gas_lane = "0x0000000000000000000000000000000000000000000000000000000000000001"
subscription_id = 4
callback_gas_limit = 100000
interval = 60
request_confirmations = 1
`
	require.NoError(t, os.WriteFile(path, []byte(config), 0600))
	r, err := Load(path)
	require.NoError(t, err)
	n, err := r.Network(1337)
	require.NoError(t, err)
	require.True(t, r.IsDevelopment(n.Name))
	cfg, err := n.LotteryConfig(common.HexToAddress("0x01"), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(4), cfg.SubscriptionID)
	require.Equal(t, uint16(1), cfg.RequestConfirmations)
	require.Equal(t, "500000000000000000", cfg.EntranceFee.Dec())

	n.GasLane = "0x1234"
	_, err = n.LotteryConfig(common.HexToAddress("0x01"), 0)
	require.Error(t, err)

	_, err = Parse("[networks.abc]\nname = \"x\"\n")
	require.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
