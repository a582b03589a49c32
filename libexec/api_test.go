package libexec

import (
	"testing"
	"time"

	"github.com/dedis/randlottery/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
)

func setupClient(t *testing.T, req *InitUnit) (*Client, *InitUnitReply, func()) {
	local := onet.NewTCPTest(cothority.Suite)
	_, roster, _ := local.GenTree(1, true)
	cl := NewClient(roster)
	reply, err := cl.InitUnit(req)
	if err != nil {
		local.CloseAll()
	}
	require.NoError(t, err)
	return cl, reply, local.CloseAll
}

func newPlayer(t *testing.T, cl *Client) (*key.Pair, common.Address) {
	kp := key.NewKeyPair(cothority.Suite)
	addr, err := utils.PointToAddress(kp.Public)
	require.NoError(t, err)
	oneEther, err := utils.ParseEther("1")
	require.NoError(t, err)
	_, err = cl.Faucet(addr, oneEther)
	require.NoError(t, err)
	return kp, addr
}

func TestClient_Round(t *testing.T) {
	cl, initReply, closeAll := setupClient(t, &InitUnit{
		ChainID:       31337,
		ManualFulfill: true,
		ManualTime:    true,
		StartTime:     1000,
	})
	defer closeAll()
	require.Len(t, initReply.Deployer, common.AddressLength)
	require.NotEmpty(t, initReply.OraclePublic)
	require.Equal(t, "0.25",
		utils.FormatEther(new(uint256.Int).SetBytes(initReply.BaseFee)))
	require.Equal(t, uint64(1000000000),
		new(uint256.Int).SetBytes(initReply.GasPriceLink).Uint64())

	dep, err := cl.Deploy()
	require.NoError(t, err)
	lotAddr := common.BytesToAddress(dep.Lottery)
	fee := new(uint256.Int).SetBytes(dep.EntranceFee)
	require.Equal(t, uint64(30), dep.Interval)

	var addrs []common.Address
	for i := 0; i < 3; i++ {
		kp, addr := newPlayer(t, cl)
		reply, err := cl.Enter(lotAddr, fee, kp)
		require.NoError(t, err)
		require.Equal(t, i+1, reply.NumPlayers)
		addrs = append(addrs, addr)
	}

	check, err := cl.CheckUpkeep(lotAddr)
	require.NoError(t, err)
	require.False(t, check.UpkeepNeeded)
	require.True(t, check.IsOpen)
	require.True(t, check.HasPlayers)

	now, err := cl.IncreaseTime(31)
	require.NoError(t, err)
	require.Equal(t, uint64(1031), now.Now)
	check, err = cl.CheckUpkeep(lotAddr)
	require.NoError(t, err)
	require.True(t, check.UpkeepNeeded)

	perf, err := cl.PerformUpkeep(lotAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), perf.RequestID)
	state, err := cl.GetState(lotAddr)
	require.NoError(t, err)
	require.Equal(t, 1, state.State)
	require.Len(t, state.Players, 3)

	_, err = cl.Fulfill(lotAddr, perf.RequestID+1)
	require.Error(t, err)
	ful, err := cl.Fulfill(lotAddr, perf.RequestID)
	require.NoError(t, err)
	require.Len(t, ful.Words, 1)

	state, err = cl.GetState(lotAddr)
	require.NoError(t, err)
	require.Equal(t, 0, state.State)
	require.Empty(t, state.Players)
	require.Equal(t, uint64(1031), state.LastTimestamp)
	winner := common.BytesToAddress(state.RecentWinner)
	require.Contains(t, addrs, winner)
	acc, err := cl.GetAccount(winner)
	require.NoError(t, err)
	require.Equal(t, uint64(1), acc.Nonce)
	require.Equal(t, "1.02",
		utils.FormatEther(new(uint256.Int).SetBytes(acc.Balance)))
}

func TestClient_EnterRejected(t *testing.T) {
	cl, _, closeAll := setupClient(t, &InitUnit{
		ChainID:       31337,
		ManualFulfill: true,
		ManualTime:    true,
	})
	defer closeAll()
	dep, err := cl.Deploy()
	require.NoError(t, err)
	lotAddr := common.BytesToAddress(dep.Lottery)
	fee := new(uint256.Int).SetBytes(dep.EntranceFee)
	kp, _ := newPlayer(t, cl)

	// wrong fee
	_, err = cl.Enter(lotAddr, new(uint256.Int).AddUint64(fee, 1), kp)
	require.Error(t, err)
	// bad nonce
	_, err = cl.EnterWithNonce(lotAddr, fee, 5, kp)
	require.Error(t, err)
	// signed by somebody else
	other := key.NewKeyPair(cothority.Suite)
	forged := &key.Pair{Public: kp.Public, Private: other.Private}
	_, err = cl.EnterWithNonce(lotAddr, fee, 0, forged)
	require.Error(t, err)

	reply, err := cl.Enter(lotAddr, fee, kp)
	require.NoError(t, err)
	require.Equal(t, 1, reply.NumPlayers)
}

func TestClient_NotInitialized(t *testing.T) {
	local := onet.NewTCPTest(cothority.Suite)
	defer local.CloseAll()
	_, roster, _ := local.GenTree(1, true)
	cl := NewClient(roster)
	_, err := cl.Deploy()
	require.Error(t, err)
}

func TestClient_Automatic(t *testing.T) {
	cl, _, closeAll := setupClient(t, &InitUnit{
		ChainID:        31337,
		KeeperInterval: 20,
		ManualTime:     true,
	})
	defer closeAll()
	dep, err := cl.Deploy()
	require.NoError(t, err)
	lotAddr := common.BytesToAddress(dep.Lottery)
	fee := new(uint256.Int).SetBytes(dep.EntranceFee)
	for i := 0; i < 2; i++ {
		kp, _ := newPlayer(t, cl)
		_, err := cl.Enter(lotAddr, fee, kp)
		require.NoError(t, err)
	}
	_, err = cl.IncreaseTime(dep.Interval)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, err := cl.GetState(lotAddr)
		return err == nil && state.State == 0 &&
			common.BytesToAddress(state.RecentWinner) != (common.Address{})
	}, 5*time.Second, 20*time.Millisecond)
}
