package libtest

import (
	"testing"
	"time"

	"github.com/dedis/randlottery/easyrand"
	"github.com/dedis/randlottery/easyrand/base"
	"github.com/dedis/randlottery/libexec"
	"github.com/dedis/randlottery/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func Test_RandLottery(t *testing.T) {
	l := onet.NewTCPTest(cothority.Suite)
	_, roster, _ := l.GenTree(4, true)
	defer l.CloseAll()

	cl := libexec.NewClient(roster)
	initReply, err := cl.InitUnit(&libexec.InitUnit{
		ChainID:       31337,
		ManualFulfill: true,
		ManualTime:    true,
		StartTime:     1700000000,
	})
	require.NoError(t, err)
	oraclePub, err := easyrand.UnmarshalPublic(initReply.OraclePublic)
	require.NoError(t, err)

	dep, err := cl.Deploy()
	require.NoError(t, err)
	lot := common.BytesToAddress(dep.Lottery)
	fee := new(uint256.Int).SetBytes(dep.EntranceFee)

	players, err := GeneratePlayers(10)
	require.NoError(t, err)
	oneEther, err := utils.ParseEther("1")
	require.NoError(t, err)
	require.NoError(t, FundPlayers(cl, players, oneEther))
	addrs := []common.Address{lot}
	for _, p := range players {
		addrs = append(addrs, p.Address)
	}
	total, err := TotalBalance(cl, addrs...)
	require.NoError(t, err)

	for round := 1; round <= 3; round++ {
		for i, p := range players {
			reply, err := cl.Enter(lot, fee, p.Key)
			require.NoError(t, err)
			require.Equal(t, i+1, reply.NumPlayers)
		}
		state, err := cl.GetState(lot)
		require.NoError(t, err)
		require.Equal(t, new(uint256.Int).Mul(fee, uint256.NewInt(10)),
			new(uint256.Int).SetBytes(state.PrizePool))

		_, err = cl.IncreaseTime(dep.Interval)
		require.NoError(t, err)
		perf, err := cl.PerformUpkeep(lot)
		require.NoError(t, err)
		require.Equal(t, uint64(round), perf.RequestID)

		// closed for entries while the draw is pending
		_, err = cl.Enter(lot, fee, players[0].Key)
		require.Error(t, err)

		ful, err := cl.Fulfill(lot, perf.RequestID)
		require.NoError(t, err)
		rand := &base.Randomness{
			RequestID: perf.RequestID,
			Seed:      ful.Seed,
			Signature: ful.Signature,
			Words:     ful.Words,
		}
		require.NoError(t, easyrand.VerifyRandomness(oraclePub, rand))

		state, err = cl.GetState(lot)
		require.NoError(t, err)
		require.Equal(t, 0, state.State)
		require.Empty(t, state.Players)
		idx := new(uint256.Int).Mod(rand.RandomWords()[0], uint256.NewInt(10)).Uint64()
		require.Equal(t, players[idx].Address,
			common.BytesToAddress(state.RecentWinner))
		log.Lvlf1("Round %d won by player %d", round, idx)

		// entries only move ether between players and the lottery
		after, err := TotalBalance(cl, addrs...)
		require.NoError(t, err)
		require.Equal(t, total, after)
	}
}

func Test_RandLotteryAutomatic(t *testing.T) {
	l := onet.NewTCPTest(cothority.Suite)
	_, roster, _ := l.GenTree(4, true)
	defer l.CloseAll()

	cl := libexec.NewClient(roster)
	_, err := cl.InitUnit(&libexec.InitUnit{
		ChainID:        31337,
		KeeperInterval: 20,
		FulfillDelay:   10,
		ManualTime:     true,
	})
	require.NoError(t, err)
	dep, err := cl.Deploy()
	require.NoError(t, err)
	lot := common.BytesToAddress(dep.Lottery)
	fee := new(uint256.Int).SetBytes(dep.EntranceFee)

	players, err := GeneratePlayers(5)
	require.NoError(t, err)
	oneEther, err := utils.ParseEther("1")
	require.NoError(t, err)
	require.NoError(t, FundPlayers(cl, players, oneEther))
	for _, p := range players {
		_, err := cl.Enter(lot, fee, p.Key)
		require.NoError(t, err)
	}
	_, err = cl.IncreaseTime(dep.Interval)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, err := cl.GetState(lot)
		return err == nil && state.State == 0 && len(state.Players) == 0
	}, 5*time.Second, 20*time.Millisecond)

	state, err := cl.GetState(lot)
	require.NoError(t, err)
	winner := common.BytesToAddress(state.RecentWinner)
	acc, err := cl.GetAccount(winner)
	require.NoError(t, err)
	require.Equal(t, "1.04",
		utils.FormatEther(new(uint256.Int).SetBytes(acc.Balance)))
}
