package main

import (
	"fmt"
	"io"

	"github.com/dedis/randlottery/core"
	"github.com/dedis/randlottery/libexec"
	"github.com/dedis/randlottery/registry"
	"github.com/dedis/randlottery/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// hardhat's first account
var simDeployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type roundResult struct {
	Round     int
	RequestID uint64
	Winner    common.Address
	Prize     *uint256.Int
}

// simulate plays rounds with a fresh set of players on an in-process chain
// whose clock and oracle are driven by hand.
func simulate(dbPath string, chainID int64, reg *registry.Registry, players,
	rounds int, w io.Writer) ([]roundResult, error) {
	if players < 1 || rounds < 1 {
		return nil, xerrors.New("need at least one player and one round")
	}
	clock := core.NewManualClock(core.SystemClock{}.Now())
	node, err := libexec.NewNode(libexec.NodeConfig{
		DBPath:        dbPath,
		ChainID:       chainID,
		Registry:      reg,
		Clock:         clock,
		Deployer:      simDeployer,
		ManualFulfill: true,
	})
	if err != nil {
		return nil, err
	}
	defer node.Close()

	l, subID, err := node.Deploy()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "lottery %s (subscription %d, fee %s ETH, interval %ds)\n",
		l.Address().Hex(), subID, utils.FormatEther(l.EntranceFee()),
		l.Interval())

	addrs := make([]common.Address, players)
	for i := range addrs {
		kp := key.NewKeyPair(cothority.Suite)
		addrs[i], err = utils.PointToAddress(kp.Public)
		if err != nil {
			return nil, err
		}
		// enough for every round
		amount := new(uint256.Int).Mul(l.EntranceFee(), uint256.NewInt(uint64(rounds)))
		if err := node.Faucet(addrs[i], amount); err != nil {
			return nil, err
		}
	}

	var results []roundResult
	for r := 1; r <= rounds; r++ {
		for _, p := range addrs {
			acc, err := node.Account(p)
			if err != nil {
				return nil, err
			}
			if _, err := node.Enter(l.Address(), p, l.EntranceFee(), acc.Nonce); err != nil {
				return nil, xerrors.Errorf("round %d: %v", r, err)
			}
		}
		pool, err := l.PrizePool()
		if err != nil {
			return nil, err
		}
		clock.Advance(l.Interval())
		reqID, err := node.PerformUpkeep(l.Address())
		if err != nil {
			return nil, xerrors.Errorf("round %d: %v", r, err)
		}
		if _, err := node.Fulfill(l.Address(), reqID); err != nil {
			return nil, xerrors.Errorf("round %d: %v", r, err)
		}
		winner, err := l.RecentWinner()
		if err != nil {
			return nil, err
		}
		log.Lvlf2("Round %d finished with request %d", r, reqID)
		fmt.Fprintf(w, "round %d: %s won %s ETH\n", r, winner.Hex(),
			utils.FormatEther(pool))
		results = append(results, roundResult{Round: r, RequestID: reqID,
			Winner: winner, Prize: pool})
	}
	sub, err := node.Coordinator().GetSubscription(subID)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "subscription balance left: %s LINK\n", utils.FormatEther(sub.Balance))
	return results, nil
}
