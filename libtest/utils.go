package libtest

import (
	"github.com/dedis/randlottery/libexec"
	"github.com/dedis/randlottery/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
)

type Player struct {
	Key     *key.Pair
	Address common.Address
}

func GeneratePlayers(count int) ([]*Player, error) {
	players := make([]*Player, count)
	for i := 0; i < count; i++ {
		kp := key.NewKeyPair(cothority.Suite)
		addr, err := utils.PointToAddress(kp.Public)
		if err != nil {
			return nil, err
		}
		players[i] = &Player{Key: kp, Address: addr}
	}
	return players, nil
}

// FundPlayers credits every player with amount wei.
func FundPlayers(cl *libexec.Client, players []*Player, amount *uint256.Int) error {
	for _, p := range players {
		if _, err := cl.Faucet(p.Address, amount); err != nil {
			return err
		}
	}
	return nil
}

// TotalBalance sums the balances of the given accounts.
func TotalBalance(cl *libexec.Client, addrs ...common.Address) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, a := range addrs {
		reply, err := cl.GetAccount(a)
		if err != nil {
			return nil, err
		}
		total.Add(total, new(uint256.Int).SetBytes(reply.Balance))
	}
	return total, nil
}
