package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dedis/randlottery/libexec"
	"github.com/dedis/randlottery/registry"
	"github.com/dedis/randlottery/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"
)

func simulateCmd(c *cli.Context) error {
	reg := registry.Default()
	if path := c.String("networks"); path != "" {
		var err error
		reg, err = registry.Load(path)
		if err != nil {
			return err
		}
	}
	dir, err := os.MkdirTemp("", "lotteryctl")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	_, err = simulate(filepath.Join(dir, "state.db"), c.Int64("chain"), reg,
		c.Int("players"), c.Int("rounds"), os.Stdout)
	return err
}

func newClient(c *cli.Context) (*libexec.Client, error) {
	roster, err := utils.ReadRoster(c.GlobalString("roster"))
	if err != nil {
		return nil, err
	}
	return libexec.NewClient(roster), nil
}

func readKeyPair(fname string) (*key.Pair, error) {
	if fname == "" {
		return nil, xerrors.New("missing key file")
	}
	priv, err := utils.ReadPrivateKey(fname)
	if err != nil {
		return nil, err
	}
	return &key.Pair{
		Public:  cothority.Suite.Point().Mul(priv, nil),
		Private: priv,
	}, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, xerrors.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func lotteryAddress(c *cli.Context) (common.Address, error) {
	return parseAddress(c.String("lottery"))
}

func initCmd(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	req := &libexec.InitUnit{
		DBPath:         c.String("db"),
		ChainID:        c.Int64("chain"),
		KeeperInterval: c.Int64("keeper"),
		FulfillDelay:   c.Int64("delay"),
		ManualFulfill:  c.Bool("manual-fulfill"),
		ManualTime:     c.Bool("manual-time"),
	}
	if path := c.String("networks"); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		req.Networks = string(buf)
	}
	reply, err := cl.InitUnit(req)
	if err != nil {
		return err
	}
	fmt.Printf("deployer: %s\ncoordinator: %s\noracle key: %x\n",
		common.BytesToAddress(reply.Deployer).Hex(),
		common.BytesToAddress(reply.Coordinator).Hex(), reply.OraclePublic)
	fmt.Printf("base fee: %s LINK\ngas price: %s juels\n",
		utils.FormatEther(new(uint256.Int).SetBytes(reply.BaseFee)),
		new(uint256.Int).SetBytes(reply.GasPriceLink).Dec())
	return nil
}

func deployCmd(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	reply, err := cl.Deploy()
	if err != nil {
		return err
	}
	fmt.Printf("lottery: %s\nsubscription: %d\nentrance fee: %s ETH\ninterval: %ds\n",
		common.BytesToAddress(reply.Lottery).Hex(), reply.SubscriptionID,
		utils.FormatEther(new(uint256.Int).SetBytes(reply.EntranceFee)),
		reply.Interval)
	return nil
}

func fundCmd(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	var addr common.Address
	if kf := c.String("key"); kf != "" {
		kp, err := readKeyPair(kf)
		if err != nil {
			return err
		}
		addr, err = utils.PointToAddress(kp.Public)
		if err != nil {
			return err
		}
	} else {
		addr, err = parseAddress(c.String("address"))
		if err != nil {
			return err
		}
	}
	amount, err := utils.ParseEther(c.String("amount"))
	if err != nil {
		return err
	}
	reply, err := cl.Faucet(addr, amount)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s ETH\n", addr.Hex(),
		utils.FormatEther(new(uint256.Int).SetBytes(reply.Balance)))
	return nil
}

func enterCmd(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	lot, err := lotteryAddress(c)
	if err != nil {
		return err
	}
	kp, err := readKeyPair(c.String("key"))
	if err != nil {
		return err
	}
	var value *uint256.Int
	if v := c.String("value"); v != "" {
		value, err = utils.ParseEther(v)
		if err != nil {
			return err
		}
	} else {
		state, err := cl.GetState(lot)
		if err != nil {
			return err
		}
		value = new(uint256.Int).SetBytes(state.EntranceFee)
	}
	reply, err := cl.Enter(lot, value, kp)
	if err != nil {
		return err
	}
	fmt.Printf("entered, %d players\n", reply.NumPlayers)
	return nil
}

func checkCmd(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	lot, err := lotteryAddress(c)
	if err != nil {
		return err
	}
	reply, err := cl.CheckUpkeep(lot)
	if err != nil {
		return err
	}
	fmt.Printf("upkeep needed: %t (open %t, time passed %t, players %t, balance %t)\n",
		reply.UpkeepNeeded, reply.IsOpen, reply.TimePassed, reply.HasPlayers,
		reply.HasBalance)
	return nil
}

func performCmd(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	lot, err := lotteryAddress(c)
	if err != nil {
		return err
	}
	reply, err := cl.PerformUpkeep(lot)
	if err != nil {
		return err
	}
	fmt.Printf("request: %d\n", reply.RequestID)
	return nil
}

func fulfillCmd(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	lot, err := lotteryAddress(c)
	if err != nil {
		return err
	}
	reply, err := cl.Fulfill(lot, c.Uint64("request"))
	if err != nil {
		return err
	}
	fmt.Printf("seed: %x\n", reply.Seed)
	for i, w := range reply.Words {
		fmt.Printf("word %d: %s\n", i, new(uint256.Int).SetBytes(w).Dec())
	}
	return nil
}

func stateCmd(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	lot, err := lotteryAddress(c)
	if err != nil {
		return err
	}
	reply, err := cl.GetState(lot)
	if err != nil {
		return err
	}
	state := "open"
	if reply.State != 0 {
		state = "calculating"
	}
	fmt.Printf("state: %s\nprize pool: %s ETH\nlast timestamp: %d\n", state,
		utils.FormatEther(new(uint256.Int).SetBytes(reply.PrizePool)),
		reply.LastTimestamp)
	if reply.RequestID != 0 {
		fmt.Printf("pending request: %d\n", reply.RequestID)
	}
	for i, p := range reply.Players {
		fmt.Printf("player %d: %s\n", i, common.BytesToAddress(p).Hex())
	}
	fmt.Printf("recent winner: %s\n", common.BytesToAddress(reply.RecentWinner).Hex())
	return nil
}

func timeCmd(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	reply, err := cl.IncreaseTime(c.Uint64("seconds"))
	if err != nil {
		return err
	}
	fmt.Printf("now: %d\n", reply.Now)
	return nil
}
