package libexec

import (
	"context"
	"sync"
	"time"

	"github.com/dedis/randlottery/contracts/lottery"
	"github.com/dedis/randlottery/core"
	"github.com/dedis/randlottery/easyrand"
	"github.com/dedis/randlottery/easyrand/base"
	"github.com/dedis/randlottery/keeper"
	"github.com/dedis/randlottery/libstate"
	"github.com/dedis/randlottery/registry"
	"github.com/dedis/randlottery/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// NodeConfig configures a development chain node.
type NodeConfig struct {
	DBPath   string
	ChainID  int64
	Registry *registry.Registry
	Clock    core.Clock
	// Deployer owns the coordinator, the subscriptions and the lotteries.
	Deployer   common.Address
	OracleSeed []byte
	// KeeperInterval is the polling period of the keeper. Zero disables
	// automatic upkeeps.
	KeeperInterval time.Duration
	FulfillDelay   time.Duration
	// ManualFulfill disables the responder: requests are only answered by
	// Fulfill.
	ManualFulfill bool
}

// Node is a development chain: a world state with a coordinator mock, the
// oracle responder and a keeper serving the lotteries it deploys.
type Node struct {
	cfg       NodeConfig
	network   *registry.Network
	store     *libstate.Store
	coord     *easyrand.Coordinator
	responder *easyrand.Responder
	keeper    *keeper.Keeper
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	sync.Mutex
	lotteries map[common.Address]*lottery.Lottery
	closed    bool
}

func NewNode(cfg NodeConfig) (*Node, error) {
	if cfg.Registry == nil {
		cfg.Registry = registry.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock{}
	}
	network, err := cfg.Registry.Network(cfg.ChainID)
	if err != nil {
		return nil, err
	}
	if !cfg.Registry.IsDevelopment(network.Name) {
		return nil, xerrors.Errorf("network %s is not a development chain", network.Name)
	}
	store, err := libstate.Open(cfg.DBPath, cfg.Clock)
	if err != nil {
		return nil, err
	}
	coordAddr, err := newContractAddress(store, cfg.Deployer)
	if err != nil {
		store.Close()
		return nil, err
	}
	coord, err := easyrand.Deploy(store, coordAddr, nil, nil, cfg.OracleSeed)
	if err != nil {
		store.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:       cfg,
		network:   network,
		store:     store,
		coord:     coord,
		responder: easyrand.NewResponder(coord, cfg.FulfillDelay),
		keeper:    keeper.NewKeeper(cfg.KeeperInterval),
		cancel:    cancel,
		lotteries: make(map[common.Address]*lottery.Lottery),
	}
	if !cfg.ManualFulfill {
		n.responder.Start(ctx)
	}
	if cfg.KeeperInterval > 0 {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.keeper.Run(ctx)
		}()
	}
	log.Lvlf1("Started %s node (chain %d), coordinator at %s", network.Name,
		cfg.ChainID, coordAddr.Hex())
	return n, nil
}

func newContractAddress(store *libstate.Store, deployer common.Address) (common.Address, error) {
	var addr common.Address
	err := store.Update(func(tx *libstate.Tx) error {
		var err error
		addr, err = tx.CreateAddress(deployer)
		return err
	})
	return addr, err
}

// Close stops the keeper and the responder before closing the store.
func (n *Node) Close() error {
	n.Lock()
	if n.closed {
		n.Unlock()
		return nil
	}
	n.closed = true
	n.Unlock()
	n.cancel()
	n.responder.Stop()
	n.wg.Wait()
	return n.store.Close()
}

func (n *Node) Store() *libstate.Store {
	return n.store
}

func (n *Node) Coordinator() *easyrand.Coordinator {
	return n.coord
}

func (n *Node) Keeper() *keeper.Keeper {
	return n.keeper
}

func (n *Node) Network() *registry.Network {
	return n.network
}

// Deploy creates and funds a subscription, deploys a lottery with the
// network configuration and adds it as a consumer.
func (n *Node) Deploy() (*lottery.Lottery, uint64, error) {
	subID, err := n.coord.CreateSubscription(n.cfg.Deployer)
	if err != nil {
		return nil, 0, err
	}
	fund, err := utils.ParseEther(registry.SubscriptionFundAmount)
	if err != nil {
		return nil, 0, err
	}
	if err := n.coord.FundSubscription(subID, fund); err != nil {
		return nil, 0, err
	}
	cfg, err := n.network.LotteryConfig(n.coord.Address(), subID)
	if err != nil {
		return nil, 0, err
	}
	addr, err := newContractAddress(n.store, n.cfg.Deployer)
	if err != nil {
		return nil, 0, err
	}
	l, err := lottery.Deploy(n.store, addr, *cfg, n.coord)
	if err != nil {
		return nil, 0, err
	}
	if err := n.coord.AddConsumer(subID, addr); err != nil {
		return nil, 0, err
	}
	n.responder.Register(l)
	n.keeper.Register(addr.Hex(), l, nil)
	n.Lock()
	n.lotteries[addr] = l
	n.Unlock()
	return l, subID, nil
}

func (n *Node) Lottery(addr common.Address) (*lottery.Lottery, error) {
	n.Lock()
	defer n.Unlock()
	l, ok := n.lotteries[addr]
	if !ok {
		return nil, xerrors.Errorf("no lottery at %s: %w", addr.Hex(),
			libstate.ErrUnknownContract)
	}
	return l, nil
}

// Faucet credits ether to an externally owned account. Contracts are
// refused.
func (n *Node) Faucet(addr common.Address, amount *uint256.Int) error {
	return n.store.Mint(addr, amount)
}

func (n *Node) Account(addr common.Address) (*libstate.Account, error) {
	return n.store.Account(addr)
}

// Enter enters player with a transaction carrying nonce.
func (n *Node) Enter(lotAddr, player common.Address, value *uint256.Int,
	nonce uint64) (int, error) {
	l, err := n.Lottery(lotAddr)
	if err != nil {
		return 0, err
	}
	var num int
	err = n.store.Update(func(tx *libstate.Tx) error {
		if err := tx.UseNonce(player, nonce); err != nil {
			return err
		}
		num, err = l.EnterTx(tx, player, value)
		return err
	})
	if err != nil {
		return 0, err
	}
	return num, nil
}

func (n *Node) CheckUpkeep(lotAddr common.Address) (*lottery.UpkeepStatus, error) {
	l, err := n.Lottery(lotAddr)
	if err != nil {
		return nil, err
	}
	return l.UpkeepStatus()
}

func (n *Node) PerformUpkeep(lotAddr common.Address) (uint64, error) {
	l, err := n.Lottery(lotAddr)
	if err != nil {
		return 0, err
	}
	var reqID uint64
	err = n.store.Update(func(tx *libstate.Tx) error {
		reqID, err = l.PerformUpkeepTx(tx, nil)
		return err
	})
	return reqID, err
}

// Fulfill answers the pending request of a lottery right away.
func (n *Node) Fulfill(lotAddr common.Address, requestID uint64) (*base.Randomness, error) {
	l, err := n.Lottery(lotAddr)
	if err != nil {
		return nil, err
	}
	return n.coord.FulfillRandomWords(requestID, l)
}

// IncreaseTime moves a manual clock forward.
func (n *Node) IncreaseTime(seconds uint64) (uint64, error) {
	clock, ok := n.cfg.Clock.(*core.ManualClock)
	if !ok {
		return 0, xerrors.New("node does not use a manual clock")
	}
	clock.Advance(seconds)
	return clock.Now(), nil
}
