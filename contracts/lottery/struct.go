package lottery

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/xerrors"
)

const ContractLotteryID = "lottery"

// NumWords is the number of random words requested per draw.
const NumWords uint32 = 1

// DefaultRequestConfirmations is the number of confirmations the
// coordinator waits for before answering.
const DefaultRequestConfirmations uint16 = 3

// Event names.
const (
	EventEnter           = "LotteryEnter"
	EventRequestedWinner = "RequestedLotteryWinner"
	EventWinnerPicked    = "WinnerPicked"
)

type State int

const (
	Open State = iota
	Calculating
)

var stateNames = []string{"open", "calculating"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func parseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, xerrors.Errorf("unknown lottery state %q", name)
}

// Config holds the constructor parameters. They cannot change after
// deployment.
type Config struct {
	Coordinator          common.Address
	EntranceFee          *uint256.Int
	GasLane              common.Hash
	SubscriptionID       uint64
	CallbackGasLimit     uint32
	Interval             uint64
	RequestConfirmations uint16
}

func (c *Config) Validate() error {
	if c.Coordinator == (common.Address{}) {
		return xerrors.New("missing coordinator address")
	}
	if c.EntranceFee == nil || c.EntranceFee.IsZero() {
		return xerrors.New("entrance fee must be positive")
	}
	if c.SubscriptionID == 0 {
		return xerrors.New("missing subscription id")
	}
	if c.CallbackGasLimit == 0 {
		return xerrors.New("callback gas limit must be positive")
	}
	if c.Interval == 0 {
		return xerrors.New("interval must be positive")
	}
	return nil
}

// Params is the persisted form of Config.
type Params struct {
	Coordinator          []byte
	EntranceFee          []byte
	GasLane              []byte
	SubscriptionID       uint64
	CallbackGasLimit     uint64
	Interval             uint64
	RequestConfirmations uint64
}

func (c *Config) params() Params {
	return Params{
		Coordinator:          c.Coordinator.Bytes(),
		EntranceFee:          c.EntranceFee.Bytes(),
		GasLane:              c.GasLane.Bytes(),
		SubscriptionID:       c.SubscriptionID,
		CallbackGasLimit:     uint64(c.CallbackGasLimit),
		Interval:             c.Interval,
		RequestConfirmations: uint64(c.RequestConfirmations),
	}
}

func (p *Params) config() Config {
	return Config{
		Coordinator:          common.BytesToAddress(p.Coordinator),
		EntranceFee:          new(uint256.Int).SetBytes(p.EntranceFee),
		GasLane:              common.BytesToHash(p.GasLane),
		SubscriptionID:       p.SubscriptionID,
		CallbackGasLimit:     uint32(p.CallbackGasLimit),
		Interval:             p.Interval,
		RequestConfirmations: uint16(p.RequestConfirmations),
	}
}

// Storage is the contract storage of a lottery. The prize pool is not
// stored here: it is the balance of the lottery account.
type Storage struct {
	Params        Params
	Players       [][]byte
	LastTimestamp uint64
	RequestID     uint64
	RecentWinner  []byte
}

// UpkeepStatus lists the conditions checked by CheckUpkeep.
type UpkeepStatus struct {
	IsOpen     bool
	TimePassed bool
	HasPlayers bool
	HasBalance bool
	Balance    *uint256.Int
	NumPlayers int
	State      State
}

func (s *UpkeepStatus) Needed() bool {
	return s.IsOpen && s.TimePassed && s.HasPlayers && s.HasBalance
}

// Info is a snapshot of the public state of a lottery.
type Info struct {
	State         State
	Players       []common.Address
	PrizePool     *uint256.Int
	LastTimestamp uint64
	RequestID     uint64
	RecentWinner  common.Address
}

type EnterEvent struct {
	Player     []byte
	NumPlayers int
}

type RequestedWinnerEvent struct {
	RequestID uint64
}

type WinnerPickedEvent struct {
	Winner []byte
	Amount []byte
}
