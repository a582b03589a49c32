package libexec

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

type InitUnit struct {
	DBPath  string
	ChainID int64
	// Networks is a TOML network configuration. Empty uses the default
	// one.
	Networks string
	// KeeperInterval and FulfillDelay are in milliseconds.
	KeeperInterval int64
	FulfillDelay   int64
	ManualFulfill  bool
	ManualTime     bool
	StartTime      uint64
}

type InitUnitReply struct {
	Deployer     []byte
	Coordinator  []byte
	OraclePublic []byte
	// BaseFee and GasPriceLink price a fulfillment, in juels.
	BaseFee      []byte
	GasPriceLink []byte
}

type Deploy struct{}

type DeployReply struct {
	Lottery        []byte
	SubscriptionID uint64
	EntranceFee    []byte
	Interval       uint64
}

type Faucet struct {
	Address []byte
	Amount  []byte
}

type FaucetReply struct {
	Balance []byte
}

type GetAccount struct {
	Address []byte
}

type GetAccountReply struct {
	Balance []byte
	Nonce   uint64
}

// Enter is signed by the participant. The account entering is derived from
// Key.
type Enter struct {
	Lottery []byte
	Value   []byte
	Nonce   uint64
	Key     kyber.Point
	Sig     []byte
}

type EnterReply struct {
	NumPlayers int
}

type CheckUpkeep struct {
	Lottery []byte
}

type CheckUpkeepReply struct {
	UpkeepNeeded bool
	PerformData  []byte
	IsOpen       bool
	TimePassed   bool
	HasPlayers   bool
	HasBalance   bool
}

type PerformUpkeep struct {
	Lottery []byte
}

type PerformUpkeepReply struct {
	RequestID uint64
}

type Fulfill struct {
	Lottery   []byte
	RequestID uint64
}

type FulfillReply struct {
	Seed      []byte
	Signature []byte
	Words     [][]byte
}

type GetState struct {
	Lottery []byte
}

type GetStateReply struct {
	State         int
	Players       [][]byte
	PrizePool     []byte
	EntranceFee   []byte
	Interval      uint64
	LastTimestamp uint64
	RequestID     uint64
	RecentWinner  []byte
}

type IncreaseTime struct {
	Seconds uint64
}

type IncreaseTimeReply struct {
	Now uint64
}

// Hash returns the message signed by the participant: the 20-byte lottery
// address, the value as a 32-byte word and the nonce.
func (e *Enter) Hash() []byte {
	value := new(uint256.Int).SetBytes(e.Value).Bytes32()
	h := sha256.New()
	h.Write(common.BytesToAddress(e.Lottery).Bytes())
	h.Write(value[:])
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, e.Nonce)
	h.Write(buf)
	return h.Sum(nil)
}

func (e *Enter) validate() error {
	if len(e.Lottery) != common.AddressLength {
		return xerrors.Errorf("lottery address has %d bytes", len(e.Lottery))
	}
	if len(e.Value) > 32 {
		return xerrors.Errorf("value has %d bytes", len(e.Value))
	}
	if e.Key == nil {
		return xerrors.New("missing participant key")
	}
	return nil
}
