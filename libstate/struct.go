package libstate

import (
	"github.com/dedis/randlottery/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/protobuf"
)

// Account is the ledger entry of an address. Balance is a big-endian wei
// amount.
type Account struct {
	Balance    []byte
	Nonce      uint64
	NonPayable bool
}

func (a *Account) Funds() *uint256.Int {
	return new(uint256.Int).SetBytes(a.Balance)
}

func (a *Account) setFunds(v *uint256.Int) {
	a.Balance = v.Bytes()
}

// ContractRecord is what the contracts bucket holds for every address with
// code.
type ContractRecord struct {
	Header  core.ContractHeader
	Storage []byte
}

// Event is an entry of the append-only event log.
type Event struct {
	Seq      uint64
	Contract []byte
	Name     string
	Data     []byte
	Time     uint64
}

func (e *Event) Address() common.Address {
	return common.BytesToAddress(e.Contract)
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v interface{}) error {
	return protobuf.Decode(e.Data, v)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
