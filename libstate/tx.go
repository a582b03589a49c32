package libstate

import (
	"encoding/binary"

	"github.com/dedis/randlottery/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.dedis.ch/protobuf"
	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// Tx is a transaction on the world state. Its block time is fixed when the
// transaction starts.
type Tx struct {
	btx   *bbolt.Tx
	store *Store
	now   uint64
}

func (tx *Tx) Now() uint64 {
	return tx.now
}

// OnCommit registers fn to run once the transaction is committed. It never
// runs for a rolled back transaction.
func (tx *Tx) OnCommit(fn func()) {
	tx.btx.OnCommit(fn)
}

// Account returns the account of addr. Unknown addresses have an empty
// account.
func (tx *Tx) Account(addr common.Address) (*Account, error) {
	acc := &Account{}
	buf := tx.btx.Bucket(bucketAccounts).Get(addr.Bytes())
	if buf == nil {
		return acc, nil
	}
	if err := protobuf.Decode(copyBytes(buf), acc); err != nil {
		return nil, xerrors.Errorf("couldn't decode account %s: %v", addr.Hex(), err)
	}
	return acc, nil
}

func (tx *Tx) putAccount(addr common.Address, acc *Account) error {
	buf, err := protobuf.Encode(acc)
	if err != nil {
		return xerrors.Errorf("couldn't encode account %s: %v", addr.Hex(), err)
	}
	return tx.btx.Bucket(bucketAccounts).Put(addr.Bytes(), buf)
}

func (tx *Tx) Balance(addr common.Address) (*uint256.Int, error) {
	acc, err := tx.Account(addr)
	if err != nil {
		return nil, err
	}
	return acc.Funds(), nil
}

// Mint credits amount to an externally owned account.
func (tx *Tx) Mint(addr common.Address, amount *uint256.Int) error {
	if tx.HasContract(addr) {
		return xerrors.Errorf("minting to %s: %w", addr.Hex(), ErrContractAccount)
	}
	acc, err := tx.Account(addr)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(acc.Funds(), amount)
	if overflow {
		return xerrors.Errorf("balance of %s overflows", addr.Hex())
	}
	acc.setFunds(sum)
	return tx.putAccount(addr, acc)
}

// Transfer moves amount from one account to another. All checks happen
// before the first write.
func (tx *Tx) Transfer(from, to common.Address, amount *uint256.Int) error {
	src, err := tx.Account(from)
	if err != nil {
		return err
	}
	dst, err := tx.Account(to)
	if err != nil {
		return err
	}
	if dst.NonPayable {
		return xerrors.Errorf("%s: %w", to.Hex(), ErrRecipientRejected)
	}
	bal := src.Funds()
	if bal.Lt(amount) {
		return xerrors.Errorf("%s has %s wei, needs %s: %w", from.Hex(),
			bal.Dec(), amount.Dec(), ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}
	sum, overflow := new(uint256.Int).AddOverflow(dst.Funds(), amount)
	if overflow {
		return xerrors.Errorf("balance of %s overflows", to.Hex())
	}
	src.setFunds(new(uint256.Int).Sub(bal, amount))
	dst.setFunds(sum)
	if err := tx.putAccount(from, src); err != nil {
		return err
	}
	return tx.putAccount(to, dst)
}

// SetPayable marks whether addr accepts incoming transfers.
func (tx *Tx) SetPayable(addr common.Address, payable bool) error {
	acc, err := tx.Account(addr)
	if err != nil {
		return err
	}
	acc.NonPayable = !payable
	return tx.putAccount(addr, acc)
}

// UseNonce consumes nonce for addr. It must be the account's next nonce.
func (tx *Tx) UseNonce(addr common.Address, nonce uint64) error {
	acc, err := tx.Account(addr)
	if err != nil {
		return err
	}
	if acc.Nonce != nonce {
		return xerrors.Errorf("expected nonce %d for %s, got %d: %w",
			acc.Nonce, addr.Hex(), nonce, ErrBadNonce)
	}
	acc.Nonce++
	return tx.putAccount(addr, acc)
}

// CreateAddress derives the address of the next contract deployed by
// deployer and consumes a deployer nonce.
func (tx *Tx) CreateAddress(deployer common.Address) (common.Address, error) {
	acc, err := tx.Account(deployer)
	if err != nil {
		return common.Address{}, err
	}
	addr := crypto.CreateAddress(deployer, acc.Nonce)
	acc.Nonce++
	if err := tx.putAccount(deployer, acc); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

func (tx *Tx) HasContract(addr common.Address) bool {
	return tx.btx.Bucket(bucketContracts).Get(addr.Bytes()) != nil
}

// CreateContract stores the header and the initial storage of a new
// contract at addr. The account at addr must be empty.
func (tx *Tx) CreateContract(addr common.Address, hdr *core.ContractHeader,
	storage interface{}) error {
	if tx.HasContract(addr) {
		return xerrors.Errorf("%s: %w", addr.Hex(), ErrContractExists)
	}
	bal, err := tx.Balance(addr)
	if err != nil {
		return err
	}
	if !bal.IsZero() {
		return xerrors.Errorf("%s already holds %s wei: %w", addr.Hex(),
			bal.Dec(), ErrContractAccount)
	}
	return tx.writeContract(addr, hdr, storage)
}

// GetContract decodes the storage of the contract at addr into storage and
// returns its header. The contract must be of type contractID.
func (tx *Tx) GetContract(addr common.Address, contractID string,
	storage interface{}) (*core.ContractHeader, error) {
	buf := tx.btx.Bucket(bucketContracts).Get(addr.Bytes())
	if buf == nil {
		return nil, xerrors.Errorf("no contract at %s: %w", addr.Hex(), ErrUnknownContract)
	}
	rec := &ContractRecord{}
	if err := protobuf.Decode(copyBytes(buf), rec); err != nil {
		return nil, xerrors.Errorf("couldn't decode contract %s: %v", addr.Hex(), err)
	}
	if rec.Header.ContractID != contractID {
		return nil, xerrors.Errorf("contract at %s is a %s, not a %s: %w",
			addr.Hex(), rec.Header.ContractID, contractID, ErrUnknownContract)
	}
	if err := protobuf.Decode(rec.Storage, storage); err != nil {
		return nil, xerrors.Errorf("couldn't decode storage of %s: %v", addr.Hex(), err)
	}
	return &rec.Header, nil
}

// PutContract overwrites the header and storage of an existing contract.
func (tx *Tx) PutContract(addr common.Address, hdr *core.ContractHeader,
	storage interface{}) error {
	if !tx.HasContract(addr) {
		return xerrors.Errorf("no contract at %s: %w", addr.Hex(), ErrUnknownContract)
	}
	return tx.writeContract(addr, hdr, storage)
}

func (tx *Tx) writeContract(addr common.Address, hdr *core.ContractHeader,
	storage interface{}) error {
	data, err := protobuf.Encode(storage)
	if err != nil {
		return xerrors.Errorf("couldn't encode storage of %s: %v", addr.Hex(), err)
	}
	buf, err := protobuf.Encode(&ContractRecord{Header: *hdr, Storage: data})
	if err != nil {
		return xerrors.Errorf("couldn't encode contract %s: %v", addr.Hex(), err)
	}
	return tx.btx.Bucket(bucketContracts).Put(addr.Bytes(), buf)
}

// Emit appends an event to the log. Subscribers see it after commit.
func (tx *Tx) Emit(contract common.Address, name string, data interface{}) error {
	payload, err := protobuf.Encode(data)
	if err != nil {
		return xerrors.Errorf("couldn't encode event %s: %v", name, err)
	}
	b := tx.btx.Bucket(bucketEvents)
	seq, err := b.NextSequence()
	if err != nil {
		return xerrors.Errorf("couldn't get event sequence: %v", err)
	}
	ev := &Event{
		Seq:      seq,
		Contract: contract.Bytes(),
		Name:     name,
		Data:     payload,
		Time:     tx.now,
	}
	buf, err := protobuf.Encode(ev)
	if err != nil {
		return xerrors.Errorf("couldn't encode event %s: %v", name, err)
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	if err := b.Put(key, buf); err != nil {
		return err
	}
	tx.btx.OnCommit(func() {
		tx.store.publish(ev)
	})
	return nil
}
