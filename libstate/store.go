package libstate

import (
	"sync"
	"time"

	"github.com/dedis/randlottery/core"
	"github.com/dedis/randlottery/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var (
	bucketAccounts  = []byte("accounts")
	bucketContracts = []byte("contracts")
	bucketEvents    = []byte("events")
)

var (
	ErrInsufficientBalance = xerrors.New("insufficient balance")
	ErrRecipientRejected   = xerrors.New("recipient does not accept funds")
	ErrUnknownContract     = xerrors.New("unknown contract")
	ErrContractExists      = xerrors.New("contract already exists")
	ErrBadNonce            = xerrors.New("bad nonce")
	ErrContractAccount     = xerrors.New("contract balances only change through their own calls")
)

// Store is the world state of a development chain: accounts, contract
// storage and the event log, all kept in one bbolt file.
type Store struct {
	db    *bbolt.DB
	clock core.Clock

	subsLock sync.Mutex
	subs     map[int]chan *Event
	nextSub  int
	closed   bool
}

func Open(path string, clock core.Clock) (*Store, error) {
	if clock == nil {
		clock = core.SystemClock{}
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, xerrors.Errorf("couldn't open db %s: %v", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAccounts, bucketContracts, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return xerrors.Errorf("couldn't create bucket %s: %v", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, clock: clock, subs: make(map[int]chan *Event)}, nil
}

func (s *Store) Clock() core.Clock {
	return s.clock
}

// Close closes every subscription and the database.
func (s *Store) Close() error {
	s.subsLock.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.closed = true
	s.subsLock.Unlock()
	return s.db.Close()
}

// Update runs fn in a read-write transaction. Only one runs at a time. If fn
// returns an error every write made through tx is discarded, events
// included.
func (s *Store) Update(fn func(tx *Tx) error) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		return fn(&Tx{btx: btx, store: s, now: s.clock.Now()})
	})
}

// View runs fn in a read-only snapshot.
func (s *Store) View(fn func(tx *Tx) error) error {
	return s.db.View(func(btx *bbolt.Tx) error {
		return fn(&Tx{btx: btx, store: s, now: s.clock.Now()})
	})
}

// Subscribe returns a channel receiving every committed event and a
// function to cancel the subscription. Events are dropped for subscribers
// whose buffer is full.
func (s *Store) Subscribe(size int) (<-chan *Event, func()) {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()
	ch := make(chan *Event, size)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return ch, func() {
		s.subsLock.Lock()
		defer s.subsLock.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

func (s *Store) publish(ev *Event) {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			metrics.EventDropsTotal.Inc()
			log.Warnf("dropping event %d (%s): subscriber is full", ev.Seq, ev.Name)
		}
	}
}

// Events returns the logged events of contract, in emission order. A zero
// address matches every contract and an empty name every event.
func (s *Store) Events(contract common.Address, name string) ([]*Event, error) {
	var evs []*Event
	err := s.View(func(tx *Tx) error {
		return tx.btx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			ev := &Event{}
			if err := protobuf.Decode(copyBytes(v), ev); err != nil {
				return xerrors.Errorf("couldn't decode event: %v", err)
			}
			if contract != (common.Address{}) && ev.Address() != contract {
				return nil
			}
			if name != "" && ev.Name != name {
				return nil
			}
			evs = append(evs, ev)
			return nil
		})
	})
	return evs, err
}

func (s *Store) Account(addr common.Address) (*Account, error) {
	var acc *Account
	err := s.View(func(tx *Tx) error {
		var err error
		acc, err = tx.Account(addr)
		return err
	})
	return acc, err
}

func (s *Store) Balance(addr common.Address) (*uint256.Int, error) {
	acc, err := s.Account(addr)
	if err != nil {
		return nil, err
	}
	return acc.Funds(), nil
}

// Mint credits amount to addr out of thin air. Only development chains have
// a faucet, and it never pays contracts.
func (s *Store) Mint(addr common.Address, amount *uint256.Int) error {
	return s.Update(func(tx *Tx) error {
		return tx.Mint(addr, amount)
	})
}

func (s *Store) SetPayable(addr common.Address, payable bool) error {
	return s.Update(func(tx *Tx) error {
		return tx.SetPayable(addr, payable)
	})
}
