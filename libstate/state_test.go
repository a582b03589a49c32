package libstate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dedis/randlottery/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type testStorage struct {
	Counter uint64
	Owner   []byte
}

type testEvent struct {
	Value uint64
}

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func newTestStore(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "state.db"), core.NewManualClock(1000))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Transfer(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Mint(alice, uint256.NewInt(100)))

	err := s.Update(func(tx *Tx) error {
		return tx.Transfer(alice, bob, uint256.NewInt(30))
	})
	require.NoError(t, err)
	bal, err := s.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(70), bal.Uint64())
	bal, err = s.Balance(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(30), bal.Uint64())

	err = s.Update(func(tx *Tx) error {
		return tx.Transfer(bob, alice, uint256.NewInt(31))
	})
	require.True(t, xerrors.Is(err, ErrInsufficientBalance))

	require.NoError(t, s.SetPayable(alice, false))
	err = s.Update(func(tx *Tx) error {
		return tx.Transfer(bob, alice, uint256.NewInt(1))
	})
	require.True(t, xerrors.Is(err, ErrRecipientRejected))
	bal, err = s.Balance(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(30), bal.Uint64())
}

func TestStore_Rollback(t *testing.T) {
	s := newTestStore(t)
	events, cancel := s.Subscribe(10)
	defer cancel()

	failure := xerrors.New("abort")
	err := s.Update(func(tx *Tx) error {
		require.NoError(t, tx.Mint(alice, uint256.NewInt(5)))
		require.NoError(t, tx.Emit(alice, "Minted", &testEvent{Value: 5}))
		return failure
	})
	require.Equal(t, failure, err)

	bal, err := s.Balance(alice)
	require.NoError(t, err)
	require.True(t, bal.IsZero())
	evs, err := s.Events(common.Address{}, "")
	require.NoError(t, err)
	require.Empty(t, evs)
	select {
	case ev := <-events:
		t.Fatalf("got event %s from a rolled back transaction", ev.Name)
	default:
	}
}

func TestStore_Events(t *testing.T) {
	s := newTestStore(t)
	events, cancel := s.Subscribe(10)
	defer cancel()

	err := s.Update(func(tx *Tx) error {
		if err := tx.Emit(alice, "Ping", &testEvent{Value: 1}); err != nil {
			return err
		}
		return tx.Emit(bob, "Pong", &testEvent{Value: 2})
	})
	require.NoError(t, err)

	for i, name := range []string{"Ping", "Pong"} {
		select {
		case ev := <-events:
			require.Equal(t, name, ev.Name)
			require.Equal(t, uint64(1000), ev.Time)
			out := &testEvent{}
			require.NoError(t, ev.Decode(out))
			require.Equal(t, uint64(i+1), out.Value)
		case <-time.After(time.Second):
			t.Fatal("no event received")
		}
	}

	evs, err := s.Events(bob, "")
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, bob, evs[0].Address())
	evs, err = s.Events(common.Address{}, "Ping")
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.True(t, evs[0].Seq < 2)
}

func TestStore_Contract(t *testing.T) {
	s := newTestStore(t)
	var addr common.Address
	err := s.Update(func(tx *Tx) error {
		var err error
		addr, err = tx.CreateAddress(alice)
		if err != nil {
			return err
		}
		hdr := &core.ContractHeader{ContractID: "counter", CurrState: "idle"}
		return tx.CreateContract(addr, hdr, &testStorage{Counter: 1, Owner: alice.Bytes()})
	})
	require.NoError(t, err)

	acc, err := s.Account(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1), acc.Nonce)

	err = s.Update(func(tx *Tx) error {
		st := &testStorage{}
		hdr, err := tx.GetContract(addr, "counter", st)
		if err != nil {
			return err
		}
		require.Equal(t, "idle", hdr.CurrState)
		require.Equal(t, alice, common.BytesToAddress(st.Owner))
		st.Counter++
		hdr.CurrState = "busy"
		return tx.PutContract(addr, hdr, st)
	})
	require.NoError(t, err)

	err = s.View(func(tx *Tx) error {
		st := &testStorage{}
		hdr, err := tx.GetContract(addr, "counter", st)
		require.NoError(t, err)
		require.Equal(t, "busy", hdr.CurrState)
		require.Equal(t, uint64(2), st.Counter)

		_, err = tx.GetContract(addr, "lottery", st)
		require.True(t, xerrors.Is(err, ErrUnknownContract))
		_, err = tx.GetContract(bob, "counter", st)
		require.True(t, xerrors.Is(err, ErrUnknownContract))
		return nil
	})
	require.NoError(t, err)

	err = s.Update(func(tx *Tx) error {
		return tx.CreateContract(addr, &core.ContractHeader{ContractID: "counter"}, &testStorage{})
	})
	require.True(t, xerrors.Is(err, ErrContractExists))
}

func TestStore_Nonce(t *testing.T) {
	s := newTestStore(t)
	use := func(n uint64) error {
		return s.Update(func(tx *Tx) error {
			return tx.UseNonce(bob, n)
		})
	}
	require.NoError(t, use(0))
	require.NoError(t, use(1))
	require.True(t, xerrors.Is(use(1), ErrBadNonce))
	require.True(t, xerrors.Is(use(5), ErrBadNonce))
	require.NoError(t, use(2))
}

func TestStore_ContractAccount(t *testing.T) {
	s := newTestStore(t)
	var addr common.Address
	err := s.Update(func(tx *Tx) error {
		var err error
		addr, err = tx.CreateAddress(alice)
		if err != nil {
			return err
		}
		return tx.CreateContract(addr, &core.ContractHeader{ContractID: "counter"},
			&testStorage{})
	})
	require.NoError(t, err)

	err = s.Mint(addr, uint256.NewInt(12345))
	require.True(t, xerrors.Is(err, ErrContractAccount))
	bal, err := s.Balance(addr)
	require.NoError(t, err)
	require.True(t, bal.IsZero())

	// a funded address cannot become a contract
	require.NoError(t, s.Mint(bob, uint256.NewInt(7)))
	err = s.Update(func(tx *Tx) error {
		return tx.CreateContract(bob, &core.ContractHeader{ContractID: "counter"},
			&testStorage{})
	})
	require.True(t, xerrors.Is(err, ErrContractAccount))
	err = s.View(func(tx *Tx) error {
		require.False(t, tx.HasContract(bob))
		return nil
	})
	require.NoError(t, err)
}
