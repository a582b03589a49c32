package lottery

import (
	"github.com/dedis/randlottery/core"
	"github.com/dedis/randlottery/libstate"
	"github.com/dedis/randlottery/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Coordinator is the randomness oracle a lottery requests its draws from.
// The request is part of the caller's transaction.
type Coordinator interface {
	RequestRandomWords(tx *libstate.Tx, sender common.Address,
		keyHash common.Hash, subID uint64, minConfirmations uint16,
		callbackGasLimit uint32, numWords uint32) (uint64, error)
}

// Lottery is a handle on a lottery contract deployed in a store. All of its
// state lives in the store, so several handles on the same address are
// interchangeable.
type Lottery struct {
	store *libstate.Store
	addr  common.Address
	cfg   Config
	coord Coordinator
}

// Deploy creates a lottery at addr. The round opens immediately and the
// interval starts at the current block time.
func Deploy(store *libstate.Store, addr common.Address, cfg Config,
	coord Coordinator) (*Lottery, error) {
	if cfg.RequestConfirmations == 0 {
		cfg.RequestConfirmations = DefaultRequestConfirmations
	}
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid lottery config: %v", err)
	}
	if coord == nil {
		return nil, xerrors.New("missing coordinator")
	}
	cfg.EntranceFee = cfg.EntranceFee.Clone()
	err := store.Update(func(tx *libstate.Tx) error {
		hdr := &core.ContractHeader{
			ContractID: ContractLotteryID,
			CurrState:  lotteryFSM.InitialState,
		}
		st := &Storage{Params: cfg.params(), LastTimestamp: tx.Now()}
		return tx.CreateContract(addr, hdr, st)
	})
	if err != nil {
		return nil, xerrors.Errorf("couldn't deploy lottery: %w", err)
	}
	log.Lvlf2("Deployed lottery at %s: fee %s wei, interval %ds",
		addr.Hex(), cfg.EntranceFee.Dec(), cfg.Interval)
	return &Lottery{store: store, addr: addr, cfg: cfg, coord: coord}, nil
}

// Load returns a handle on the lottery already deployed at addr.
func Load(store *libstate.Store, addr common.Address,
	coord Coordinator) (*Lottery, error) {
	st := &Storage{}
	err := store.View(func(tx *libstate.Tx) error {
		_, err := tx.GetContract(addr, ContractLotteryID, st)
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("couldn't load lottery: %w", err)
	}
	return &Lottery{store: store, addr: addr, cfg: st.Params.config(),
		coord: coord}, nil
}

func (l *Lottery) load(tx *libstate.Tx) (*core.ContractHeader, *Storage, error) {
	st := &Storage{}
	hdr, err := tx.GetContract(l.addr, ContractLotteryID, st)
	if err != nil {
		return nil, nil, xerrors.Errorf("couldn't read lottery storage: %w", err)
	}
	return hdr, st, nil
}

func (l *Lottery) label() string {
	return l.addr.Hex()
}

// Enter registers player for the current round. value is moved from the
// player's account into the prize pool and must equal the entrance fee.
func (l *Lottery) Enter(player common.Address, value *uint256.Int) error {
	return l.store.Update(func(tx *libstate.Tx) error {
		_, err := l.EnterTx(tx, player, value)
		return err
	})
}

// EnterTx is Enter as part of a larger transaction. It returns the number of
// players once player is in.
func (l *Lottery) EnterTx(tx *libstate.Tx, player common.Address,
	value *uint256.Int) (int, error) {
	hdr, st, err := l.load(tx)
	if err != nil {
		return 0, err
	}
	if _, err := lotteryFSM.Next(TxnEnter, hdr.CurrState); err != nil {
		return 0, xerrors.Errorf("couldn't enter in state %s: %w",
			hdr.CurrState, ErrNotOpen)
	}
	if value == nil || !value.Eq(l.cfg.EntranceFee) {
		return 0, xerrors.Errorf("sent %s wei, entrance fee is %s wei: %w",
			decimal(value), l.cfg.EntranceFee.Dec(), ErrInsufficientPayment)
	}
	if player == l.addr {
		return 0, xerrors.New("the lottery cannot enter itself")
	}
	if err := tx.Transfer(player, l.addr, value); err != nil {
		return 0, xerrors.Errorf("couldn't pay the entrance fee: %w", err)
	}
	st.Players = append(st.Players, player.Bytes())
	if err := tx.PutContract(l.addr, hdr, st); err != nil {
		return 0, err
	}
	n := len(st.Players)
	err = tx.Emit(l.addr, EventEnter, &EnterEvent{Player: player.Bytes(),
		NumPlayers: n})
	if err != nil {
		return 0, err
	}
	pool, err := tx.Balance(l.addr)
	if err != nil {
		return 0, err
	}
	tx.OnCommit(func() {
		metrics.EntriesTotal.WithLabelValues(l.label()).Inc()
		metrics.SetPrizePool(l.label(), pool)
		log.Lvlf2("%s entered lottery %s (%d players)", player.Hex(),
			l.label(), n)
	})
	return n, nil
}

func (l *Lottery) upkeepStatus(tx *libstate.Tx, hdr *core.ContractHeader,
	st *Storage) (*UpkeepStatus, error) {
	state, err := parseState(hdr.CurrState)
	if err != nil {
		return nil, err
	}
	bal, err := tx.Balance(l.addr)
	if err != nil {
		return nil, err
	}
	now := tx.Now()
	return &UpkeepStatus{
		IsOpen:     state == Open,
		TimePassed: now >= st.LastTimestamp && now-st.LastTimestamp >= st.Params.Interval,
		HasPlayers: len(st.Players) > 0,
		HasBalance: !bal.IsZero(),
		Balance:    bal,
		NumPlayers: len(st.Players),
		State:      state,
	}, nil
}

// UpkeepStatus returns every condition of the eligibility check.
func (l *Lottery) UpkeepStatus() (*UpkeepStatus, error) {
	var status *UpkeepStatus
	err := l.store.View(func(tx *libstate.Tx) error {
		hdr, st, err := l.load(tx)
		if err != nil {
			return err
		}
		status, err = l.upkeepStatus(tx, hdr, st)
		return err
	})
	return status, err
}

// CheckUpkeep reports whether a draw can be triggered: the round is open,
// the interval has passed since the last draw and the pool holds at least
// one entry. checkData is ignored and the perform data is always empty.
func (l *Lottery) CheckUpkeep(checkData []byte) (bool, []byte, error) {
	status, err := l.UpkeepStatus()
	if err != nil {
		return false, nil, err
	}
	return status.Needed(), []byte{}, nil
}

// PerformUpkeep closes the round and requests a random word from the
// coordinator.
func (l *Lottery) PerformUpkeep(performData []byte) error {
	return l.store.Update(func(tx *libstate.Tx) error {
		_, err := l.PerformUpkeepTx(tx, performData)
		return err
	})
}

// PerformUpkeepTx is PerformUpkeep as part of a larger transaction. It
// returns the id of the randomness request.
func (l *Lottery) PerformUpkeepTx(tx *libstate.Tx, performData []byte) (uint64, error) {
	hdr, st, err := l.load(tx)
	if err != nil {
		return 0, err
	}
	// The eligibility is evaluated again: the caller's view may be stale.
	status, err := l.upkeepStatus(tx, hdr, st)
	if err != nil {
		return 0, err
	}
	if !status.Needed() {
		return 0, xerrors.Errorf("balance %s wei, %d players, state %s: %w",
			status.Balance.Dec(), status.NumPlayers, status.State,
			ErrUpkeepNotNeeded)
	}
	next, err := lotteryFSM.Next(TxnPerformUpkeep, hdr.CurrState)
	if err != nil {
		return 0, xerrors.Errorf("%v: %w", err, ErrUpkeepNotNeeded)
	}
	reqID, err := l.coord.RequestRandomWords(tx, l.addr, l.cfg.GasLane,
		l.cfg.SubscriptionID, l.cfg.RequestConfirmations,
		l.cfg.CallbackGasLimit, NumWords)
	if err != nil {
		return 0, xerrors.Errorf("couldn't request random words: %w", err)
	}
	if reqID == 0 {
		return 0, xerrors.New("coordinator returned an empty request id")
	}
	hdr.CurrState = next
	st.RequestID = reqID
	if err := tx.PutContract(l.addr, hdr, st); err != nil {
		return 0, err
	}
	err = tx.Emit(l.addr, EventRequestedWinner, &RequestedWinnerEvent{RequestID: reqID})
	if err != nil {
		return 0, err
	}
	tx.OnCommit(func() {
		metrics.DrawsRequestedTotal.WithLabelValues(l.label()).Inc()
		log.Lvlf2("Lottery %s requested a winner: request %d", l.label(), reqID)
	})
	return reqID, nil
}

// RawFulfillRandomWords is the callback of the coordinator. It picks the
// winner among the players of the closed round, pays out the whole pool and
// opens a new round. Every check happens before the first write, so a
// failed call leaves the storage untouched even when tx is committed.
func (l *Lottery) RawFulfillRandomWords(tx *libstate.Tx, sender common.Address,
	requestID uint64, words []*uint256.Int) error {
	if sender != l.cfg.Coordinator {
		return xerrors.Errorf("called by %s: %w", sender.Hex(), ErrUnauthorized)
	}
	hdr, st, err := l.load(tx)
	if err != nil {
		return err
	}
	if st.RequestID == 0 || st.RequestID != requestID {
		return xerrors.Errorf("got request %d, outstanding is %d: %w",
			requestID, st.RequestID, ErrRequestMismatch)
	}
	next, err := lotteryFSM.Next(TxnFulfill, hdr.CurrState)
	if err != nil {
		return xerrors.Errorf("%v: %w", err, ErrRequestMismatch)
	}
	if len(words) == 0 || words[0] == nil {
		return ErrNoRandomWords
	}
	n := len(st.Players)
	if n == 0 {
		return xerrors.New("closed round has no players")
	}
	idx := new(uint256.Int).Mod(words[0], uint256.NewInt(uint64(n))).Uint64()
	winner := common.BytesToAddress(st.Players[idx])
	amount, err := tx.Balance(l.addr)
	if err != nil {
		return err
	}
	if err := tx.Transfer(l.addr, winner, amount); err != nil {
		tx.OnCommit(func() {
			metrics.PayoutFailuresTotal.WithLabelValues(l.label()).Inc()
		})
		return xerrors.Errorf("couldn't pay %s wei to %s (%v): %w",
			amount.Dec(), winner.Hex(), err, ErrTransferFailed)
	}
	hdr.CurrState = next
	st.Players = nil
	st.LastTimestamp = tx.Now()
	st.RequestID = 0
	st.RecentWinner = winner.Bytes()
	if err := tx.PutContract(l.addr, hdr, st); err != nil {
		return err
	}
	err = tx.Emit(l.addr, EventWinnerPicked, &WinnerPickedEvent{
		Winner: winner.Bytes(),
		Amount: amount.Bytes(),
	})
	if err != nil {
		return err
	}
	tx.OnCommit(func() {
		metrics.WinnersPaidTotal.WithLabelValues(l.label()).Inc()
		metrics.SetPrizePool(l.label(), new(uint256.Int))
		log.Infof("Lottery %s: %s won %s wei (player %d of %d)", l.label(),
			winner.Hex(), amount.Dec(), idx, n)
	})
	return nil
}

// Fulfill runs RawFulfillRandomWords in its own transaction.
func (l *Lottery) Fulfill(sender common.Address, requestID uint64,
	words []*uint256.Int) error {
	return l.store.Update(func(tx *libstate.Tx) error {
		return l.RawFulfillRandomWords(tx, sender, requestID, words)
	})
}

func (l *Lottery) Address() common.Address {
	return l.addr
}

func (l *Lottery) Config() Config {
	cfg := l.cfg
	cfg.EntranceFee = l.cfg.EntranceFee.Clone()
	return cfg
}

func (l *Lottery) Interval() uint64 {
	return l.cfg.Interval
}

func (l *Lottery) EntranceFee() *uint256.Int {
	return l.cfg.EntranceFee.Clone()
}

func (l *Lottery) RequestConfirmations() uint16 {
	return l.cfg.RequestConfirmations
}

func (l *Lottery) NumWords() uint32 {
	return NumWords
}

// Info returns a consistent snapshot of the public state.
func (l *Lottery) Info() (*Info, error) {
	info := &Info{}
	err := l.store.View(func(tx *libstate.Tx) error {
		hdr, st, err := l.load(tx)
		if err != nil {
			return err
		}
		info.State, err = parseState(hdr.CurrState)
		if err != nil {
			return err
		}
		info.PrizePool, err = tx.Balance(l.addr)
		if err != nil {
			return err
		}
		for _, p := range st.Players {
			info.Players = append(info.Players, common.BytesToAddress(p))
		}
		info.LastTimestamp = st.LastTimestamp
		info.RequestID = st.RequestID
		info.RecentWinner = common.BytesToAddress(st.RecentWinner)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (l *Lottery) State() (State, error) {
	info, err := l.Info()
	if err != nil {
		return 0, err
	}
	return info.State, nil
}

func (l *Lottery) NumPlayers() (int, error) {
	info, err := l.Info()
	if err != nil {
		return 0, err
	}
	return len(info.Players), nil
}

func (l *Lottery) Player(i int) (common.Address, error) {
	info, err := l.Info()
	if err != nil {
		return common.Address{}, err
	}
	if i < 0 || i >= len(info.Players) {
		return common.Address{}, xerrors.Errorf("player index %d out of range (%d players)",
			i, len(info.Players))
	}
	return info.Players[i], nil
}

func (l *Lottery) RecentWinner() (common.Address, error) {
	info, err := l.Info()
	if err != nil {
		return common.Address{}, err
	}
	return info.RecentWinner, nil
}

func (l *Lottery) LastTimestamp() (uint64, error) {
	info, err := l.Info()
	if err != nil {
		return 0, err
	}
	return info.LastTimestamp, nil
}

func (l *Lottery) PrizePool() (*uint256.Int, error) {
	info, err := l.Info()
	if err != nil {
		return nil, err
	}
	return info.PrizePool, nil
}

func (l *Lottery) RequestID() (uint64, error) {
	info, err := l.Info()
	if err != nil {
		return 0, err
	}
	return info.RequestID, nil
}

func decimal(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
