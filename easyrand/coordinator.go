package easyrand

import (
	"bytes"

	"github.com/dedis/randlottery/core"
	"github.com/dedis/randlottery/easyrand/base"
	"github.com/dedis/randlottery/libstate"
	"github.com/dedis/randlottery/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

var (
	ErrInvalidSubscription = xerrors.New("invalid subscription")
	ErrInvalidConsumer     = xerrors.New("invalid consumer")
	ErrInvalidRequest      = xerrors.New("invalid request")
	ErrInsufficientBalance = xerrors.New("insufficient subscription balance")
	ErrNumWordsTooBig      = xerrors.New("too many random words")
	ErrTooManyConsumers    = xerrors.New("too many consumers")
	ErrBadProof            = base.ErrBadProof
)

var (
	// DefaultBaseFee is 0.25 LINK in juels.
	DefaultBaseFee = uint256.NewInt(250000000000000000)
	// DefaultGasPriceLink is the LINK price of one unit of gas.
	DefaultGasPriceLink = uint256.NewInt(1000000000)
)

// Consumer is a contract that receives random words.
type Consumer interface {
	Address() common.Address
	RawFulfillRandomWords(tx *libstate.Tx, sender common.Address,
		requestID uint64, words []*uint256.Int) error
}

// Coordinator is a VRF coordinator for development chains. Requests are
// answered with words derived from a threshold BLS signature on the request
// seed.
type Coordinator struct {
	store        *libstate.Store
	addr         common.Address
	signer       *Signer
	baseFee      *uint256.Int
	gasPriceLink *uint256.Int
}

// Deploy creates a coordinator at addr. A nil fee uses the default.
func Deploy(store *libstate.Store, addr common.Address, baseFee,
	gasPriceLink *uint256.Int, seed []byte) (*Coordinator, error) {
	if baseFee == nil {
		baseFee = DefaultBaseFee
	}
	if gasPriceLink == nil {
		gasPriceLink = DefaultGasPriceLink
	}
	signer, err := NewSigner(DefaultNodes, DefaultThreshold, seed)
	if err != nil {
		return nil, err
	}
	pub, err := signer.Public().MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal public key: %v", err)
	}
	err = store.Update(func(tx *libstate.Tx) error {
		hdr := &core.ContractHeader{ContractID: ContractCoordinatorID}
		return tx.CreateContract(addr, hdr, &Storage{
			BaseFee:       baseFee.Bytes(),
			GasPriceLink:  gasPriceLink.Bytes(),
			Public:        pub,
			NextSubID:     1,
			NextRequestID: 1,
			NextPreSeed:   100,
		})
	})
	if err != nil {
		return nil, xerrors.Errorf("couldn't deploy coordinator: %w", err)
	}
	log.Lvlf2("Deployed coordinator at %s", addr.Hex())
	return &Coordinator{
		store:        store,
		addr:         addr,
		signer:       signer,
		baseFee:      baseFee.Clone(),
		gasPriceLink: gasPriceLink.Clone(),
	}, nil
}

func (c *Coordinator) load(tx *libstate.Tx) (*core.ContractHeader, *Storage, error) {
	st := &Storage{}
	hdr, err := tx.GetContract(c.addr, ContractCoordinatorID, st)
	if err != nil {
		return nil, nil, xerrors.Errorf("couldn't read coordinator storage: %w", err)
	}
	return hdr, st, nil
}

// update runs fn on the coordinator storage and writes it back.
func (c *Coordinator) update(fn func(tx *libstate.Tx, st *Storage) error) error {
	return c.store.Update(func(tx *libstate.Tx) error {
		hdr, st, err := c.load(tx)
		if err != nil {
			return err
		}
		if err := fn(tx, st); err != nil {
			return err
		}
		return tx.PutContract(c.addr, hdr, st)
	})
}

func (c *Coordinator) Address() common.Address {
	return c.addr
}

func (c *Coordinator) PublicKey() kyber.Point {
	return c.signer.Public()
}

func (c *Coordinator) BaseFee() *uint256.Int {
	return c.baseFee.Clone()
}

func (c *Coordinator) GasPriceLink() *uint256.Int {
	return c.gasPriceLink.Clone()
}

func (c *Coordinator) CreateSubscription(owner common.Address) (uint64, error) {
	var id uint64
	err := c.update(func(tx *libstate.Tx, st *Storage) error {
		id = st.NextSubID
		st.NextSubID++
		st.Subscriptions = append(st.Subscriptions, Subscription{
			ID:    id,
			Owner: owner.Bytes(),
		})
		return tx.Emit(c.addr, EventSubscriptionCreated,
			&SubscriptionCreatedEvent{SubID: id, Owner: owner.Bytes()})
	})
	if err != nil {
		return 0, err
	}
	log.Lvlf2("Created subscription %d for %s", id, owner.Hex())
	return id, nil
}

// FundSubscription credits amount to a subscription. The mock keeps no LINK
// token, funding is plain bookkeeping.
func (c *Coordinator) FundSubscription(subID uint64, amount *uint256.Int) error {
	return c.update(func(tx *libstate.Tx, st *Storage) error {
		sub := st.subscription(subID)
		if sub == nil {
			return xerrors.Errorf("subscription %d: %w", subID, ErrInvalidSubscription)
		}
		old := sub.Funds()
		sum, overflow := new(uint256.Int).AddOverflow(old, amount)
		if overflow {
			return xerrors.Errorf("balance of subscription %d overflows", subID)
		}
		sub.Balance = sum.Bytes()
		return tx.Emit(c.addr, EventSubscriptionFunded, &SubscriptionFundedEvent{
			SubID:      subID,
			OldBalance: old.Bytes(),
			NewBalance: sum.Bytes(),
		})
	})
}

// AddConsumer allows consumer to request words on subID. Adding a consumer
// twice has no effect.
func (c *Coordinator) AddConsumer(subID uint64, consumer common.Address) error {
	return c.update(func(tx *libstate.Tx, st *Storage) error {
		sub := st.subscription(subID)
		if sub == nil {
			return xerrors.Errorf("subscription %d: %w", subID, ErrInvalidSubscription)
		}
		if sub.consumerIndex(consumer) >= 0 {
			return nil
		}
		if len(sub.Consumers) >= MaxConsumers {
			return xerrors.Errorf("subscription %d: %w", subID, ErrTooManyConsumers)
		}
		sub.Consumers = append(sub.Consumers, consumer.Bytes())
		return tx.Emit(c.addr, EventConsumerAdded,
			&ConsumerEvent{SubID: subID, Consumer: consumer.Bytes()})
	})
}

func (c *Coordinator) RemoveConsumer(subID uint64, consumer common.Address) error {
	return c.update(func(tx *libstate.Tx, st *Storage) error {
		sub := st.subscription(subID)
		if sub == nil {
			return xerrors.Errorf("subscription %d: %w", subID, ErrInvalidSubscription)
		}
		idx := sub.consumerIndex(consumer)
		if idx < 0 {
			return xerrors.Errorf("%s on subscription %d: %w", consumer.Hex(),
				subID, ErrInvalidConsumer)
		}
		sub.Consumers = append(sub.Consumers[:idx], sub.Consumers[idx+1:]...)
		return tx.Emit(c.addr, EventConsumerRemoved,
			&ConsumerEvent{SubID: subID, Consumer: consumer.Bytes()})
	})
}

// RequestRandomWords records a request of sender as part of tx and returns
// its id. Ids start at 1.
func (c *Coordinator) RequestRandomWords(tx *libstate.Tx, sender common.Address,
	keyHash common.Hash, subID uint64, minConfirmations uint16,
	callbackGasLimit uint32, numWords uint32) (uint64, error) {
	hdr, st, err := c.load(tx)
	if err != nil {
		return 0, err
	}
	sub := st.subscription(subID)
	if sub == nil {
		return 0, xerrors.Errorf("subscription %d: %w", subID, ErrInvalidSubscription)
	}
	if sub.consumerIndex(sender) < 0 {
		return 0, xerrors.Errorf("%s on subscription %d: %w", sender.Hex(),
			subID, ErrInvalidConsumer)
	}
	if minConfirmations > MaxRequestConfirmations {
		return 0, xerrors.Errorf("%d confirmations, max is %d: %w",
			minConfirmations, MaxRequestConfirmations, ErrInvalidRequest)
	}
	if numWords == 0 {
		return 0, xerrors.Errorf("no words requested: %w", ErrInvalidRequest)
	}
	if numWords > MaxNumWords {
		return 0, xerrors.Errorf("%d words, max is %d: %w", numWords,
			MaxNumWords, ErrNumWordsTooBig)
	}
	req := Request{
		ID:               st.NextRequestID,
		SubID:            subID,
		Sender:           sender.Bytes(),
		KeyHash:          keyHash.Bytes(),
		PreSeed:          st.NextPreSeed,
		MinConfirmations: uint64(minConfirmations),
		CallbackGasLimit: uint64(callbackGasLimit),
		NumWords:         uint64(numWords),
		Time:             tx.Now(),
	}
	st.NextRequestID++
	st.NextPreSeed++
	st.Requests = append(st.Requests, req)
	if err := tx.PutContract(c.addr, hdr, st); err != nil {
		return 0, err
	}
	err = tx.Emit(c.addr, EventRandomWordsRequested, &RandomWordsRequestedEvent{
		KeyHash:          req.KeyHash,
		RequestID:        req.ID,
		PreSeed:          req.PreSeed,
		SubID:            subID,
		MinConfirmations: req.MinConfirmations,
		CallbackGasLimit: req.CallbackGasLimit,
		NumWords:         req.NumWords,
		Sender:           req.Sender,
	})
	if err != nil {
		return 0, err
	}
	tx.OnCommit(func() {
		metrics.OracleRequestsTotal.Inc()
		log.Lvlf3("Request %d from %s on subscription %d", req.ID,
			sender.Hex(), subID)
	})
	return req.ID, nil
}

// FulfillRandomWords answers a pending request by calling back consumer.
// The subscription is charged and the request consumed even when the
// callback fails.
func (c *Coordinator) FulfillRandomWords(requestID uint64,
	consumer Consumer) (*base.Randomness, error) {
	return c.fulfill(requestID, consumer, nil)
}

// FulfillRandomWordsWithOverride is FulfillRandomWords with caller-chosen
// words. The proof then only covers the seed.
func (c *Coordinator) FulfillRandomWordsWithOverride(requestID uint64,
	consumer Consumer, words []*uint256.Int) (*base.Randomness, error) {
	if len(words) == 0 {
		return nil, xerrors.Errorf("no override words: %w", ErrInvalidRequest)
	}
	return c.fulfill(requestID, consumer, words)
}

func (c *Coordinator) fulfill(requestID uint64, consumer Consumer,
	override []*uint256.Int) (*base.Randomness, error) {
	var rand *base.Randomness
	err := c.store.Update(func(tx *libstate.Tx) error {
		hdr, st, err := c.load(tx)
		if err != nil {
			return err
		}
		idx := st.requestIndex(requestID)
		if idx < 0 {
			return xerrors.Errorf("nonexistent request %d: %w", requestID,
				ErrInvalidRequest)
		}
		req := st.Requests[idx]
		if !bytes.Equal(req.Sender, consumer.Address().Bytes()) {
			return xerrors.Errorf("request %d was not made by %s: %w", requestID,
				consumer.Address().Hex(), ErrInvalidConsumer)
		}
		rand, err = c.randomness(&req, override)
		if err != nil {
			return err
		}
		sub := st.subscription(req.SubID)
		if sub == nil {
			return xerrors.Errorf("subscription %d: %w", req.SubID, ErrInvalidSubscription)
		}
		payment := c.payment(req.CallbackGasLimit)
		bal := sub.Funds()
		if bal.Lt(payment) {
			return xerrors.Errorf("subscription %d has %s, needs %s: %w",
				req.SubID, bal.Dec(), payment.Dec(), ErrInsufficientBalance)
		}

		cbErr := consumer.RawFulfillRandomWords(tx, c.addr, requestID,
			rand.RandomWords())
		success := cbErr == nil
		if !success {
			log.Warnf("Callback of request %d failed: %v", requestID, cbErr)
		}

		sub.Balance = new(uint256.Int).Sub(bal, payment).Bytes()
		st.Requests = append(st.Requests[:idx], st.Requests[idx+1:]...)
		if err := tx.PutContract(c.addr, hdr, st); err != nil {
			return err
		}
		err = tx.Emit(c.addr, EventRandomWordsFulfilled, &RandomWordsFulfilledEvent{
			RequestID:  requestID,
			OutputSeed: requestID,
			Payment:    payment.Bytes(),
			Success:    success,
			Seed:       rand.Seed,
			Signature:  rand.Signature,
		})
		if err != nil {
			return err
		}
		tx.OnCommit(func() {
			metrics.ObserveFulfillment(success)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rand, nil
}

func (c *Coordinator) payment(gasLimit uint64) *uint256.Int {
	gas := new(uint256.Int).Mul(c.gasPriceLink, uint256.NewInt(gasLimit))
	return gas.Add(gas, c.baseFee)
}

func (c *Coordinator) randomness(req *Request,
	override []*uint256.Int) (*base.Randomness, error) {
	seed := base.DeriveSeed(common.BytesToHash(req.KeyHash),
		common.BytesToAddress(req.Sender), req.SubID, req.PreSeed, req.ID)
	sig, err := c.signer.Sign(seed)
	if err != nil {
		return nil, err
	}
	words := override
	if words == nil {
		words = base.ExpandWords(sig, int(req.NumWords))
	} else if uint64(len(words)) != req.NumWords {
		return nil, xerrors.Errorf("got %d words, request %d wants %d: %w",
			len(words), req.ID, req.NumWords, ErrInvalidRequest)
	}
	return &base.Randomness{
		RequestID: req.ID,
		Seed:      seed,
		Signature: sig,
		Words:     base.EncodeWords(words),
		Override:  override != nil,
	}, nil
}

// Verify checks a proof published by this coordinator.
func (c *Coordinator) Verify(r *base.Randomness) error {
	return VerifyRandomness(c.PublicKey(), r)
}

// VerifyRandomness checks a proof against the public key of a coordinator.
func VerifyRandomness(public kyber.Point, r *base.Randomness) error {
	return r.Verify(suite, public)
}

func (c *Coordinator) GetSubscription(subID uint64) (*SubscriptionInfo, error) {
	var info *SubscriptionInfo
	err := c.store.View(func(tx *libstate.Tx) error {
		_, st, err := c.load(tx)
		if err != nil {
			return err
		}
		sub := st.subscription(subID)
		if sub == nil {
			return xerrors.Errorf("subscription %d: %w", subID, ErrInvalidSubscription)
		}
		info = &SubscriptionInfo{
			ID:      sub.ID,
			Owner:   common.BytesToAddress(sub.Owner),
			Balance: sub.Funds(),
		}
		for _, cons := range sub.Consumers {
			info.Consumers = append(info.Consumers, common.BytesToAddress(cons))
		}
		return nil
	})
	return info, err
}

// PendingRequest returns the request with the given id, or nil once it has
// been fulfilled.
func (c *Coordinator) PendingRequest(requestID uint64) (*Request, error) {
	var req *Request
	err := c.store.View(func(tx *libstate.Tx) error {
		_, st, err := c.load(tx)
		if err != nil {
			return err
		}
		if idx := st.requestIndex(requestID); idx >= 0 {
			r := st.Requests[idx]
			req = &r
		}
		return nil
	})
	return req, err
}
