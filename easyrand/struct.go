package easyrand

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const ContractCoordinatorID = "vrfCoordinatorV2Mock"

const (
	MaxNumWords             = 500
	MaxRequestConfirmations = 200
	MaxConsumers            = 100
)

// Event names.
const (
	EventSubscriptionCreated  = "SubscriptionCreated"
	EventSubscriptionFunded   = "SubscriptionFunded"
	EventConsumerAdded        = "ConsumerAdded"
	EventConsumerRemoved      = "ConsumerRemoved"
	EventRandomWordsRequested = "RandomWordsRequested"
	EventRandomWordsFulfilled = "RandomWordsFulfilled"
)

// Storage is the contract storage of the coordinator.
type Storage struct {
	BaseFee       []byte
	GasPriceLink  []byte
	Public        []byte
	NextSubID     uint64
	NextRequestID uint64
	NextPreSeed   uint64
	Subscriptions []Subscription
	Requests      []Request
}

type Subscription struct {
	ID        uint64
	Owner     []byte
	Balance   []byte
	Consumers [][]byte
}

func (s *Subscription) Funds() *uint256.Int {
	return new(uint256.Int).SetBytes(s.Balance)
}

func (s *Subscription) consumerIndex(addr common.Address) int {
	for i, c := range s.Consumers {
		if bytes.Equal(c, addr.Bytes()) {
			return i
		}
	}
	return -1
}

// Request is a pending randomness request.
type Request struct {
	ID               uint64
	SubID            uint64
	Sender           []byte
	KeyHash          []byte
	PreSeed          uint64
	MinConfirmations uint64
	CallbackGasLimit uint64
	NumWords         uint64
	Time             uint64
}

func (st *Storage) subscription(id uint64) *Subscription {
	for i := range st.Subscriptions {
		if st.Subscriptions[i].ID == id {
			return &st.Subscriptions[i]
		}
	}
	return nil
}

func (st *Storage) requestIndex(id uint64) int {
	for i := range st.Requests {
		if st.Requests[i].ID == id {
			return i
		}
	}
	return -1
}

// SubscriptionInfo is the public view of a subscription.
type SubscriptionInfo struct {
	ID        uint64
	Owner     common.Address
	Balance   *uint256.Int
	Consumers []common.Address
}

type SubscriptionCreatedEvent struct {
	SubID uint64
	Owner []byte
}

type SubscriptionFundedEvent struct {
	SubID      uint64
	OldBalance []byte
	NewBalance []byte
}

type ConsumerEvent struct {
	SubID    uint64
	Consumer []byte
}

type RandomWordsRequestedEvent struct {
	KeyHash          []byte
	RequestID        uint64
	PreSeed          uint64
	SubID            uint64
	MinConfirmations uint64
	CallbackGasLimit uint64
	NumWords         uint64
	Sender           []byte
}

type RandomWordsFulfilledEvent struct {
	RequestID  uint64
	OutputSeed uint64
	Payment    []byte
	Success    bool
	Seed       []byte
	Signature  []byte
}
