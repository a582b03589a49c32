package easyrand

import (
	"context"
	"sync"
	"time"

	"github.com/dedis/randlottery/libstate"
	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/onet/v3/log"
)

const responderBuffer = 128

// Responder is the off-chain side of the coordinator. It watches committed
// requests and fulfills those of registered consumers after Delay.
type Responder struct {
	coord *Coordinator
	delay time.Duration

	sync.Mutex
	consumers map[common.Address]Consumer
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewResponder(coord *Coordinator, delay time.Duration) *Responder {
	return &Responder{
		coord:     coord,
		delay:     delay,
		consumers: make(map[common.Address]Consumer),
	}
}

// Register makes the responder answer the requests of consumer.
func (r *Responder) Register(consumer Consumer) {
	r.Lock()
	r.consumers[consumer.Address()] = consumer
	r.Unlock()
}

// Start listens for requests until ctx is done or Stop is called.
func (r *Responder) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.Lock()
	r.cancel = cancel
	r.Unlock()
	events, unsubscribe := r.coord.store.Subscribe(responderBuffer)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				r.handle(ctx, ev)
			}
		}
	}()
}

// Stop cancels the pending fulfillments and waits for the running ones.
func (r *Responder) Stop() {
	r.Lock()
	cancel := r.cancel
	r.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *Responder) handle(ctx context.Context, ev *libstate.Event) {
	if ev.Name != EventRandomWordsRequested || ev.Address() != r.coord.addr {
		return
	}
	req := &RandomWordsRequestedEvent{}
	if err := ev.Decode(req); err != nil {
		log.Errorf("couldn't decode request event %d: %v", ev.Seq, err)
		return
	}
	sender := common.BytesToAddress(req.Sender)
	r.Lock()
	consumer, ok := r.consumers[sender]
	r.Unlock()
	if !ok {
		log.Lvlf3("Ignoring request %d of unknown consumer %s", req.RequestID,
			sender.Hex())
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.delay):
		}
		rand, err := r.coord.FulfillRandomWords(req.RequestID, consumer)
		if err != nil {
			log.Errorf("couldn't fulfill request %d: %v", req.RequestID, err)
			return
		}
		log.Lvlf2("Fulfilled request %d of %s: seed %x", req.RequestID,
			sender.Hex(), rand.Seed)
	}()
}
