package keeper

import (
	"context"
	"sync"
	"time"

	"github.com/dedis/randlottery/metrics"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Upkeep is a contract maintained by the keeper. CheckUpkeep must be free
// of side effects and PerformUpkeep must check eligibility again.
type Upkeep interface {
	CheckUpkeep(checkData []byte) (bool, []byte, error)
	PerformUpkeep(performData []byte) error
}

type registration struct {
	name      string
	upkeep    Upkeep
	checkData []byte
}

// Keeper polls its upkeeps and performs the eligible ones.
type Keeper struct {
	interval time.Duration

	sync.Mutex
	upkeeps []*registration
}

func NewKeeper(interval time.Duration) *Keeper {
	return &Keeper{interval: interval}
}

// Register adds an upkeep. checkData is passed to every CheckUpkeep call.
func (k *Keeper) Register(name string, upkeep Upkeep, checkData []byte) {
	k.Lock()
	k.upkeeps = append(k.upkeeps, &registration{name: name, upkeep: upkeep,
		checkData: checkData})
	k.Unlock()
	log.Lvlf2("Keeper registered upkeep %s", name)
}

// Poll checks every upkeep once and returns how many were performed.
// Failures are logged: the next poll is the retry.
func (k *Keeper) Poll() int {
	k.Lock()
	upkeeps := make([]*registration, len(k.upkeeps))
	copy(upkeeps, k.upkeeps)
	k.Unlock()

	performed := 0
	for _, r := range upkeeps {
		metrics.KeeperChecksTotal.WithLabelValues(r.name).Inc()
		needed, performData, err := r.upkeep.CheckUpkeep(r.checkData)
		if err != nil {
			log.Errorf("couldn't check upkeep %s: %v", r.name, err)
			continue
		}
		if !needed {
			continue
		}
		err = r.upkeep.PerformUpkeep(performData)
		metrics.ObservePerform(r.name, err)
		if err != nil {
			log.Errorf("couldn't perform upkeep %s: %v", r.name, err)
			continue
		}
		log.Lvlf2("Keeper performed upkeep %s", r.name)
		performed++
	}
	return performed
}

// Run polls every interval until ctx is done.
func (k *Keeper) Run(ctx context.Context) error {
	if k.interval <= 0 {
		return xerrors.Errorf("invalid keeper interval %v", k.interval)
	}
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			k.Poll()
		}
	}
}
