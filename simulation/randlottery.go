package main

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/dedis/randlottery/libexec"
	"github.com/dedis/randlottery/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/simul/monitor"
	"golang.org/x/xerrors"
)

// SimulationService measures lottery rounds against a node of the roster.
type SimulationService struct {
	onet.SimulationBFTree
	NumParticipants int
	ChainID         int64

	cl      *libexec.Client
	lottery common.Address
	fee     *uint256.Int
	players []*key.Pair
}

func init() {
	onet.SimulationRegister("RandLottery", NewRandLottery)
}

func NewRandLottery(config string) (onet.Simulation, error) {
	ss := &SimulationService{ChainID: 31337}
	_, err := toml.Decode(config, ss)
	if err != nil {
		return nil, err
	}
	return ss, nil
}

func (s *SimulationService) Setup(dir string,
	hosts []string) (*onet.SimulationConfig, error) {
	sc := &onet.SimulationConfig{}
	s.CreateRoster(sc, hosts, 2000)
	err := s.CreateTree(sc)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *SimulationService) Node(config *onet.SimulationConfig) error {
	index, _ := config.Roster.Search(config.Server.ServerIdentity.GetID())
	if index < 0 {
		log.Fatal("Didn't find this node in roster")
	}
	log.Lvl3("Initializing node-index", index)
	return s.SimulationBFTree.Node(config)
}

func (s *SimulationService) setup(roster *onet.Roster) error {
	s.cl = libexec.NewClient(roster)
	_, err := s.cl.InitUnit(&libexec.InitUnit{
		ChainID:       s.ChainID,
		ManualFulfill: true,
		ManualTime:    true,
	})
	if err != nil {
		log.Errorf("initializing node: %v", err)
		return err
	}
	dep, err := s.cl.Deploy()
	if err != nil {
		log.Errorf("deploying lottery: %v", err)
		return err
	}
	s.lottery = common.BytesToAddress(dep.Lottery)
	s.fee = new(uint256.Int).SetBytes(dep.EntranceFee)

	amount := new(uint256.Int).Mul(s.fee, uint256.NewInt(uint64(s.Rounds)))
	s.players = make([]*key.Pair, s.NumParticipants)
	for i := range s.players {
		s.players[i] = key.NewKeyPair(cothority.Suite)
		addr, err := utils.PointToAddress(s.players[i].Public)
		if err != nil {
			return err
		}
		if _, err := s.cl.Faucet(addr, amount); err != nil {
			log.Errorf("funding player %d: %v", i, err)
			return err
		}
	}
	return nil
}

func (s *SimulationService) executeEnter(roster *onet.Roster, idx int) error {
	cl := libexec.NewClient(roster)
	defer cl.Close()
	enterMonitor := monitor.NewTimeMeasure(fmt.Sprintf("p%d_enter", idx))
	defer enterMonitor.Record()
	_, err := cl.Enter(s.lottery, s.fee, s.players[idx])
	if err != nil {
		log.Errorf("player %d entering: %v", idx, err)
	}
	return err
}

func (s *SimulationService) executeDraw() error {
	state, err := s.cl.GetState(s.lottery)
	if err != nil {
		return err
	}
	// the node clock only moves when asked
	_, err = s.cl.IncreaseTime(state.Interval)
	if err != nil {
		return err
	}
	performMonitor := monitor.NewTimeMeasure("perform")
	perf, err := s.cl.PerformUpkeep(s.lottery)
	if err != nil {
		log.Errorf("performing upkeep: %v", err)
		return err
	}
	performMonitor.Record()

	fulfillMonitor := monitor.NewTimeMeasure("fulfill")
	_, err = s.cl.Fulfill(s.lottery, perf.RequestID)
	if err != nil {
		log.Errorf("fulfilling request %d: %v", perf.RequestID, err)
		return err
	}
	fulfillMonitor.Record()
	return nil
}

func (s *SimulationService) Run(config *onet.SimulationConfig) error {
	if s.NumParticipants < 1 {
		return xerrors.New("need at least one participant")
	}
	if err := s.setup(config.Roster); err != nil {
		return err
	}
	for round := 0; round < s.Rounds; round++ {
		roundMonitor := monitor.NewTimeMeasure("round")
		var wg sync.WaitGroup
		errs := make(chan error, s.NumParticipants)
		for i := range s.players {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				if err := s.executeEnter(config.Roster, idx); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		if err := <-errs; err != nil {
			return err
		}
		if err := s.executeDraw(); err != nil {
			return err
		}
		roundMonitor.Record()
		log.Lvlf1("Round %d done", round)
	}
	return nil
}
