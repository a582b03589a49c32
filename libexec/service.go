package libexec

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dedis/randlottery/core"
	"github.com/dedis/randlottery/registry"
	"github.com/dedis/randlottery/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

var execID onet.ServiceID

const ServiceName = "libexec_svc"

func init() {
	var err error
	execID, err = onet.RegisterNewService(ServiceName, newService)
	network.RegisterMessages(&InitUnit{}, &InitUnitReply{}, &Deploy{},
		&DeployReply{}, &Faucet{}, &FaucetReply{}, &GetAccount{},
		&GetAccountReply{}, &Enter{}, &EnterReply{}, &CheckUpkeep{},
		&CheckUpkeepReply{}, &PerformUpkeep{}, &PerformUpkeepReply{},
		&Fulfill{}, &FulfillReply{}, &GetState{}, &GetStateReply{},
		&IncreaseTime{}, &IncreaseTimeReply{})
	if err != nil {
		panic(err)
	}
}

// Service hosts a development chain node.
type Service struct {
	*onet.ServiceProcessor

	sync.Mutex
	node *Node
	// tmpDir holds the database when InitUnit gets no path.
	tmpDir string
}

func (s *Service) InitUnit(req *InitUnit) (*InitUnitReply, error) {
	reg := registry.Default()
	if req.Networks != "" {
		var err error
		reg, err = registry.Parse(req.Networks)
		if err != nil {
			return nil, err
		}
	}
	var clock core.Clock = core.SystemClock{}
	if req.ManualTime {
		start := req.StartTime
		if start == 0 {
			start = core.SystemClock{}.Now()
		}
		clock = core.NewManualClock(start)
	}
	kp := s.getKeyPair()
	deployer, err := utils.PointToAddress(kp.Public)
	if err != nil {
		return nil, err
	}
	seed, err := kp.Private.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal private key: %v", err)
	}

	s.Lock()
	defer s.Unlock()
	if err := s.closeNode(); err != nil {
		log.Warnf("couldn't close previous node: %v", err)
	}
	dbPath := req.DBPath
	if dbPath == "" {
		dir, err := os.MkdirTemp("", "randlottery")
		if err != nil {
			return nil, xerrors.Errorf("couldn't create db directory: %v", err)
		}
		s.tmpDir = dir
		dbPath = filepath.Join(dir, "state.db")
	}
	node, err := NewNode(NodeConfig{
		DBPath:         dbPath,
		ChainID:        req.ChainID,
		Registry:       reg,
		Clock:          clock,
		Deployer:       deployer,
		OracleSeed:     seed,
		KeeperInterval: time.Duration(req.KeeperInterval) * time.Millisecond,
		FulfillDelay:   time.Duration(req.FulfillDelay) * time.Millisecond,
		ManualFulfill:  req.ManualFulfill,
	})
	if err != nil {
		log.Errorf("couldn't start node: %v", err)
		return nil, err
	}
	s.node = node
	pub, err := node.Coordinator().PublicKey().MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal oracle key: %v", err)
	}
	return &InitUnitReply{
		Deployer:     deployer.Bytes(),
		Coordinator:  node.Coordinator().Address().Bytes(),
		OraclePublic: pub,
		BaseFee:      node.Coordinator().BaseFee().Bytes(),
		GasPriceLink: node.Coordinator().GasPriceLink().Bytes(),
	}, nil
}

func (s *Service) Deploy(req *Deploy) (*DeployReply, error) {
	node, err := s.getNode()
	if err != nil {
		return nil, err
	}
	l, subID, err := node.Deploy()
	if err != nil {
		log.Errorf("couldn't deploy lottery: %v", err)
		return nil, err
	}
	return &DeployReply{
		Lottery:        l.Address().Bytes(),
		SubscriptionID: subID,
		EntranceFee:    l.EntranceFee().Bytes(),
		Interval:       l.Interval(),
	}, nil
}

func (s *Service) Faucet(req *Faucet) (*FaucetReply, error) {
	node, err := s.getNode()
	if err != nil {
		return nil, err
	}
	addr := common.BytesToAddress(req.Address)
	err = node.Faucet(addr, new(uint256.Int).SetBytes(req.Amount))
	if err != nil {
		return nil, err
	}
	acc, err := node.Account(addr)
	if err != nil {
		return nil, err
	}
	return &FaucetReply{Balance: acc.Balance}, nil
}

func (s *Service) GetAccount(req *GetAccount) (*GetAccountReply, error) {
	node, err := s.getNode()
	if err != nil {
		return nil, err
	}
	acc, err := node.Account(common.BytesToAddress(req.Address))
	if err != nil {
		return nil, err
	}
	return &GetAccountReply{Balance: acc.Balance, Nonce: acc.Nonce}, nil
}

func (s *Service) Enter(req *Enter) (*EnterReply, error) {
	node, err := s.getNode()
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	err = schnorr.Verify(cothority.Suite, req.Key, req.Hash(), req.Sig)
	if err != nil {
		return nil, xerrors.Errorf("couldn't verify signature: %v", err)
	}
	player, err := utils.PointToAddress(req.Key)
	if err != nil {
		return nil, err
	}
	n, err := node.Enter(common.BytesToAddress(req.Lottery), player,
		new(uint256.Int).SetBytes(req.Value), req.Nonce)
	if err != nil {
		log.Lvlf2("Entry of %s rejected: %v", player.Hex(), err)
		return nil, err
	}
	return &EnterReply{NumPlayers: n}, nil
}

func (s *Service) CheckUpkeep(req *CheckUpkeep) (*CheckUpkeepReply, error) {
	node, err := s.getNode()
	if err != nil {
		return nil, err
	}
	status, err := node.CheckUpkeep(common.BytesToAddress(req.Lottery))
	if err != nil {
		return nil, err
	}
	return &CheckUpkeepReply{
		UpkeepNeeded: status.Needed(),
		PerformData:  []byte{},
		IsOpen:       status.IsOpen,
		TimePassed:   status.TimePassed,
		HasPlayers:   status.HasPlayers,
		HasBalance:   status.HasBalance,
	}, nil
}

func (s *Service) PerformUpkeep(req *PerformUpkeep) (*PerformUpkeepReply, error) {
	node, err := s.getNode()
	if err != nil {
		return nil, err
	}
	reqID, err := node.PerformUpkeep(common.BytesToAddress(req.Lottery))
	if err != nil {
		return nil, err
	}
	return &PerformUpkeepReply{RequestID: reqID}, nil
}

func (s *Service) Fulfill(req *Fulfill) (*FulfillReply, error) {
	node, err := s.getNode()
	if err != nil {
		return nil, err
	}
	rand, err := node.Fulfill(common.BytesToAddress(req.Lottery), req.RequestID)
	if err != nil {
		log.Errorf("couldn't fulfill request %d: %v", req.RequestID, err)
		return nil, err
	}
	return &FulfillReply{Seed: rand.Seed, Signature: rand.Signature,
		Words: rand.Words}, nil
}

func (s *Service) GetState(req *GetState) (*GetStateReply, error) {
	node, err := s.getNode()
	if err != nil {
		return nil, err
	}
	l, err := node.Lottery(common.BytesToAddress(req.Lottery))
	if err != nil {
		return nil, err
	}
	info, err := l.Info()
	if err != nil {
		return nil, err
	}
	reply := &GetStateReply{
		State:         int(info.State),
		PrizePool:     info.PrizePool.Bytes(),
		EntranceFee:   l.EntranceFee().Bytes(),
		Interval:      l.Interval(),
		LastTimestamp: info.LastTimestamp,
		RequestID:     info.RequestID,
		RecentWinner:  info.RecentWinner.Bytes(),
	}
	for _, p := range info.Players {
		reply.Players = append(reply.Players, p.Bytes())
	}
	return reply, nil
}

func (s *Service) IncreaseTime(req *IncreaseTime) (*IncreaseTimeReply, error) {
	node, err := s.getNode()
	if err != nil {
		return nil, err
	}
	now, err := node.IncreaseTime(req.Seconds)
	if err != nil {
		return nil, err
	}
	return &IncreaseTimeReply{Now: now}, nil
}

func (s *Service) getNode() (*Node, error) {
	s.Lock()
	defer s.Unlock()
	if s.node == nil {
		return nil, xerrors.New("node is not initialized")
	}
	return s.node, nil
}

func (s *Service) getKeyPair() *key.Pair {
	return &key.Pair{
		Public:  s.ServerIdentity().ServicePublic(ServiceName),
		Private: s.ServerIdentity().ServicePrivate(ServiceName),
	}
}

// Close stops the node. It is safe to call more than once.
func (s *Service) Close() error {
	s.Lock()
	defer s.Unlock()
	return s.closeNode()
}

func (s *Service) closeNode() error {
	var err error
	if s.node != nil {
		err = s.node.Close()
		s.node = nil
	}
	if s.tmpDir != "" {
		os.RemoveAll(s.tmpDir)
		s.tmpDir = ""
	}
	return err
}

func newService(c *onet.Context) (onet.Service, error) {
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
	}
	if err := s.RegisterHandlers(s.InitUnit, s.Deploy, s.Faucet,
		s.GetAccount, s.Enter, s.CheckUpkeep, s.PerformUpkeep, s.Fulfill,
		s.GetState, s.IncreaseTime); err != nil {
		return nil, xerrors.New("couldn't register messages")
	}
	return s, nil
}
