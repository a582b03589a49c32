package libexec

import (
	"github.com/dedis/randlottery/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"golang.org/x/xerrors"
)

type Client struct {
	*onet.Client
	roster *onet.Roster
}

func NewClient(r *onet.Roster) *Client {
	return &Client{Client: onet.NewClient(cothority.Suite, ServiceName), roster: r}
}

func (c *Client) InitUnit(req *InitUnit) (*InitUnitReply, error) {
	reply := &InitUnitReply{}
	err := c.SendProtobuf(c.roster.List[0], req, reply)
	if err != nil {
		return nil, xerrors.Errorf("send InitUnit message: %v", err)
	}
	return reply, nil
}

func (c *Client) Deploy() (*DeployReply, error) {
	reply := &DeployReply{}
	err := c.SendProtobuf(c.roster.List[0], &Deploy{}, reply)
	if err != nil {
		return nil, xerrors.Errorf("sending deploy request: %v", err)
	}
	return reply, nil
}

func (c *Client) Faucet(addr common.Address, amount *uint256.Int) (*FaucetReply, error) {
	reply := &FaucetReply{}
	req := &Faucet{Address: addr.Bytes(), Amount: amount.Bytes()}
	err := c.SendProtobuf(c.roster.List[0], req, reply)
	if err != nil {
		return nil, xerrors.Errorf("sending faucet request: %v", err)
	}
	return reply, nil
}

func (c *Client) GetAccount(addr common.Address) (*GetAccountReply, error) {
	reply := &GetAccountReply{}
	err := c.SendProtobuf(c.roster.List[0], &GetAccount{Address: addr.Bytes()}, reply)
	if err != nil {
		return nil, xerrors.Errorf("sending get account request: %v", err)
	}
	return reply, nil
}

// Enter enters the lottery as the account of kp. The nonce is fetched from
// the node before signing.
func (c *Client) Enter(lottery common.Address, value *uint256.Int,
	kp *key.Pair) (*EnterReply, error) {
	player, err := utils.PointToAddress(kp.Public)
	if err != nil {
		return nil, err
	}
	acc, err := c.GetAccount(player)
	if err != nil {
		return nil, err
	}
	return c.EnterWithNonce(lottery, value, acc.Nonce, kp)
}

func (c *Client) EnterWithNonce(lottery common.Address, value *uint256.Int,
	nonce uint64, kp *key.Pair) (*EnterReply, error) {
	req := &Enter{
		Lottery: lottery.Bytes(),
		Value:   value.Bytes(),
		Nonce:   nonce,
		Key:     kp.Public,
	}
	sig, err := schnorr.Sign(cothority.Suite, kp.Private, req.Hash())
	if err != nil {
		return nil, xerrors.Errorf("couldn't sign entry: %v", err)
	}
	req.Sig = sig
	reply := &EnterReply{}
	err = c.SendProtobuf(c.roster.List[0], req, reply)
	if err != nil {
		return nil, xerrors.Errorf("sending enter request: %v", err)
	}
	return reply, nil
}

func (c *Client) CheckUpkeep(lottery common.Address) (*CheckUpkeepReply, error) {
	reply := &CheckUpkeepReply{}
	err := c.SendProtobuf(c.roster.List[0], &CheckUpkeep{Lottery: lottery.Bytes()}, reply)
	if err != nil {
		return nil, xerrors.Errorf("sending check upkeep request: %v", err)
	}
	return reply, nil
}

func (c *Client) PerformUpkeep(lottery common.Address) (*PerformUpkeepReply, error) {
	reply := &PerformUpkeepReply{}
	err := c.SendProtobuf(c.roster.List[0], &PerformUpkeep{Lottery: lottery.Bytes()}, reply)
	if err != nil {
		return nil, xerrors.Errorf("sending perform upkeep request: %v", err)
	}
	return reply, nil
}

func (c *Client) Fulfill(lottery common.Address, requestID uint64) (*FulfillReply, error) {
	reply := &FulfillReply{}
	req := &Fulfill{Lottery: lottery.Bytes(), RequestID: requestID}
	err := c.SendProtobuf(c.roster.List[0], req, reply)
	if err != nil {
		return nil, xerrors.Errorf("sending fulfill request: %v", err)
	}
	return reply, nil
}

func (c *Client) GetState(lottery common.Address) (*GetStateReply, error) {
	reply := &GetStateReply{}
	err := c.SendProtobuf(c.roster.List[0], &GetState{Lottery: lottery.Bytes()}, reply)
	if err != nil {
		return nil, xerrors.Errorf("sending get state request: %v", err)
	}
	return reply, nil
}

func (c *Client) IncreaseTime(seconds uint64) (*IncreaseTimeReply, error) {
	reply := &IncreaseTimeReply{}
	err := c.SendProtobuf(c.roster.List[0], &IncreaseTime{Seconds: seconds}, reply)
	if err != nil {
		return nil, xerrors.Errorf("sending increase time request: %v", err)
	}
	return reply, nil
}
