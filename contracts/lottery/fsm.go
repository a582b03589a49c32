package lottery

import "github.com/dedis/randlottery/core"

const (
	TxnEnter         = "enter"
	TxnPerformUpkeep = "perform_upkeep"
	TxnFulfill       = "fulfill_random_words"
)

var lotteryFSM = &core.FSM{
	InitialState: Open.String(),
	States:       stateNames,
	Transitions: map[string]*core.Transition{
		TxnEnter:         {From: Open.String(), To: Open.String()},
		TxnPerformUpkeep: {From: Open.String(), To: Calculating.String()},
		TxnFulfill:       {From: Calculating.String(), To: Open.String()},
	},
}

func init() {
	if err := lotteryFSM.Validate(); err != nil {
		panic("invalid lottery state machine: " + err.Error())
	}
}
