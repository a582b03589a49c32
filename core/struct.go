package core

// FSM describes the states of a contract and the transactions that move it
// from one state to the next.
type FSM struct {
	InitialState string                 `json:"initial_state"`
	States       []string               `json:"states"`
	Transitions  map[string]*Transition `json:"transitions"`
}

type Transition struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ContractHeader is stored next to the storage of every contract.
type ContractHeader struct {
	ContractID string
	CurrState  string
}
