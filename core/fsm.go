package core

import (
	"golang.org/x/xerrors"
)

var (
	ErrUnknownTransaction = xerrors.New("unknown transaction")
	ErrInvalidState       = xerrors.New("transaction not allowed in current state")
)

// Validate checks that the initial state and every transition endpoint are
// declared states.
func (f *FSM) Validate() error {
	if !f.hasState(f.InitialState) {
		return xerrors.Errorf("initial state %q is not declared", f.InitialState)
	}
	for name, t := range f.Transitions {
		if t == nil {
			return xerrors.Errorf("transition %s is empty", name)
		}
		if !f.hasState(t.From) || !f.hasState(t.To) {
			return xerrors.Errorf("transition %s uses undeclared state (%s -> %s)",
				name, t.From, t.To)
		}
	}
	return nil
}

// Next returns the state reached by executing txnName in state curr.
func (f *FSM) Next(txnName string, curr string) (string, error) {
	transition, ok := f.Transitions[txnName]
	if !ok {
		return "", xerrors.Errorf("%s: %w", txnName, ErrUnknownTransaction)
	}
	if transition.From != curr {
		return "", xerrors.Errorf("cannot execute txn %s in curr_state %s: %w",
			txnName, curr, ErrInvalidState)
	}
	return transition.To, nil
}

func (f *FSM) hasState(name string) bool {
	for _, s := range f.States {
		if s == name {
			return true
		}
	}
	return false
}
