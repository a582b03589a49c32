package core

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func testFSM() *FSM {
	return &FSM{
		InitialState: "open",
		States:       []string{"open", "calculating"},
		Transitions: map[string]*Transition{
			"enter":   {From: "open", To: "open"},
			"trigger": {From: "open", To: "calculating"},
			"fulfill": {From: "calculating", To: "open"},
		},
	}
}

func TestFSM_Next(t *testing.T) {
	fsm := testFSM()
	require.NoError(t, fsm.Validate())

	next, err := fsm.Next("trigger", "open")
	require.NoError(t, err)
	require.Equal(t, "calculating", next)

	next, err = fsm.Next("fulfill", next)
	require.NoError(t, err)
	require.Equal(t, "open", next)

	_, err = fsm.Next("enter", "calculating")
	require.True(t, xerrors.Is(err, ErrInvalidState))

	_, err = fsm.Next("withdraw", "open")
	require.True(t, xerrors.Is(err, ErrUnknownTransaction))
}

func TestFSM_Validate(t *testing.T) {
	fsm := testFSM()
	fsm.InitialState = "closed"
	require.Error(t, fsm.Validate())

	fsm = testFSM()
	fsm.Transitions["reset"] = &Transition{From: "calculating", To: "closed"}
	require.Error(t, fsm.Validate())
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(100)
	require.Equal(t, uint64(100), c.Now())
	c.Advance(61)
	require.Equal(t, uint64(161), c.Now())
	c.Set(5)
	require.Equal(t, uint64(5), c.Now())

	var _ Clock = SystemClock{}
	require.NotZero(t, SystemClock{}.Now())
}
