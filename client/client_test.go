package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/dedis/randlottery/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func TestSimulate(t *testing.T) {
	var out bytes.Buffer
	results, err := simulate(filepath.Join(t.TempDir(), "state.db"), 31337,
		registry.Default(), 4, 3, &out)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		require.Equal(t, i+1, r.Round)
		require.Equal(t, uint64(i+1), r.RequestID)
		require.NotEqual(t, common.Address{}, r.Winner)
		// 4 players at 0.01 ETH
		require.Equal(t, uint64(4e16), r.Prize.Uint64())
	}
	require.Contains(t, out.String(), "round 3:")
	require.Contains(t, out.String(), "subscription balance left")
}

func TestSimulate_Errors(t *testing.T) {
	var out bytes.Buffer
	_, err := simulate(filepath.Join(t.TempDir(), "state.db"), 31337,
		registry.Default(), 0, 1, &out)
	require.Error(t, err)
	_, err = simulate(filepath.Join(t.TempDir(), "state.db"), 5,
		registry.Default(), 2, 1, &out)
	require.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	addr, err := parseAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	require.NoError(t, err)
	require.Equal(t, simDeployer, addr)
	_, err = parseAddress("0x1234")
	require.Error(t, err)
}
