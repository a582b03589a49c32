package utils

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
)

func TestParseEther(t *testing.T) {
	for in, wei := range map[string]string{
		"1":    "1000000000000000000",
		"0.01": "10000000000000000",
		"0.25": "250000000000000000",
		".5":   "500000000000000000",
		"0":    "0",
	} {
		v, err := ParseEther(in)
		require.NoError(t, err, in)
		require.Equal(t, wei, v.Dec(), in)
	}
	v, err := ParseEther("0.000000000000000001")
	require.NoError(t, err)
	require.Equal(t, uint64(1), v.Uint64())
	for _, in := range []string{"abc", "1.2.3", "-1", "1e-0", "0.0000000000000000001"} {
		_, err := ParseEther(in)
		require.Error(t, err, in)
	}
}

func TestFormatEther(t *testing.T) {
	require.Equal(t, "1", FormatEther(uint256.NewInt(1000000000000000000)))
	require.Equal(t, "0.01", FormatEther(uint256.NewInt(10000000000000000)))
	require.Equal(t, "0.000000000000000001", FormatEther(uint256.NewInt(1)))
	require.Equal(t, "0", FormatEther(new(uint256.Int)))
}

func TestPointToAddress(t *testing.T) {
	kp := key.NewKeyPair(cothority.Suite)
	a1, err := PointToAddress(kp.Public)
	require.NoError(t, err)
	a2, err := PointToAddress(kp.Public.Clone())
	require.NoError(t, err)
	require.Equal(t, a1, a2)

	other := key.NewKeyPair(cothority.Suite)
	a3, err := PointToAddress(other.Public)
	require.NoError(t, err)
	require.NotEqual(t, a1, a3)
}
