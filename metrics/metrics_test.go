package metrics

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestSetPrizePool(t *testing.T) {
	SetPrizePool("0xpool", uint256.NewInt(30))
	require.Equal(t, float64(30), testutil.ToFloat64(PrizePoolWei.WithLabelValues("0xpool")))
	SetPrizePool("0xpool", new(uint256.Int))
	require.Equal(t, float64(0), testutil.ToFloat64(PrizePoolWei.WithLabelValues("0xpool")))
}

func TestObservePerform(t *testing.T) {
	ObservePerform("upkeep-a", nil)
	ObservePerform("upkeep-a", xerrors.New("upkeep not needed"))
	ObservePerform("upkeep-a", nil)
	require.Equal(t, float64(2), testutil.ToFloat64(KeeperPerformsTotal.WithLabelValues("upkeep-a", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(KeeperPerformsTotal.WithLabelValues("upkeep-a", "error")))
}
