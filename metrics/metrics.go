package metrics

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "randlottery_entries_total",
		Help: "Total number of accepted lottery entries",
	}, []string{"lottery"})

	DrawsRequestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "randlottery_draws_requested_total",
		Help: "Total number of randomness requests issued by a lottery",
	}, []string{"lottery"})

	WinnersPaidTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "randlottery_winners_paid_total",
		Help: "Total number of rounds closed with a paid winner",
	}, []string{"lottery"})

	PayoutFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "randlottery_payout_failures_total",
		Help: "Total number of fulfillments whose payout could not be delivered",
	}, []string{"lottery"})

	PrizePoolWei = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "randlottery_prize_pool_wei",
		Help: "Current prize pool of a lottery in wei",
	}, []string{"lottery"})

	KeeperChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "randlottery_keeper_checks_total",
		Help: "Total number of upkeep eligibility checks",
	}, []string{"upkeep"})

	KeeperPerformsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "randlottery_keeper_performs_total",
		Help: "Total number of upkeep performs by result",
	}, []string{"upkeep", "result"})

	OracleRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "randlottery_oracle_requests_total",
		Help: "Total number of randomness requests accepted by the coordinator",
	})

	OracleFulfillmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "randlottery_oracle_fulfillments_total",
		Help: "Total number of fulfilled randomness requests by callback success",
	}, []string{"success"})

	EventDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "randlottery_event_drops_total",
		Help: "Total number of events dropped because a subscriber was full",
	})
)

// SetPrizePool records the pool of lottery as a float gauge.
func SetPrizePool(lottery string, pool *uint256.Int) {
	f, _ := new(big.Float).SetInt(pool.ToBig()).Float64()
	PrizePoolWei.WithLabelValues(lottery).Set(f)
}

// ObservePerform records the outcome of an upkeep perform.
func ObservePerform(upkeep string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	KeeperPerformsTotal.WithLabelValues(upkeep, result).Inc()
}

func ObserveFulfillment(success bool) {
	label := "false"
	if success {
		label = "true"
	}
	OracleFulfillmentsTotal.WithLabelValues(label).Inc()
}
