// Package observability defines the Prometheus metrics for the ledger node.
// All metrics are registered through promauto at package load and exported
// on the API server's /metrics endpoint.
package observability

import (
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Call Metrics ───────────────────────────────────────────────────────────

// CallsTotal counts every public ledger call by operation and outcome
// (applied or rejected).
var CallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "voltgrid",
	Subsystem: "chain",
	Name:      "calls_total",
	Help:      "Total ledger calls by operation and outcome.",
}, []string{"op", "outcome"})

// CallsRejected counts rejected calls by error kind.
var CallsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "voltgrid",
	Subsystem: "chain",
	Name:      "calls_rejected_total",
	Help:      "Total rejected ledger calls by error kind.",
}, []string{"kind"})

// CallDuration tracks in-process execution time of ledger calls.
var CallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "voltgrid",
	Subsystem: "chain",
	Name:      "call_duration_seconds",
	Help:      "Ledger call execution time in seconds.",
	Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
})

// BlockHeight tracks the host's current block height.
var BlockHeight = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "voltgrid",
	Subsystem: "chain",
	Name:      "block_height",
	Help:      "Current block height of the serializing host.",
})

// ─── Token Metrics ──────────────────────────────────────────────────────────

// TokenSupply tracks the token ledger's total supply.
var TokenSupply = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "voltgrid",
	Subsystem: "token",
	Name:      "total_supply",
	Help:      "Current total token supply.",
})

// SetTokenSupply updates the supply gauge from a 256-bit supply value.
// Supplies beyond uint64 range saturate the gauge at the maximum.
func SetTokenSupply(supply *uint256.Int) {
	if supply.IsUint64() {
		TokenSupply.Set(float64(supply.Uint64()))
		return
	}
	TokenSupply.Set(float64(^uint64(0)))
}

// ─── Station Metrics ────────────────────────────────────────────────────────

// StationsRegistered tracks the number of registered stations.
var StationsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "voltgrid",
	Subsystem: "stations",
	Name:      "registered",
	Help:      "Number of currently registered charging stations.",
})

// ─── Rewards Metrics ────────────────────────────────────────────────────────

// SessionsSubmitted counts accepted session submissions.
var SessionsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "voltgrid",
	Subsystem: "rewards",
	Name:      "sessions_submitted_total",
	Help:      "Total accepted charging-session submissions.",
})

// SessionsClaimed counts successful reward claims.
var SessionsClaimed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "voltgrid",
	Subsystem: "rewards",
	Name:      "sessions_claimed_total",
	Help:      "Total successful reward claims.",
})

// RewardUnits accumulates the total reward units credited.
var RewardUnits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "voltgrid",
	Subsystem: "rewards",
	Name:      "units_credited_total",
	Help:      "Total reward units credited across all claims.",
})
