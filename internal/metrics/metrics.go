package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcel_transfers_total",
			Help: "Transfers processed, by outcome",
		},
		[]string{"network", "operation", "status"},
	)

	TransferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parcel_transfer_duration_seconds",
			Help:    "Time from sequence allocation to confirmation or failure",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"network", "operation"},
	)

	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcel_batches_total",
			Help: "Split and merge calls started",
		},
		[]string{"network", "operation", "mode"},
	)

	SequenceAllocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcel_sequence_allocations_total",
			Help: "Nonces and seqnos allocated locally",
		},
		[]string{"network"},
	)

	RPCThrottleWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parcel_rpc_throttle_wait_seconds",
			Help:    "Time spent waiting for the RPC rate limiter",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network"},
	)
)

// ObserveTransfer records the outcome of one transfer.
func ObserveTransfer(network, operation string, succeeded bool, started time.Time) {
	status := "failed"
	if succeeded {
		status = "succeeded"
	}
	TransfersTotal.WithLabelValues(network, operation, status).Inc()
	TransferDuration.WithLabelValues(network, operation).Observe(time.Since(started).Seconds())
}
