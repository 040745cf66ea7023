// Prometheus metrics for the bidding engine.
//
//   - engine_bids_accepted_total            – bids that advanced a lot's price
//   - engine_bids_rejected_total{reason}    – structured rejections by reason code
//   - engine_bid_contention_total           – lock waits that timed out
//   - engine_auto_bids_resolved_total       – proxy counter-bids placed by the resolver
//   - engine_lots_finalized_total{outcome}  – finalizations by sold|unsold
//   - engine_bid_placement_seconds          – end-to-end placement latency incl. cascade
//   - engine_event_breaker_state            – broker circuit breaker (0 closed, 1 open, 2 half-open)
//
// Registered in init() and served at /metrics via promhttp.
package infra

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mtxBidsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_bids_accepted_total",
			Help: "Bids accepted and appended to the ledger",
		},
	)

	mtxBidsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_bids_rejected_total",
			Help: "Bids rejected, by structured reason code",
		},
		[]string{"reason"},
	)

	mtxBidContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_bid_contention_total",
			Help: "Bid attempts that could not enter the lot's serialization in time",
		},
	)

	mtxAutoBidsResolved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_auto_bids_resolved_total",
			Help: "Counter-bids placed by the auto-bid resolver",
		},
	)

	mtxLotsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_lots_finalized_total",
			Help: "Lots finalized, by outcome (sold|unsold)",
		},
		[]string{"outcome"},
	)

	mtxBidPlacement = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_bid_placement_seconds",
			Help:    "Bid placement latency including the resolver cascade",
			Buckets: prometheus.DefBuckets,
		},
	)

	mtxBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_event_breaker_state",
			Help: "Event publisher circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)
)

func init() {
	prometheus.MustRegister(
		mtxBidsAccepted,
		mtxBidsRejected,
		mtxBidContention,
		mtxAutoBidsResolved,
		mtxLotsFinalized,
		mtxBidPlacement,
		mtxBreakerState,
	)
}

func IncBidAccepted()              { mtxBidsAccepted.Inc() }
func IncBidRejected(reason string) { mtxBidsRejected.WithLabelValues(reason).Inc() }
func IncBidContention()            { mtxBidContention.Inc() }
func IncAutoBidResolved()          { mtxAutoBidsResolved.Inc() }

func IncLotFinalized(outcome string) { mtxLotsFinalized.WithLabelValues(outcome).Inc() }

func ObserveBidPlacement(d time.Duration) { mtxBidPlacement.Observe(d.Seconds()) }

func SetBreakerState(s CBState) { mtxBreakerState.Set(float64(s)) }
