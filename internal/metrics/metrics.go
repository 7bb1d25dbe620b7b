// Package metrics defines AgentBus's Prometheus instrumentation,
// adapted from the teacher's internal/escrow/metrics.go: one struct of
// promauto-registered vectors, constructed once by cmd/agentbusd and
// served at /metrics. No component updates these vectors, so they carry
// no observations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus series AgentBus exposes.
type Metrics struct {
	ProposeTotal    *prometheus.CounterVec
	ProposeDuration *prometheus.HistogramVec
	PollTotal       *prometheus.CounterVec

	WOASConflictTotal *prometheus.CounterVec

	DeciderVerdictTotal *prometheus.CounterVec

	VoterCallTotal    *prometheus.CounterVec
	VoterCallDuration *prometheus.HistogramVec

	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers every series against the default
// registry.
func New() *Metrics {
	return &Metrics{
		ProposeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentbus_propose_total",
				Help: "Total number of Propose calls, by bus id and outcome",
			},
			[]string{"bus_id", "outcome"}, // outcome: ok, invalid_bus_id, backend_unavailable
		),
		ProposeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentbus_propose_duration_seconds",
				Help:    "Propose call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"bus_id"},
		),
		PollTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentbus_poll_total",
				Help: "Total number of Poll calls, by bus id and outcome",
			},
			[]string{"bus_id", "outcome"},
		),
		WOASConflictTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentbus_woas_conflict_total",
				Help: "Total number of AddressAlreadyExists retries absorbed by append",
			},
			[]string{"bus_id"},
		),
		DeciderVerdictTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentbus_decider_verdict_total",
				Help: "Total number of Decider verdicts, by bus id and verdict",
			},
			[]string{"bus_id", "verdict"}, // verdict: commit, abort
		),
		VoterCallTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentbus_voter_call_total",
				Help: "Total number of Voter evaluator calls, by outcome",
			},
			[]string{"bus_id", "outcome"}, // outcome: safe, unsafe, llm_call_failed
		),
		VoterCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentbus_voter_call_duration_seconds",
				Help:    "Voter evaluator call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"bus_id"},
		),
		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentbus_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"name"},
		),
	}
}
