package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AdmissionDecisions counts submit outcomes by result status.
	AdmissionDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gazette_admission_decisions_total",
			Help: "Total article submissions by admission outcome.",
		},
		[]string{"outcome"},
	)

	// RelevanceRejections counts articles discarded by the relevance gate.
	RelevanceRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gazette_relevance_rejections_total",
			Help: "Total articles discarded for falling below the relevance threshold.",
		},
	)

	// DuplicatesFlagged counts near-duplicates queued for manual review.
	DuplicatesFlagged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gazette_duplicates_flagged_total",
			Help: "Total articles flagged as duplicate_pending for review.",
		},
	)

	// CleanupRuns counts reconciliation job executions by job name.
	CleanupRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gazette_cleanup_runs_total",
			Help: "Total cleanup and reconciliation job runs.",
		},
		[]string{"job"},
	)
)

func init() {
	prometheus.MustRegister(
		AdmissionDecisions,
		RelevanceRejections,
		DuplicatesFlagged,
		CleanupRuns,
	)
}
