package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lockOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_lock_operations_total",
			Help: "Edit lock operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	versionRaceRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_version_race_retries_total",
			Help: "Version number assignments retried after losing a race",
		},
	)

	saveResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_saves_total",
			Help: "Save attempts by result",
		},
		[]string{"result"},
	)

	conflictsDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_conflicts_detected_total",
			Help: "Conflict checks that found conflicting fields",
		},
	)

	versionsPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_versions_pruned_total",
			Help: "Versions deleted by retention cleanup",
		},
	)
)
