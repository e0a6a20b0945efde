package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	placements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_placements_total",
			Help: "Order placements by terminal outcome",
		},
		[]string{"outcome"},
	)

	placementAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "order_placement_attempts_total",
			Help: "Pipeline attempts including conflict retries",
		},
	)

	// stage distinguishes a pre-commit stock failure from one re-detected
	// inside the transaction; callers see the same error either way.
	insufficientStock = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_insufficient_stock_total",
			Help: "Insufficient-stock failures by detection stage",
		},
		[]string{"stage"},
	)
)
