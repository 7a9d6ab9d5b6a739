package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	factsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enerji_facts_upserted_total",
		Help: "Total number of fact rows written by upsert, by kind.",
	}, []string{"kind"})
	factsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enerji_facts_upsert_failures_total",
		Help: "Total number of fact batches rejected or rolled back, by kind.",
	}, []string{"kind"})
	forecastsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enerji_forecasts_recorded_total",
		Help: "Total number of forecast records created.",
	})
	forecastsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enerji_forecasts_resolved_total",
		Help: "Total number of forecast records resolved with an actual price.",
	})
	weeksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enerji_weeks_settled_total",
		Help: "Total number of weekly performance summaries written.",
	})
	ingestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "enerji_ingest_kind_duration_seconds",
		Help:    "Duration of one fact kind within an ingestion run.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"kind"})
)
