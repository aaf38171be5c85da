package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClimateFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvesthorizon_climate_fetches_total",
			Help: "Total climate series requests by result source",
		},
		[]string{"source"}, // "cache", "live", "synthetic"
	)

	ClimateAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvesthorizon_power_api_calls_total",
			Help: "Total NASA POWER API calls",
		},
		[]string{"status"},
	)

	ClimateAPILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvesthorizon_power_api_latency_seconds",
			Help:    "NASA POWER API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ClimateBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvesthorizon_power_breaker_state",
			Help: "NASA POWER circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	HarvestsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvesthorizon_harvests_scored_total",
			Help: "Total harvests scored",
		},
		[]string{"scenario"},
	)

	HarvestYield = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvesthorizon_harvest_yield_percent",
			Help:    "Distribution of harvest yield percentages",
			Buckets: prometheus.LinearBuckets(0, 15, 11),
		},
	)

	BoardActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvesthorizon_board_actions_total",
			Help: "Total board game actions by kind",
		},
		[]string{"action"},
	)
)
