package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansIngested tracks scan submissions hitting POST /scans
	// status: created, auth_error, validation_error, db_error
	ScansIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rondin_scans_ingested_total",
		Help: "Total number of scan submissions processed by the ingestion endpoint",
	}, []string{"status"})

	// RequestDuration measures API latency per route
	// Use this to spot Postgres degradation before the guards notice it
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rondin_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// RondaReports counts coverage report generations
	// status: ok, config_missing, error
	RondaReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rondin_ronda_reports_total",
		Help: "Total number of round coverage reports generated",
	}, []string{"status"})

	// SitesMissed exposes the missed-site count of the most recent report
	// This is the primary alerting signal for an incomplete round
	SitesMissed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rondin_ronda_sites_missed",
		Help: "Number of sites without a qualifying scan in the last computed round window",
	})

	// ConfigReloads counts cache reloads after admin config updates
	ConfigReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rondin_config_reloads_total",
		Help: "Total number of configuration cache reloads",
	})

	// HealthStatus provides a binary 0/1 signal for the API's health
	// 1 = Healthy, 0 = Unhealthy (Postgres unreachable)
	HealthStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rondin_healthy",
		Help: "Current health status of the API (1 for healthy, 0 for unhealthy)",
	})
)
