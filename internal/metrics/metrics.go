// Package metrics exposes the prometheus collectors shared across the
// engine, the ingestion pipeline, and the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ExecutionsTotal counts finished executions by terminal status.
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstack_executions_total",
			Help: "Total number of workflow executions by terminal status",
		},
		[]string{"status"},
	)

	// ExecutionDuration observes end-to-end run duration.
	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "flowstack_execution_duration_seconds",
			Help: "Duration of workflow executions",
		},
		[]string{"status"},
	)

	// NodeDuration observes per-node evaluation time by node kind.
	NodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "flowstack_node_duration_seconds",
			Help: "Duration of individual node evaluations",
		},
		[]string{"kind", "outcome"},
	)

	// DocumentsIngested counts document ingestion outcomes.
	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstack_documents_ingested_total",
			Help: "Total number of document ingestion attempts by outcome",
		},
		[]string{"outcome"},
	)

	// HTTPRequests counts API requests by route and status class.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstack_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"route", "code"},
	)
)

func init() {
	prometheus.MustRegister(
		ExecutionsTotal,
		ExecutionDuration,
		NodeDuration,
		DocumentsIngested,
		HTTPRequests,
	)
}
