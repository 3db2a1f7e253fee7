// Package metrics defines the Prometheus instrumentation for mailferry.
// Collectors register on the default registry and are served by the health
// endpoint's /metrics handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts completed API operations by outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailferry_requests_total",
			Help: "Total number of mailbox API operations by outcome",
		},
		[]string{"outcome"},
	)

	// RequestRetriesTotal counts retries issued after transient failures.
	RequestRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailferry_request_retries_total",
			Help: "Total number of retried mailbox API requests",
		},
	)

	// BatchChunksTotal counts successful batch endpoint round trips.
	BatchChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailferry_batch_chunks_total",
			Help: "Total number of batch chunks sent to the batch endpoint",
		},
	)

	// MessagesFetchedTotal counts message documents decoded from batch
	// responses.
	MessagesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailferry_messages_fetched_total",
			Help: "Total number of message documents fetched",
		},
	)

	// MessagesStoredTotal counts messages handed to the sink.
	MessagesStoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailferry_messages_stored_total",
			Help: "Total number of messages written to the sink",
		},
	)

	// MessagesPrunedTotal counts messages removed by retention pruning.
	MessagesPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailferry_messages_pruned_total",
			Help: "Total number of messages pruned from the sink",
		},
	)

	// SyncRunsTotal counts sync passes by outcome.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailferry_sync_runs_total",
			Help: "Total number of sync passes by outcome",
		},
		[]string{"outcome"},
	)

	// SyncDuration observes wall-clock duration of whole sync passes.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailferry_sync_duration_seconds",
			Help:    "Duration of sync passes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// PagesListedTotal counts listing pages walked during sync passes.
	PagesListedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailferry_pages_listed_total",
			Help: "Total number of listing pages fetched",
		},
	)
)
