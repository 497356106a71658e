package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesEnqueuedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "messages_enqueued_total",
			Help:      "Total messages enqueued per channel.",
		},
		[]string{"channel", "template_key"},
	)

	enqueueErrorsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "enqueue_errors_total",
			Help:      "Total per-channel enqueue errors.",
		},
		[]string{"channel", "reason"}, // reason: "render", "recipient", "storage"
	)

	messagesProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "queue_messages_processed_total",
			Help:      "Total queue messages processed.",
		},
		[]string{"channel", "status"}, // status: "sent", "retry_scheduled", "failed", "skipped"
	)

	messageProcessingDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "messaging",
			Name:      "queue_message_processing_duration_seconds",
			Help:      "Duration of per-message queue processing.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	providerRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "messaging",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of provider delivery calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	housekeepingRowsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "housekeeping_rows_total",
			Help:      "Rows archived and purged by housekeeping.",
		},
		[]string{"operation"}, // "archive", "purge"
	)
)
