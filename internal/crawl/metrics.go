package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalFetchAttempts counts every fetch attempt, retries included.
	TotalFetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_fetch_attempts_total",
		Help: "Total number of fetch attempts, including retries.",
	})

	// TotalRetries counts attempts beyond the first for any operation.
	TotalRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_retries_total",
		Help: "Total number of retry attempts.",
	})

	// TotalBlockSignals counts responses classified as block or challenge
	// pages.
	TotalBlockSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_block_signals_total",
		Help: "Total number of block or challenge responses detected.",
	})

	// TotalRotations counts successful identity rotations.
	TotalRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_identity_rotations_total",
		Help: "Total number of successful identity rotations.",
	})

	// TotalRotationFailures counts rotation requests the control channel
	// rejected.
	TotalRotationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_identity_rotation_failures_total",
		Help: "Total number of failed identity rotation requests.",
	})

	// PagesScanned counts listing pages fetched during the scan phase.
	PagesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_listing_pages_scanned_total",
		Help: "Total number of listing pages scanned.",
	})

	// ItemsProcessed counts terminal item outcomes by result.
	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_items_processed_total",
		Help: "Total number of items processed, by result.",
	}, []string{"result"})
)

func observeItem(c Classification) {
	ItemsProcessed.WithLabelValues(string(c)).Inc()
}

func observeItemFailure() {
	ItemsProcessed.WithLabelValues("failed").Inc()
}
