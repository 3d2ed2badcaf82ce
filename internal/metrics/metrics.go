// Package metrics exposes Prometheus collectors for client operations.
//
// Collectors are registered on the default registry via promauto; an
// application that embeds the client exposes them by mounting
// promhttp.Handler() wherever it serves metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts every request the client issued, labelled with
	// the operation name and the HTTP status it resolved to ("error" when
	// the exchange failed before a status was received).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buckets_requests_total",
			Help: "Total number of buckets API requests issued.",
		},
		[]string{"operation", "status"},
	)

	// RequestDuration observes wall-clock request latency per operation,
	// measured from request build to response-header receipt.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buckets_request_duration_seconds",
			Help:    "Latency of buckets API requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// TransferBytesTotal counts payload bytes moved through the object
	// transfer pipeline, labelled "upload" or "download".
	TransferBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buckets_transfer_bytes_total",
			Help: "Payload bytes uploaded to and downloaded from the service.",
		},
		[]string{"direction"},
	)

	// ListRecordsTotal counts records decoded from listing streams,
	// labelled with the record kind ("bucket" or "bucketobject").
	ListRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buckets_list_records_total",
			Help: "Records decoded from bucket and object listing streams.",
		},
		[]string{"kind"},
	)
)

// ObserveRequest records one completed request exchange. status is 0 when
// the exchange failed before the server produced a status line.
func ObserveRequest(operation string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	RequestsTotal.WithLabelValues(operation, label).Inc()
	RequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// AddTransferBytes accumulates payload bytes for one transfer direction.
func AddTransferBytes(direction string, n int64) {
	if n > 0 {
		TransferBytesTotal.WithLabelValues(direction).Add(float64(n))
	}
}
