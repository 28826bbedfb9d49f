package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for paged streams.
var (
	streamPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fireblocks_stream_pages_total",
		Help: "Pages delivered by paged streams",
	}, []string{"stream"})

	streamItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fireblocks_stream_items_total",
		Help: "Items contained in pages delivered by paged streams",
	}, []string{"stream"})

	streamFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fireblocks_stream_fetch_duration_seconds",
		Help:    "Duration of page fetches issued by paged streams",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"stream"})

	streamInflightFetches = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fireblocks_stream_inflight_fetches",
		Help: "Page fetches currently in flight",
	}, []string{"stream"})

	streamTerminationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fireblocks_stream_terminations_total",
		Help: "Paged streams that stopped, by reason",
	}, []string{"stream", "reason"})
)

// Termination reasons.
const (
	reasonExhausted  = "exhausted"
	reasonValidation = "validation_error"
	reasonFetch      = "fetch_error"
	reasonCursor     = "cursor_stalled"
	reasonClosed     = "closed"
)
