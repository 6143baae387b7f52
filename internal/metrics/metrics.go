// Package metrics exposes Prometheus instrumentation for the sync engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesSent counts messages whose record and summary were written.
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "friendzone_messages_sent_total",
		Help: "Messages appended to a chat log",
	})

	// SendFailures counts failed sends by stage: upload, append or summary.
	SendFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "friendzone_send_failures_total",
		Help: "Failed sends by the stage that failed",
	}, []string{"stage"})

	BlobUploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "friendzone_blob_upload_bytes_total",
		Help: "Bytes written to the blob store",
	})

	// Refreshes counts full refetches triggered by subscriptions, by kind:
	// messages or chatlist.
	Refreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "friendzone_refreshes_total",
		Help: "Subscription-driven refetches",
	}, []string{"kind"})

	// Sessions counts startOrResume outcomes: created or resumed.
	Sessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "friendzone_sessions_total",
		Help: "Chat sessions opened, by outcome",
	}, []string{"outcome"})

	SendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "friendzone_send_latency_seconds",
		Help:    "Time from send request to refetched log",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})
)

func init() {
	prometheus.MustRegister(
		MessagesSent,
		SendFailures,
		BlobUploadBytes,
		Refreshes,
		Sessions,
		SendLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
