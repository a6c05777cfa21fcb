// Package metrics exposes Prometheus counters for the upload and mirroring
// pipelines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsReceived counts accepted file arrivals, labeled by method.
	UploadsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keybot_uploads_received_total",
		Help: "Accepted file uploads.",
	}, []string{"method"})

	// UploadsRejected counts rejected uploads, labeled by reason.
	UploadsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keybot_uploads_rejected_total",
		Help: "Rejected file uploads.",
	}, []string{"reason"})

	// Dispatches counts batch dispatch attempts by outcome.
	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keybot_dispatches_total",
		Help: "Batch dispatches to destination channels.",
	}, []string{"outcome"})

	// PostsDeleted counts remote posts removed via per-item delete.
	PostsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keybot_posts_deleted_total",
		Help: "Posts deleted from destination channels.",
	})

	// Recaptions counts re-caption operations by outcome.
	Recaptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keybot_recaptions_total",
		Help: "Re-caption operations on posted batches.",
	}, []string{"outcome"})

	// Forwards counts channel mirroring results by slot and outcome.
	Forwards = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keybot_forwards_total",
		Help: "Channel auto-forwarding results.",
	}, []string{"slot", "outcome"})
)

// Serve starts the /metrics listener on addr. It blocks; run in a goroutine.
// Empty addr disables the listener.
func Serve(addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
