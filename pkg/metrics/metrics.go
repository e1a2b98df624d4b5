package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DocumentsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mdreader", Name: "documents_saved_total", Help: "Number of save requests by outcome."},
		[]string{"outcome"},
	)
	DocumentsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mdreader", Name: "documents_loaded_total", Help: "Number of load requests by outcome."},
		[]string{"outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mdreader", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mdreader", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	DocumentBytesSaved = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "mdreader", Name: "document_bytes_saved_total", Help: "Total content bytes committed to the document store."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(DocumentsSaved)
	reg.MustRegister(DocumentsLoaded)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(DocumentBytesSaved)
}
