package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pdfmarker", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pdfmarker", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// CommentOps counts comment API operations served by the reference API.
	CommentOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pdfmarker", Name: "comment_operations_total", Help: "Comment operations by op and outcome."},
		[]string{"op", "outcome"},
	)

	// StoreFetches counts annotation store fetches by result (remote, shared, error).
	StoreFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pdfmarker", Subsystem: "store", Name: "fetches_total", Help: "Annotation store fetches by result."},
		[]string{"result"},
	)
	// StoreRollbacks counts optimistic inserts and resolves that were reverted.
	StoreRollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pdfmarker", Subsystem: "store", Name: "rollbacks_total", Help: "Optimistic store updates reverted after a remote failure."},
		[]string{"op"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(CommentOps)
	reg.MustRegister(StoreFetches)
	reg.MustRegister(StoreRollbacks)
}
