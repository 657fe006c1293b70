// pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvm_credcache_hits_total",
		Help: "Credential cache hits served without a broker call.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvm_credcache_misses_total",
		Help: "Credential cache misses that triggered or joined a vend.",
	})
	Vends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvm_vends_total",
		Help: "Broker vend operations started.",
	})
	VendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvm_vend_failures_total",
		Help: "Broker vend operations that failed.",
	})
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvm_http_requests_total",
		Help: "HTTP requests by method and status class.",
	}, []string{"method", "class"})
)
