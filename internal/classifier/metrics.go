package classifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var apiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "gidrec_classifier_api_duration_sec",
	Help:    "Duration of content classifier API calls",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
}, []string{"op"})

var apiCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gidrec_classifier_api_count",
	Help: "Number of content classifier API calls, by operation and result",
}, []string{"op", "result"})
