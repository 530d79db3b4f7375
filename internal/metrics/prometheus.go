package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noodlehub_messages_published_total",
			Help: "Total number of messages published to the push stream",
		},
		[]string{"event"},
	)

	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "noodlehub_push_subscribers",
			Help: "Number of clients currently connected to the push stream",
		},
	)

	PublishRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noodlehub_publish_rejected_total",
			Help: "Total number of publish requests rejected before reaching the stream",
		},
		[]string{"reason"},
	)
)

var initOnce sync.Once

// Init registers metrics with Prometheus
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(MessagesPublished)
		prometheus.MustRegister(Subscribers)
		prometheus.MustRegister(PublishRejected)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
