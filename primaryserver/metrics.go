package primaryserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry        *prometheus.Registry
	jobsQueued      prometheus.Counter
	jobsDropped     prometheus.Counter
	resultsReceived *prometheus.CounterVec
}

// newMetrics registers the server's collectors on a private registry so
// several servers can coexist in one process.
func newMetrics(queueLength func() float64) *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "analysis_queue_length",
		Help: "Jobs waiting for a worker.",
	}, queueLength)

	return &metrics{
		registry: reg,
		jobsQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "analysis_jobs_queued_total",
			Help: "Jobs accepted into the queue.",
		}),
		jobsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "analysis_jobs_dropped_total",
			Help: "Jobs rejected because the queue was full.",
		}),
		resultsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_results_received_total",
			Help: "Results submitted by workers.",
		}, []string{"outcome"}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
