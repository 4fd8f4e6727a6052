package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "courtside"

// Update results recorded by RecordUpdate.
const (
	ResultOK           = "ok"
	ResultInvalid      = "invalid"
	ResultPersistError = "persist_error"
)

// Recorder collects broadcaster metrics on its own registry. A nil Recorder
// is valid and records nothing.
type Recorder struct {
	registry       *prometheus.Registry
	subscribers    *prometheus.GaugeVec
	broadcasts     *prometheus.CounterVec
	dropped        prometheus.Counter
	updates        *prometheus.CounterVec
	persistErrors  prometheus.Counter
	externalReload prometheus.Counter
}

// NewRecorder creates a new Recorder with Go and process collectors attached
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Connected display subscribers by transport.",
		}, []string{"transport"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Snapshots fanned out to subscribers, by trigger.",
		}, []string{"trigger"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers disconnected because their send buffer was full.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Admin updates received, by result.",
		}, []string{"result"}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed writes of the match state to storage.",
		}),
		externalReload: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_reloads_total",
			Help:      "Reloads triggered by another process writing the state.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.subscribers,
		r.broadcasts,
		r.dropped,
		r.updates,
		r.persistErrors,
		r.externalReload,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) SetSubscribers(transport string, n int) {
	if r == nil {
		return
	}
	r.subscribers.WithLabelValues(transport).Set(float64(n))
}

func (r *Recorder) RecordBroadcast(trigger string) {
	if r == nil {
		return
	}
	r.broadcasts.WithLabelValues(trigger).Inc()
}

func (r *Recorder) RecordDropped() {
	if r == nil {
		return
	}
	r.dropped.Inc()
}

func (r *Recorder) RecordUpdate(result string) {
	if r == nil {
		return
	}
	r.updates.WithLabelValues(result).Inc()
	if result == ResultPersistError {
		r.persistErrors.Inc()
	}
}

func (r *Recorder) RecordExternalReload() {
	if r == nil {
		return
	}
	r.externalReload.Inc()
}
