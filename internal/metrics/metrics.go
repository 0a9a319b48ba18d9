package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auditexport/internal/contentstore"
	"auditexport/internal/services"
)

const namespace = "auditexport"

// Metrics holds the exporter's collectors.
type Metrics struct {
	registry *prometheus.Registry

	calls        *prometheus.CounterVec
	callDuration prometheus.Histogram
	media        *prometheus.CounterVec
	mediaBytes   *prometheus.CounterVec
	batches      prometheus.Counter
	quotaWait    prometheus.Counter
	quotaUsed    prometheus.Gauge
	quotaLimit   prometheus.Gauge
	outstanding  prometheus.Gauge
	missingIDs   prometheus.Gauge
}

// New registers the exporter's collectors on a fresh registry, together with
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Record fetch calls by outcome.",
		}, []string{"outcome"}),
		callDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Latency of record fetch calls, including assembly and persistence on success.",
			Buckets:   prometheus.DefBuckets,
		}),
		media: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_downloads_total",
			Help:      "Media downloads by kind and result.",
		}, []string{"kind", "result"}),
		mediaBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_bytes_total",
			Help:      "Bytes of media written to the content store.",
		}, []string{"kind"}),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Completed dispatch batches.",
		}),
		quotaWait: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_wait_seconds_total",
			Help:      "Time spent waiting for the next quota window.",
		}),
		quotaUsed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_window_used",
			Help:      "Calls recorded in the current quota window.",
		}),
		quotaLimit: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_window_limit",
			Help:      "Calls allowed per quota window.",
		}),
		outstanding: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_outstanding",
			Help:      "Reserved calls not yet completed.",
		}),
		missingIDs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missing_ids",
			Help:      "Record ids in the 404 cache.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// CallCompleted counts one record fetch call.
func (m *Metrics) CallCompleted(outcome string, elapsed time.Duration) {
	m.calls.WithLabelValues(outcome).Inc()
	m.callDuration.Observe(elapsed.Seconds())
}

// BatchCompleted counts a drained batch.
func (m *Metrics) BatchCompleted() {
	m.batches.Inc()
}

// QuotaState publishes the scheduler counters.
func (m *Metrics) QuotaState(used, outstanding, limit int) {
	m.quotaUsed.Set(float64(used))
	m.outstanding.Set(float64(outstanding))
	m.quotaLimit.Set(float64(limit))
}

// QuotaWaited adds time spent blocked on the quota window.
func (m *Metrics) QuotaWaited(d time.Duration) {
	if d > 0 {
		m.quotaWait.Add(d.Seconds())
	}
}

// MissingIDs publishes the size of the 404 cache.
func (m *Metrics) MissingIDs(n int) {
	m.missingIDs.Set(float64(n))
}

// MediaFetched counts one media download attempt.
func (m *Metrics) MediaFetched(kind contentstore.MediaKind, bytes int64, err error) {
	m.media.WithLabelValues(string(kind), mediaResult(err)).Inc()
	if bytes > 0 {
		m.mediaBytes.WithLabelValues(string(kind)).Add(float64(bytes))
	}
}

func mediaResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, services.ErrStorage):
		return "storage_error"
	default:
		return "unavailable"
	}
}
