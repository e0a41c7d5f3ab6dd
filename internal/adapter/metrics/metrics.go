package metrics

import (
	"strconv"
	"time"

	"civic-document-service/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "civic_documents"

// Collector implements ports.MetricsRecorder with Prometheus collectors.
type Collector struct {
	ArtifactsRequested   *prometheus.CounterVec
	ArtifactTransitions  *prometheus.CounterVec
	PaymentsSettled      *prometheus.CounterVec
	Verifications        *prometheus.CounterVec
	RemoteLookupFailures prometheus.Counter
	StoreWrites          *prometheus.CounterVec
	StoreCorruptions     *prometheus.CounterVec
	Published            prometheus.Counter
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		ArtifactsRequested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_requested_total",
			Help:      "Artifacts requested by kind.",
		}, []string{"kind"}),

		ArtifactTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_transitions_total",
			Help:      "Lifecycle transitions by kind and target state.",
		}, []string{"kind", "to"}),

		PaymentsSettled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_settled_total",
			Help:      "Payment callbacks applied by method and status.",
		}, []string{"method", "status"}),

		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Verification verdicts by reason.",
		}, []string{"reason"}),

		RemoteLookupFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_lookup_failures_total",
			Help:      "Authoritative index lookups that failed or timed out.",
		}),

		StoreWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "record_store",
			Name:      "writes_total",
			Help:      "Durable collection writes by collection and status.",
		}, []string{"collection", "status"}),

		StoreCorruptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "record_store",
			Name:      "corrupt_loads_total",
			Help:      "Collections discarded at load because they could not be decoded.",
		}, []string{"collection"}),

		Published: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_published_total",
			Help:      "Issued documents published to the authoritative index.",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (c *Collector) ArtifactRequested(kind domain.ArtifactKind) {
	c.ArtifactsRequested.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) ArtifactTransitioned(kind domain.ArtifactKind, to domain.ArtifactStatus) {
	c.ArtifactTransitions.WithLabelValues(string(kind), string(to)).Inc()
}

func (c *Collector) PaymentSettled(method domain.PaymentMethod, status domain.PaymentStatus) {
	c.PaymentsSettled.WithLabelValues(string(method), string(status)).Inc()
}

func (c *Collector) VerificationCompleted(reason domain.VerdictReason) {
	c.Verifications.WithLabelValues(string(reason)).Inc()
}

func (c *Collector) RemoteLookupFailed() {
	c.RemoteLookupFailures.Inc()
}

// StoreWrite records the outcome of one durable write.
func (c *Collector) StoreWrite(collection string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.StoreWrites.WithLabelValues(collection, status).Inc()
}

func (c *Collector) StoreCorrupt(collection string) {
	c.StoreCorruptions.WithLabelValues(collection).Inc()
}

func (c *Collector) DocumentsPublished(n int) {
	c.Published.Add(float64(n))
}

// ObserveHTTP records one served request. route is the matched pattern, not the raw path.
func (c *Collector) ObserveHTTP(method, route string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
