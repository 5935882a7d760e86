package metrics

// Counter is a monotonically increasing metric.
type Counter interface {
	Inc()
	Add(delta int)
}

// Gauge can move up and down.
type Gauge interface {
	Inc()
	Dec()
	Set(value float64)
}

// Histogram observes a distribution of durations.
type Histogram interface {
	Observe(seconds float64)
}

// Metric names one counter, gauge, or histogram. Description is used as
// the collector's help text.
type Metric struct {
	Name        string
	Description string
}

// Factory creates and registers the gateway's metrics. Implementations
// must be safe for concurrent use and idempotent: calling the same
// GetOrCreate* method twice with an equal Metric returns the same
// underlying collector rather than registering it twice, mirroring
// proxy/pkg/metrics/prommetrics's registerCollector dedup.
type Factory interface {
	GetOrCreateCounter(m Metric) (Counter, error)
	GetOrCreateGauge(m Metric) (Gauge, error)
	GetOrCreateHistogram(m Metric, buckets []float64) (Histogram, error)
}

// The fixed set of metrics this gateway exposes, one per ambient
// concern named in SPEC_FULL.md §2.
var (
	SessionsActive = Metric{Name: "sessions_active", Description: "Number of client sessions currently open."}
	SessionsTotal  = Metric{Name: "sessions_total", Description: "Total number of client sessions accepted."}

	RequestsTotal     = Metric{Name: "requests_total", Description: "Total number of request packets forwarded to upstream."}
	RequestErrorTotal = Metric{Name: "request_errors_total", Description: "Total number of requests that failed rewriting or validation, plus responses that failed rewriting."}

	RowsFilteredTotal = Metric{Name: "rows_filtered_total", Description: "Total number of rows dropped by the row filter."}

	ValidatorLatencySeconds = Metric{Name: "validator_latency_seconds", Description: "Latency of calls to the token validator."}
)

// DefaultLatencyBuckets are seconds buckets appropriate for a local
// token-store round trip, far tighter than the teacher's cross-cluster
// buckets since the validator adapter talks to one backing store.
var DefaultLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
