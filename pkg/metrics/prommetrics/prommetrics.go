package prommetrics

import (
	"fmt"
	"sync"

	"github.com/nsgate/nsgate/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusFactory implements metrics.Factory over a
// prometheus.Registerer, the same collector-dedup shape as
// proxy/pkg/metrics/prommetrics.PrometheusMetricFactory, collapsed to
// drop the teacher's label-vector support - this gateway's metrics are
// all process-wide scalars, not per-cluster or per-peer.
type PrometheusFactory struct {
	registerer prometheus.Registerer
	prefix     string

	lock       sync.Mutex
	registered map[string]prometheus.Collector
}

// NewPrometheusFactory wraps registerer, namespacing every collector's
// name with prefix.
func NewPrometheusFactory(registerer prometheus.Registerer, prefix string) *PrometheusFactory {
	return &PrometheusFactory{
		registerer: registerer,
		prefix:     prefix,
		registered: make(map[string]prometheus.Collector),
	}
}

func (f *PrometheusFactory) register(name string, newCollector func() prometheus.Collector) (prometheus.Collector, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if existing, ok := f.registered[name]; ok {
		return existing, nil
	}
	c := newCollector()
	if err := f.registerer.Register(c); err != nil {
		return nil, fmt.Errorf("could not register collector %s: %w", name, err)
	}
	f.registered[name] = c
	return c, nil
}

func (f *PrometheusFactory) GetOrCreateCounter(m metrics.Metric) (metrics.Counter, error) {
	c, err := f.register(m.Name, func() prometheus.Collector {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: f.prefix, Name: m.Name, Help: m.Description,
		})
	})
	if err != nil {
		return nil, err
	}
	counter, ok := c.(prometheus.Counter)
	if !ok {
		return nil, fmt.Errorf("collector %s was not registered as a counter", m.Name)
	}
	return &promCounter{counter}, nil
}

func (f *PrometheusFactory) GetOrCreateGauge(m metrics.Metric) (metrics.Gauge, error) {
	c, err := f.register(m.Name, func() prometheus.Collector {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: f.prefix, Name: m.Name, Help: m.Description,
		})
	})
	if err != nil {
		return nil, err
	}
	gauge, ok := c.(prometheus.Gauge)
	if !ok {
		return nil, fmt.Errorf("collector %s was not registered as a gauge", m.Name)
	}
	return &promGauge{gauge}, nil
}

func (f *PrometheusFactory) GetOrCreateHistogram(m metrics.Metric, buckets []float64) (metrics.Histogram, error) {
	c, err := f.register(m.Name, func() prometheus.Collector {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: f.prefix, Name: m.Name, Help: m.Description, Buckets: buckets,
		})
	})
	if err != nil {
		return nil, err
	}
	histogram, ok := c.(prometheus.Histogram)
	if !ok {
		return nil, fmt.Errorf("collector %s was not registered as a histogram", m.Name)
	}
	return &promHistogram{histogram}, nil
}

type promCounter struct{ c prometheus.Counter }

func (p *promCounter) Inc()          { p.c.Inc() }
func (p *promCounter) Add(delta int) { p.c.Add(float64(delta)) }

type promGauge struct{ g prometheus.Gauge }

func (p *promGauge) Inc()              { p.g.Inc() }
func (p *promGauge) Dec()              { p.g.Dec() }
func (p *promGauge) Set(value float64) { p.g.Set(value) }

type promHistogram struct{ h prometheus.Histogram }

func (p *promHistogram) Observe(seconds float64) { p.h.Observe(seconds) }
