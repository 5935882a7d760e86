package prommetrics

import (
	"testing"

	"github.com/nsgate/nsgate/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateCounter_IsIdempotentAndAdds(t *testing.T) {
	factory := NewPrometheusFactory(prometheus.NewRegistry(), "nsgate_test")

	c1, err := factory.GetOrCreateCounter(metrics.SessionsTotal)
	require.NoError(t, err)
	c2, err := factory.GetOrCreateCounter(metrics.SessionsTotal)
	require.NoError(t, err)

	c1.Add(3)
	c2.Inc()

	counter := c1.(*promCounter).c
	var m dto.Metric
	require.NoError(t, counter.Write(&m))
	require.Equal(t, float64(4), m.GetCounter().GetValue())
}

func TestGetOrCreateGauge_SetAndAdjust(t *testing.T) {
	factory := NewPrometheusFactory(prometheus.NewRegistry(), "nsgate_test")

	g, err := factory.GetOrCreateGauge(metrics.SessionsActive)
	require.NoError(t, err)
	g.Set(5)
	g.Inc()
	g.Dec()
	g.Dec()

	gauge := g.(*promGauge).g
	var m dto.Metric
	require.NoError(t, gauge.Write(&m))
	require.Equal(t, float64(4), m.GetGauge().GetValue())
}

func TestGetOrCreateHistogram_Observes(t *testing.T) {
	factory := NewPrometheusFactory(prometheus.NewRegistry(), "nsgate_test")

	h, err := factory.GetOrCreateHistogram(metrics.ValidatorLatencySeconds, metrics.DefaultLatencyBuckets)
	require.NoError(t, err)
	h.Observe(0.01)

	histogram := h.(*promHistogram).h
	var m dto.Metric
	require.NoError(t, histogram.Write(&m))
	require.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}
