// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func TestNoopBackendByDefault(t *testing.T) {
	impl = noop{} // other tests may have switched the prometheus backend on

	meter := LazyLoadCounterVec("noop_count", []string{"x"})()
	require.IsType(t, noopMeter{}, meter)
	meter.AddWithLabel(1, map[string]string{"whatever": "label"})

	server := httptest.NewServer(HTTPHandler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLazyLoadDefersBackendChoice(t *testing.T) {
	impl = noop{}

	// declared while the no-op backend is active
	lazyCount := LazyLoadCounterVec("lazy_count", []string{"x"})
	lazyGauge := LazyLoadGauge("lazy_gauge")
	lazyGaugeVec := LazyLoadGaugeVec("lazy_gauge_vec", []string{"x"})
	lazyHist := LazyLoadHistogramVec("lazy_hist", []string{"x"}, nil)

	InitializePrometheusMetrics()

	require.IsType(t, &promCounterVec{}, lazyCount())
	require.IsType(t, &promGauge{}, lazyGauge())
	require.IsType(t, &promGaugeVec{}, lazyGaugeVec())
	require.IsType(t, &promHistogramVec{}, lazyHist())
}

func TestMetersSharedByName(t *testing.T) {
	InitializePrometheusMetrics()

	a := impl.counterVec("shared_count", []string{"x"})
	b := impl.counterVec("shared_count", []string{"x"})
	require.Same(t, a, b)
}

func TestPrometheusBackend(t *testing.T) {
	InitializePrometheusMetrics()

	counts := LazyLoadCounterVec("settle_total", []string{"outcome"})()
	counts.AddWithLabel(3, map[string]string{"outcome": "applied"})
	counts.AddWithLabel(1, map[string]string{"outcome": "failed"})

	gauge := LazyLoadGauge("head_epoch")()
	gauge.Set(42)
	gauge.Set(7)

	gaugeVec := LazyLoadGaugeVec("open_sockets", []string{"kind"})()
	gaugeVec.AddWithLabel(2, map[string]string{"kind": "events"})
	gaugeVec.SetWithLabel(5, map[string]string{"kind": "ops"})

	hist := LazyLoadHistogramVec("op_ms", []string{"op"}, Bucket10s)()
	hist.ObserveWithLabels(400, map[string]string{"op": "deposit"})
	hist.ObserveWithLabels(600, map[string]string{"op": "deposit"})

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	byName := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	counter := byName["rockpool_metrics_settle_total"]
	require.NotNil(t, counter)
	var total float64
	for _, m := range counter.Metric {
		total += m.GetCounter().GetValue()
	}
	require.Equal(t, float64(4), total)

	require.Equal(t, float64(7), byName["rockpool_metrics_head_epoch"].Metric[0].GetGauge().GetValue())

	sockets := byName["rockpool_metrics_open_sockets"]
	require.NotNil(t, sockets)
	var socketSum float64
	for _, m := range sockets.Metric {
		socketSum += m.GetGauge().GetValue()
	}
	require.Equal(t, float64(7), socketSum)

	histogram := byName["rockpool_metrics_op_ms"].Metric[0].GetHistogram()
	require.Equal(t, uint64(2), histogram.GetSampleCount())
	require.Equal(t, float64(1000), histogram.GetSampleSum())
}
