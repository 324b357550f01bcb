// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rockpool_metrics"

// InitializePrometheusMetrics swaps the prometheus backend in. Calling it
// again is a no-op, there is no way back to the no-op backend.
func InitializePrometheusMetrics() {
	if _, ok := impl.(*promBackend); ok {
		return
	}
	impl = &promBackend{meters: make(map[string]any)}
	registerIOCollector()
}

// promBackend keeps one meter per kind and name, so two call sites
// declaring the same metric share the registered collector instead of
// tripping over a duplicate registration.
type promBackend struct {
	mu     sync.Mutex
	meters map[string]any
}

func (b *promBackend) meter(key string, create func() any) any {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.meters[key]; ok {
		return m
	}
	m := create()
	b.meters[key] = m
	return m
}

// register logs instead of failing, a daemon with one broken meter beats
// no daemon.
func register(c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		logger.Warn("unable to register metric", "err", err)
	}
}

func (b *promBackend) counterVec(name string, labels []string) CountVecMeter {
	return b.meter("counterVec/"+name, func() any {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
		}, labels)
		register(vec)
		return &promCounterVec{vec}
	}).(CountVecMeter)
}

func (b *promBackend) gauge(name string) GaugeMeter {
	return b.meter("gauge/"+name, func() any {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
		})
		register(gauge)
		return &promGauge{gauge}
	}).(GaugeMeter)
}

func (b *promBackend) gaugeVec(name string, labels []string) GaugeVecMeter {
	return b.meter("gaugeVec/"+name, func() any {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
		}, labels)
		register(vec)
		return &promGaugeVec{vec}
	}).(GaugeVecMeter)
}

func (b *promBackend) histogramVec(name string, labels []string, buckets []int64) HistogramVecMeter {
	return b.meter("histogramVec/"+name, func() any {
		floats := make([]float64, 0, len(buckets))
		for _, bucket := range buckets {
			floats = append(floats, float64(bucket))
		}
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Buckets:   floats,
		}, labels)
		register(vec)
		return &promHistogramVec{vec}
	}).(HistogramVecMeter)
}

func (b *promBackend) handler() http.Handler {
	return promhttp.Handler()
}

type promCounterVec struct {
	vec *prometheus.CounterVec
}

func (c *promCounterVec) AddWithLabel(v int64, labels map[string]string) {
	c.vec.With(labels).Add(float64(v))
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (g *promGauge) Set(v int64) {
	g.gauge.Set(float64(v))
}

type promGaugeVec struct {
	vec *prometheus.GaugeVec
}

func (g *promGaugeVec) AddWithLabel(v int64, labels map[string]string) {
	g.vec.With(labels).Add(float64(v))
}

func (g *promGaugeVec) SetWithLabel(v int64, labels map[string]string) {
	g.vec.With(labels).Set(float64(v))
}

type promHistogramVec struct {
	vec *prometheus.HistogramVec
}

func (h *promHistogramVec) ObserveWithLabels(v int64, labels map[string]string) {
	h.vec.With(labels).Observe(float64(v))
}
