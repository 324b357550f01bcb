// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package metrics instruments the daemon. Meters are declared package wide
// through the LazyLoad constructors and stay no-ops until the command line
// switches the prometheus backend on, so importing a metered package costs
// nothing when metrics are off.
package metrics

import (
	"net/http"
	"sync"

	"github.com/rockpool-labs/rockpool/log"
)

var logger = log.WithContext("pkg", "metrics")

// impl is the active backend. It starts as the no-op one and is swapped
// exactly once by InitializePrometheusMetrics.
var impl backend = noop{}

// backend mints the concrete meters.
type backend interface {
	counterVec(name string, labels []string) CountVecMeter
	gauge(name string) GaugeMeter
	gaugeVec(name string, labels []string) GaugeVecMeter
	histogramVec(name string, labels []string, buckets []int64) HistogramVecMeter
	handler() http.Handler
}

// HTTPHandler returns the exposition endpoint of the active backend.
func HTTPHandler() http.Handler {
	return impl.handler()
}

// Histogram bucket presets, in milliseconds.
var (
	Bucket10s      = []int64{0, 500, 1000, 2000, 3000, 4000, 5000, 7500, 10_000}
	BucketHTTPReqs = []int64{
		0, 1, 2, 5, 10, 20, 30, 50, 75, 100,
		150, 200, 300, 400, 500, 750, 1000,
		1500, 2000, 3000, 4000, 5000, 10000,
	}
)

// CountVecMeter counts monotonically, partitioned by labels.
type CountVecMeter interface {
	AddWithLabel(int64, map[string]string)
}

// GaugeMeter holds one value that moves both ways.
type GaugeMeter interface {
	Set(int64)
}

// GaugeVecMeter holds label-partitioned values that move both ways.
type GaugeVecMeter interface {
	AddWithLabel(int64, map[string]string)
	SetWithLabel(int64, map[string]string)
}

// HistogramVecMeter aggregates observations into label-partitioned buckets.
type HistogramVecMeter interface {
	ObserveWithLabels(int64, map[string]string)
}

// LazyLoad defers creating a meter to its first use. Declaring meters as
// package vars would otherwise pin them to whichever backend is active at
// import time.
func LazyLoad[T any](create func() T) func() T {
	var (
		once  sync.Once
		meter T
	)
	return func() T {
		once.Do(func() { meter = create() })
		return meter
	}
}

func LazyLoadCounterVec(name string, labels []string) func() CountVecMeter {
	return LazyLoad(func() CountVecMeter { return impl.counterVec(name, labels) })
}

func LazyLoadGauge(name string) func() GaugeMeter {
	return LazyLoad(func() GaugeMeter { return impl.gauge(name) })
}

func LazyLoadGaugeVec(name string, labels []string) func() GaugeVecMeter {
	return LazyLoad(func() GaugeVecMeter { return impl.gaugeVec(name, labels) })
}

func LazyLoadHistogramVec(name string, labels []string, buckets []int64) func() HistogramVecMeter {
	return LazyLoad(func() HistogramVecMeter { return impl.histogramVec(name, labels, buckets) })
}

// noop is the backend serving disabled metrics.
type noop struct{}

func (noop) counterVec(string, []string) CountVecMeter { return noopMeter{} }
func (noop) gauge(string) GaugeMeter                   { return noopMeter{} }
func (noop) gaugeVec(string, []string) GaugeVecMeter   { return noopMeter{} }
func (noop) histogramVec(string, []string, []int64) HistogramVecMeter {
	return noopMeter{}
}
func (noop) handler() http.Handler { return http.NotFoundHandler() }

type noopMeter struct{}

func (noopMeter) AddWithLabel(int64, map[string]string)      {}
func (noopMeter) Set(int64)                                  {}
func (noopMeter) SetWithLabel(int64, map[string]string)      {}
func (noopMeter) ObserveWithLabels(int64, map[string]string) {}
