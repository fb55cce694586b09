// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package metrics provides global access to a set of meters. It wraps a
// real Prometheus implementation and defaults to a no-op one, so library
// packages can record measurements unconditionally.
package metrics

import "net/http"

var service Metrics = noop{}

// Metrics is the interface meter factories implement.
type Metrics interface {
	GetOrCreateCounter(name string) CounterMeter
	GetOrCreateCounterVec(name string, labels []string) CounterVecMeter
	GetOrCreateGauge(name string) GaugeMeter
	GetOrCreateGaugeVec(name string, labels []string) GaugeVecMeter
	GetOrCreateHistogram(name string, buckets []float64) HistogramMeter
	Handler() http.Handler
}

// CounterMeter is a monotonically increasing counter.
type CounterMeter interface {
	Add(int64)
}

// CounterVecMeter is a counter with labels.
type CounterVecMeter interface {
	AddWithLabel(int64, map[string]string)
}

// GaugeMeter is a value that can go up and down.
type GaugeMeter interface {
	Add(int64)
	Set(int64)
}

// GaugeVecMeter is a gauge with labels.
type GaugeVecMeter interface {
	AddWithLabel(int64, map[string]string)
	SetWithLabel(int64, map[string]string)
}

// HistogramMeter aggregates observations into buckets.
type HistogramMeter interface {
	Observe(float64)
}

// BucketsMillis suits request / submit latencies.
var BucketsMillis = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10_000, 30_000}

func Counter(name string) CounterMeter { return service.GetOrCreateCounter(name) }

func CounterVec(name string, labels []string) CounterVecMeter {
	return service.GetOrCreateCounterVec(name, labels)
}

func Gauge(name string) GaugeMeter { return service.GetOrCreateGauge(name) }

func GaugeVec(name string, labels []string) GaugeVecMeter {
	return service.GetOrCreateGaugeVec(name, labels)
}

func Histogram(name string, buckets []float64) HistogramMeter {
	return service.GetOrCreateHistogram(name, buckets)
}

// HTTPHandler returns the handler serving the metrics endpoint; nil until a
// real implementation is initialized.
func HTTPHandler() http.Handler { return service.Handler() }

type noop struct{}

type noopMeter struct{}

func (noop) GetOrCreateCounter(string) CounterMeter                    { return noopMeter{} }
func (noop) GetOrCreateCounterVec(string, []string) CounterVecMeter   { return noopMeter{} }
func (noop) GetOrCreateGauge(string) GaugeMeter                       { return noopMeter{} }
func (noop) GetOrCreateGaugeVec(string, []string) GaugeVecMeter       { return noopMeter{} }
func (noop) GetOrCreateHistogram(string, []float64) HistogramMeter    { return noopMeter{} }
func (noop) Handler() http.Handler                                    { return nil }

func (noopMeter) Add(int64)                              {}
func (noopMeter) Set(int64)                              {}
func (noopMeter) AddWithLabel(int64, map[string]string)  {}
func (noopMeter) SetWithLabel(int64, map[string]string)  {}
func (noopMeter) Observe(float64)                        {}
