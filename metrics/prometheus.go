// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openblockperf/blockperf/log"
)

const namespace = "blockperf"

var logger = log.WithContext("pkg", "metrics")

// InitializePrometheus switches the global metrics service to a
// Prometheus-backed implementation. Re-initialization is a no-op.
func InitializePrometheus() {
	if _, ok := service.(*promMetrics); ok {
		return
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	service = &promMetrics{registry: registry}
}

type promMetrics struct {
	registry *prometheus.Registry

	counters    sync.Map
	counterVecs sync.Map
	gauges      sync.Map
	gaugeVecs   sync.Map
	histograms  sync.Map
}

func (p *promMetrics) GetOrCreateCounter(name string) CounterMeter {
	if m, ok := p.counters.Load(name); ok {
		return m.(CounterMeter)
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name})
	if err := p.registry.Register(c); err != nil {
		logger.Warn("unable to register counter", "name", name, "err", err)
	}
	meter := &promCounter{c}
	p.counters.Store(name, meter)
	return meter
}

func (p *promMetrics) GetOrCreateCounterVec(name string, labels []string) CounterVecMeter {
	if m, ok := p.counterVecs.Load(name); ok {
		return m.(CounterVecMeter)
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name}, labels)
	if err := p.registry.Register(c); err != nil {
		logger.Warn("unable to register counter vec", "name", name, "err", err)
	}
	meter := &promCounterVec{c}
	p.counterVecs.Store(name, meter)
	return meter
}

func (p *promMetrics) GetOrCreateGauge(name string) GaugeMeter {
	if m, ok := p.gauges.Load(name); ok {
		return m.(GaugeMeter)
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name})
	if err := p.registry.Register(g); err != nil {
		logger.Warn("unable to register gauge", "name", name, "err", err)
	}
	meter := &promGauge{g}
	p.gauges.Store(name, meter)
	return meter
}

func (p *promMetrics) GetOrCreateGaugeVec(name string, labels []string) GaugeVecMeter {
	if m, ok := p.gaugeVecs.Load(name); ok {
		return m.(GaugeVecMeter)
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name}, labels)
	if err := p.registry.Register(g); err != nil {
		logger.Warn("unable to register gauge vec", "name", name, "err", err)
	}
	meter := &promGaugeVec{g}
	p.gaugeVecs.Store(name, meter)
	return meter
}

func (p *promMetrics) GetOrCreateHistogram(name string, buckets []float64) HistogramMeter {
	if m, ok := p.histograms.Load(name); ok {
		return m.(HistogramMeter)
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Buckets:   buckets,
	})
	if err := p.registry.Register(h); err != nil {
		logger.Warn("unable to register histogram", "name", name, "err", err)
	}
	meter := &promHistogram{h}
	p.histograms.Store(name, meter)
	return meter
}

func (p *promMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

type promCounter struct {
	c prometheus.Counter
}

func (m *promCounter) Add(v int64) { m.c.Add(float64(v)) }

type promCounterVec struct {
	c *prometheus.CounterVec
}

func (m *promCounterVec) AddWithLabel(v int64, labels map[string]string) {
	m.c.With(labels).Add(float64(v))
}

type promGauge struct {
	g prometheus.Gauge
}

func (m *promGauge) Add(v int64) { m.g.Add(float64(v)) }
func (m *promGauge) Set(v int64) { m.g.Set(float64(v)) }

type promGaugeVec struct {
	g *prometheus.GaugeVec
}

func (m *promGaugeVec) AddWithLabel(v int64, labels map[string]string) {
	m.g.With(labels).Add(float64(v))
}

func (m *promGaugeVec) SetWithLabel(v int64, labels map[string]string) {
	m.g.With(labels).Set(float64(v))
}

type promHistogram struct {
	h prometheus.Histogram
}

func (m *promHistogram) Observe(v float64) { m.h.Observe(v) }
