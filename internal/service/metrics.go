package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/stealthrocket/cloak/internal/bridge"
)

const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeTimeout  = "timeout"
	outcomeInvalid  = "invalid"
	outcomeRejected = "rejected"
)

type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     prometheus.Histogram
	inflight prometheus.Gauge
}

func newMetrics(engine *bridge.Engine) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cloak_requests_total",
				Help: "Number of executions by outcome.",
			},
			[]string{"outcome", "proxied"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cloak_request_duration_seconds",
				Help:    "Duration of executions on the engine.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
			},
			[]string{"proxied"},
		),
		size: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cloak_response_size_bytes",
				Help:    "Size of the response bodies of successful executions.",
				Buckets: prometheus.ExponentialBuckets(256, 4, 10),
			},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cloak_requests_in_flight",
				Help: "Number of executions running on the engine.",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.size,
		m.inflight,
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "cloak_live_request_contexts",
				Help: "Number of requests whose terminal event has not fired yet.",
			},
			func() float64 { return float64(engine.Stats().LiveContexts) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "cloak_live_upload_cursors",
				Help: "Number of request bodies the engine has not released.",
			},
			func() float64 { return float64(engine.Stats().LiveCursors) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "cloak_live_proxy_engines",
				Help: "Number of engines created for proxied executions.",
			},
			func() float64 { return float64(engine.Stats().LiveEngines) },
		),
	)
	return m
}
