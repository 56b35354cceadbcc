package services

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Marketen/duties-traffic-generator/internal/metrics"
)

// GeneratorMetrics is shared by every generator of one process; series are
// labelled by engine name where it matters.
type GeneratorMetrics struct {
	Messages    *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	QueueDepth  *prometheus.GaugeVec
	Ticks       *prometheus.CounterVec
	LateTicks   prometheus.Counter
	BatchTiming prometheus.Histogram
	CurrentSlot prometheus.Gauge
}

func NewGeneratorMetrics() *GeneratorMetrics {
	return &GeneratorMetrics{
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "generator",
			Name:      "messages",
			Help:      "Number of generated messages.",
		}, []string{"kind"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "generator",
			Name:      "dropped",
			Help:      "Number of messages dropped because the queue was full.",
		}, []string{"engine"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "generator",
			Name:      "queueDepth",
			Help:      "Messages waiting to be consumed.",
		}, []string{"engine"}),
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "generator",
			Name:      "ticks",
			Help:      "Number of observed ticks.",
		}, []string{"phase"}),
		LateTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "generator",
			Name:      "lateTicks",
			Help:      "Number of ticks observed after their instant because the queue was still draining.",
		}),
		BatchTiming: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "generator",
			Name:      "batchTiming",
			Help:      "Duration of assignment computation per tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		CurrentSlot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "generator",
			Name:      "slot",
			Help:      "Last slot a batch was generated for.",
		}),
	}
}

func (gm *GeneratorMetrics) AttachMetrics(m *metrics.Metrics) error {
	for _, c := range []prometheus.Collector{gm.Messages, gm.Dropped, gm.QueueDepth, gm.Ticks, gm.LateTicks, gm.BatchTiming, gm.CurrentSlot} {
		if err := m.Register(c); err != nil {
			return err
		}
	}
	return nil
}

type EmitterMetrics struct {
	Published     *prometheus.CounterVec
	PublishErrors *prometheus.CounterVec
	PayloadSize   *prometheus.HistogramVec
	PublishTiming prometheus.Histogram
	Pending       prometheus.Gauge
}

func NewEmitterMetrics() *EmitterMetrics {
	return &EmitterMetrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "emitter",
			Name:      "published",
			Help:      "Number of published messages.",
		}, []string{"kind"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "emitter",
			Name:      "publishErrors",
			Help:      "Number of failed payload syntheses or publishes.",
		}, []string{"kind"}),
		PayloadSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "emitter",
			Name:      "payloadSize",
			Help:      "Size of published payloads in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 10),
		}, []string{"kind"}),
		PublishTiming: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "emitter",
			Name:      "publishTiming",
			Help:      "Duration of publishes.",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "emitter",
			Name:      "pending",
			Help:      "Publishes waiting for a worker.",
		}),
	}
}

func (em *EmitterMetrics) AttachMetrics(m *metrics.Metrics) error {
	for _, c := range []prometheus.Collector{em.Published, em.PublishErrors, em.PayloadSize, em.PublishTiming, em.Pending} {
		if err := m.Register(c); err != nil {
			return err
		}
	}
	return nil
}
