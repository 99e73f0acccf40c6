// Package metrics exports decode progress as Prometheus metrics.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/fsnow/replay-decoder/pkg/decoder"
	"github.com/fsnow/replay-decoder/pkg/reader"
)

const (
	promNamespace = "replay"
	promSubsystem = "decoder"
)

// Collector implements decoder.Observer. One Collector may be shared by
// sessions running on different goroutines.
type Collector struct {
	chunks     *prometheus.CounterVec
	chunkBytes *prometheus.HistogramVec
	fields     *prometheus.CounterVec
	decodes    prometheus.Counter

	registryLookups   prometheus.Counter
	registryCacheHits prometheus.Counter
	registryNegHits   prometheus.Counter
	registryScans     prometheus.Counter
	registryResolved  prometheus.Counter
	registryFailed    prometheus.Counter
	lastGroups        prometheus.Gauge
}

var _ decoder.Observer = (*Collector)(nil)

// New registers the decoder metrics with reg
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Subsystem: promSubsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Collector{
		chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Subsystem: promSubsystem,
			Name:      "chunks_total",
			Help:      "Chunks processed, by chunk type and status.",
		}, []string{"type", "status"}),

		chunkBytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Subsystem: promSubsystem,
			Name:      "chunk_size_bytes",
			Help:      "Payload size of processed chunks.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		}, []string{"type"}),

		fields: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Subsystem: promSubsystem,
			Name:      "fields_total",
			Help:      "Framed fields processed, by field table class and outcome.",
		}, []string{"group", "outcome"}),

		decodes: counter("decodes_total", "Completed decode passes."),

		registryLookups:   counter("registry_lookups_total", "Group resolutions requested."),
		registryCacheHits: counter("registry_cache_hits_total", "Group resolutions answered from the positive cache."),
		registryNegHits:   counter("registry_negative_hits_total", "Group resolutions answered from the negative caches."),
		registryScans:     counter("registry_scans_total", "Group resolutions that scanned the registered groups."),
		registryResolved:  counter("registry_resolved_total", "Scans that found a group."),
		registryFailed:    counter("registry_failed_total", "Scans that found nothing."),

		lastGroups: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: promNamespace,
			Subsystem: promSubsystem,
			Name:      "last_decode_groups",
			Help:      "Export groups declared by the most recent decode.",
		}),
	}
}

// ChunkDone implements decoder.Observer
func (c *Collector) ChunkDone(t reader.ChunkType, size int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.chunks.WithLabelValues(t.String(), status).Inc()
	c.chunkBytes.WithLabelValues(t.String()).Observe(float64(size))
}

// FieldDone implements decoder.Observer
func (c *Collector) FieldDone(group string, outcome decoder.FieldOutcome) {
	if group == "" {
		group = "unresolved"
	}
	c.fields.WithLabelValues(group, outcome.String()).Inc()
}

// DecodeDone implements decoder.Observer
func (c *Collector) DecodeDone(stats decoder.Stats) {
	c.decodes.Inc()
	c.registryLookups.Add(float64(stats.Registry.Lookups))
	c.registryCacheHits.Add(float64(stats.Registry.CacheHits))
	c.registryNegHits.Add(float64(stats.Registry.NegativeHits))
	c.registryScans.Add(float64(stats.Registry.Scans))
	c.registryResolved.Add(float64(stats.Registry.Resolved))
	c.registryFailed.Add(float64(stats.Registry.Failed))
	c.lastGroups.Set(float64(stats.Groups))
}

// WriteText writes every metric family of g in the Prometheus text format
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
