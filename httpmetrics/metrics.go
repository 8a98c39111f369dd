// Package httpmetrics exposes Prometheus instrumentation for the
// parser/serializer pools, Content-Encoding filters, and connection
// lifecycle. Metrics is constructed explicitly against a
// prometheus.Registerer rather than registered as package-level
// globals so a process can run more than one instrumented engine, and
// tests can register against a scratch registry instead of colliding
// on the default one.
package httpmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector emitted by an instrumented engine.
// Pool hit rate is derived at query time as (gets-misses)/gets rather
// than tracked as its own counter, since a miss is already known
// precisely at the point the underlying sync.Pool's New func runs.
type Metrics struct {
	ParserPoolGets   *prometheus.CounterVec
	ParserPoolPuts   *prometheus.CounterVec
	ParserPoolMisses *prometheus.CounterVec

	SerializerPoolGets   *prometheus.CounterVec
	SerializerPoolPuts   *prometheus.CounterVec
	SerializerPoolMisses *prometheus.CounterVec

	FilterBytesIn  *prometheus.CounterVec
	FilterBytesOut *prometheus.CounterVec
	FilterErrors   *prometheus.CounterVec

	ConnectionsOpened prometheus.Counter
	ConnectionsClosed prometheus.Counter
	ConnectionsActive prometheus.Gauge
	RequestsTotal     prometheus.Counter
	BodyTooLargeTotal prometheus.Counter
}

// New registers and returns the full collector set against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		ParserPoolGets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpengine",
			Subsystem: "parser_pool",
			Name:      "gets_total",
			Help:      "Total number of Parser Get operations.",
		}, []string{"strategy"}),
		ParserPoolPuts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpengine",
			Subsystem: "parser_pool",
			Name:      "puts_total",
			Help:      "Total number of Parser Put operations.",
		}, []string{"strategy"}),
		ParserPoolMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpengine",
			Subsystem: "parser_pool",
			Name:      "misses_total",
			Help:      "Total number of Parser Get calls that allocated a new Parser.",
		}, []string{"strategy"}),

		SerializerPoolGets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpengine",
			Subsystem: "serializer_pool",
			Name:      "gets_total",
			Help:      "Total number of Serializer Get operations.",
		}, []string{"strategy"}),
		SerializerPoolPuts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpengine",
			Subsystem: "serializer_pool",
			Name:      "puts_total",
			Help:      "Total number of Serializer Put operations.",
		}, []string{"strategy"}),
		SerializerPoolMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpengine",
			Subsystem: "serializer_pool",
			Name:      "misses_total",
			Help:      "Total number of Serializer Get calls that allocated a new Serializer.",
		}, []string{"strategy"}),

		FilterBytesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpengine",
			Subsystem: "filter",
			Name:      "bytes_in_total",
			Help:      "Total raw bytes fed into a Content-Encoding filter.",
		}, []string{"coding", "direction"}),
		FilterBytesOut: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpengine",
			Subsystem: "filter",
			Name:      "bytes_out_total",
			Help:      "Total bytes produced by a Content-Encoding filter.",
		}, []string{"coding", "direction"}),
		FilterErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpengine",
			Subsystem: "filter",
			Name:      "errors_total",
			Help:      "Total Content-Encoding filter failures.",
		}, []string{"coding", "direction"}),

		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "httpengine",
			Subsystem: "connection",
			Name:      "active",
			Help:      "Number of connections currently being served.",
		}),
		RequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "httpengine",
			Subsystem: "connection",
			Name:      "requests_total",
			Help:      "Total number of requests served across all connections.",
		}),
		BodyTooLargeTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "httpengine",
			Subsystem: "parser",
			Name:      "body_too_large_total",
			Help:      "Total number of messages rejected for exceeding the configured body limit.",
		}),
	}

	m.ConnectionsOpened = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "httpengine",
		Subsystem: "connection",
		Name:      "opened_total",
		Help:      "Total number of connections accepted.",
	})
	m.ConnectionsClosed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "httpengine",
		Subsystem: "connection",
		Name:      "closed_total",
		Help:      "Total number of connections closed.",
	})

	return m
}

// ObserveFilter records one Filter.Process call's input/output byte
// counts, and an error if Process failed, under the given coding
// ("gzip", "deflate", "br") and direction ("encode" or "decode").
func (m *Metrics) ObserveFilter(coding, direction string, inBytes, outBytes int, err error) {
	if inBytes > 0 {
		m.FilterBytesIn.WithLabelValues(coding, direction).Add(float64(inBytes))
	}
	if outBytes > 0 {
		m.FilterBytesOut.WithLabelValues(coding, direction).Add(float64(outBytes))
	}
	if err != nil {
		m.FilterErrors.WithLabelValues(coding, direction).Inc()
	}
}
