package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Zereker/framer"
)

// Collector turns framer transfer events into Prometheus series. It
// implements framer.Observer.
type Collector struct {
	registry *prometheus.Registry

	connections      prometheus.Counter
	connectionErrors prometheus.Counter
	frames           prometheus.Counter
	payloadBytes     prometheus.Counter
	fillBytes        prometheus.Histogram
	framesPerConn    prometheus.Histogram
}

var _ framer.Observer = (*Collector)(nil)

// New creates a collector registered on its own registry. strategy is
// attached as a constant label.
func New(strategy string) *Collector {
	labels := prometheus.Labels{"strategy": strategy}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framer",
			Subsystem:   "server",
			Name:        "connections_total",
			Help:        "Connections accepted.",
			ConstLabels: labels,
		}),
		connectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framer",
			Subsystem:   "server",
			Name:        "connection_errors_total",
			Help:        "Connections aborted by an I/O error.",
			ConstLabels: labels,
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framer",
			Subsystem:   "server",
			Name:        "frames_total",
			Help:        "Frames fully received.",
			ConstLabels: labels,
		}),
		payloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framer",
			Subsystem:   "server",
			Name:        "payload_bytes_total",
			Help:        "Declared payload bytes of received frames.",
			ConstLabels: labels,
		}),
		fillBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "framer",
			Subsystem:   "server",
			Name:        "buffer_fill_bytes",
			Help:        "Bytes placed in a buffer per fill.",
			Buckets:     prometheus.ExponentialBuckets(64, 4, 7),
			ConstLabels: labels,
		}),
		framesPerConn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "framer",
			Subsystem:   "server",
			Name:        "frames_per_connection",
			Help:        "Frames received per connection.",
			Buckets:     prometheus.ExponentialBuckets(1, 10, 6),
			ConstLabels: labels,
		}),
	}
	c.registry.MustRegister(c.connections, c.connectionErrors, c.frames,
		c.payloadBytes, c.fillBytes, c.framesPerConn)
	return c
}

func (c *Collector) ConnectionOpened() { c.connections.Inc() }

func (c *Collector) FrameReceived(length uint32) {
	c.frames.Inc()
	c.payloadBytes.Add(float64(length))
}

func (c *Collector) Fill(n int) { c.fillBytes.Observe(float64(n)) }

func (c *Collector) ConnectionClosed(frames int, err error) {
	c.framesPerConn.Observe(float64(frames))
	if err != nil {
		c.connectionErrors.Inc()
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until the server fails.
func (c *Collector) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
