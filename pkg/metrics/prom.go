// Package metrics exports cache and connection metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashpect/webserv/pkg/cache"
)

// CacheAdapter implements cache.Metrics.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type CacheAdapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	evicts  prometheus.Counter
	entries prometheus.Gauge
}

// Hit increments the hit counter.
func (a *CacheAdapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *CacheAdapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter.
func (a *CacheAdapter) Evict() { a.evicts.Inc() }

// Size updates the resident entries gauge.
func (a *CacheAdapter) Size(entries int) { a.entries.Set(float64(entries)) }

var _ cache.Metrics = (*CacheAdapter)(nil)

// ServerAdapter tracks connection lifecycle and response codes.
type ServerAdapter struct {
	accepted  prometheus.Counter
	closed    prometheus.Counter
	timeouts  prometheus.Counter
	active    prometheus.Gauge
	responses *prometheus.CounterVec
}

func (a *ServerAdapter) Accepted() {
	a.accepted.Inc()
	a.active.Inc()
}

func (a *ServerAdapter) Closed() {
	a.closed.Inc()
	a.active.Dec()
}

func (a *ServerAdapter) TimedOut() { a.timeouts.Inc() }

func (a *ServerAdapter) Response(status int) {
	a.responses.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Registry bundles the adapters registered on one prometheus.Registerer.
type Registry struct {
	Cache  *CacheAdapter
	Server *ServerAdapter

	gatherer prometheus.Gatherer
}

// New registers all metrics under namespace ns.
//   - reg: registry to register with (nil => a fresh prometheus.Registry)
func New(reg *prometheus.Registry, ns string) *Registry {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	counter := func(sub, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Subsystem: sub, Name: name, Help: help})
	}
	gauge := func(sub, name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Subsystem: sub, Name: name, Help: help})
	}

	c := &CacheAdapter{
		hits:    counter("cache", "hits_total", "Content cache hits"),
		misses:  counter("cache", "misses_total", "Content cache misses"),
		evicts:  counter("cache", "evictions_total", "Entries evicted to make room"),
		entries: gauge("cache", "size_entries", "Number of resident entries"),
	}
	s := &ServerAdapter{
		accepted: counter("conn", "accepted_total", "Accepted client connections"),
		closed:   counter("conn", "closed_total", "Released client connections"),
		timeouts: counter("conn", "timeouts_total", "Connections closed for idling"),
		active:   gauge("conn", "active", "Currently open client connections"),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "Responses written by status code",
		}, []string{"code"}),
	}
	reg.MustRegister(c.hits, c.misses, c.evicts, c.entries,
		s.accepted, s.closed, s.timeouts, s.active, s.responses)

	return &Registry{Cache: c, Server: s, gatherer: reg}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
