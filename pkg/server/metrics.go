package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics is the backend's own registry, served at /metrics
type metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	syncs       *prometheus.CounterVec
	edits       prometheus.Counter
	subscribers prometheus.Gauge
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lora_gallery_http_requests_total",
				Help: "Requests handled, by route and status code",
			},
			[]string{"route", "method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lora_gallery_http_request_duration_seconds",
				Help:    "Request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lora_gallery_external_syncs_total",
				Help: "External metadata syncs by outcome",
			},
			[]string{"outcome"},
		),
		edits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lora_gallery_metadata_updates_total",
			Help: "Metadata updates written to sidecar files",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lora_gallery_event_subscribers",
			Help: "Connected event stream clients",
		}),
	}
	registry.MustRegister(m.requests, m.duration, m.syncs, m.edits, m.subscribers)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// instrument records every request under its chi route pattern so that
// query strings and entry names do not explode the label space
func (m *metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
