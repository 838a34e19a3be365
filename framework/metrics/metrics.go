// Package metrics holds the Prometheus collectors shared by the action
// pipeline and the HTTP layer.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spiral"

// Collectors is the set of framework metrics registered on one registry.
type Collectors struct {
	ActionCalls    *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	HTTPInFlight   prometheus.Gauge
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New creates unregistered collectors.
func New() *Collectors {
	return &Collectors{
		ActionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "action",
				Name:      "calls_total",
				Help:      "Total number of controller action calls.",
			},
			[]string{"controller", "action", "outcome"},
		),
		ActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "action",
				Name:      "duration_seconds",
				Help:      "Duration of controller action calls.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"controller", "action", "outcome"},
		),
		HTTPInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method"},
		),
	}
}

// Register creates the collectors and registers them on reg. Collectors that
// are already registered are reused, so calling Register twice with the same
// registry is safe.
func Register(reg prometheus.Registerer) (*Collectors, error) {
	c := New()
	var err error
	if c.ActionCalls, err = register(reg, c.ActionCalls); err != nil {
		return nil, err
	}
	if c.ActionDuration, err = register(reg, c.ActionDuration); err != nil {
		return nil, err
	}
	if c.HTTPInFlight, err = register(reg, c.HTTPInFlight); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = register(reg, c.HTTPRequests); err != nil {
		return nil, err
	}
	if c.HTTPDuration, err = register(reg, c.HTTPDuration); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// ObserveAction records one action call.
func (c *Collectors) ObserveAction(controller, action, outcome string, d time.Duration) {
	c.ActionCalls.WithLabelValues(controller, action, outcome).Inc()
	c.ActionDuration.WithLabelValues(controller, action, outcome).Observe(d.Seconds())
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with HTTP request metrics.
func (c *Collectors) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		c.HTTPInFlight.Inc()
		defer c.HTTPInFlight.Dec()

		next.ServeHTTP(rec, r)

		method := strings.ToUpper(r.Method)
		c.HTTPRequests.WithLabelValues(method, strconv.Itoa(rec.status)).Inc()
		c.HTTPDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
