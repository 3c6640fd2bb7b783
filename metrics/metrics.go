// Package metrics exposes store activity and web traffic as Prometheus
// metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/goliatone/go-workshop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workshop"

// Collector records store activity events and web request outcomes. It
// implements workshop.ActivitySink.
type Collector struct {
	activity *prometheus.CounterVec
	requests *prometheus.CounterVec
	visitors prometheus.Gauge
}

var _ workshop.ActivitySink = (*Collector)(nil)

// NewCollector registers the workshop metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		activity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Store activity events by type.",
		}, []string{"event"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Web requests by route and status code.",
		}, []string{"route", "status_code"}),
		visitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "visitors_active",
			Help:      "Visitor stores currently held in memory.",
		}),
	}

	reg.MustRegister(c.activity, c.requests, c.visitors)

	return c
}

// Record counts the event. It never fails.
func (c *Collector) Record(_ context.Context, event workshop.ActivityEvent) error {
	c.activity.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

func (c *Collector) RecordRequest(route string, statusCode int) {
	c.requests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) SetVisitors(n int) {
	c.visitors.Set(float64(n))
}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
