// Package metrics provides Prometheus metrics for usage-service round trips.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jgoulah/bidgely/pkg/models"
)

const namespace = "bidgely"

// Collector holds all Prometheus metrics for the client.
type Collector struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Auth metrics
	Logins *prometheus.CounterVec

	// Partitioner metrics
	WindowsInFlight prometheus.Gauge
	ReadsFetched    *prometheus.CounterVec

	// Forecast gauges
	ForecastUsage *prometheus.GaugeVec
	ForecastCost  *prometheus.GaugeVec
}

// NewWithRegistry creates a collector registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of usage-service requests",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Usage-service request duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		Logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Total number of login attempts by result",
			},
			[]string{"utility", "result"},
		),
		WindowsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "windows_in_flight",
				Help:      "Number of usage windows currently being fetched",
			},
		),
		ReadsFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reads_fetched_total",
				Help:      "Total number of cost reads returned by the usage service",
			},
			[]string{"measurement", "aggregate"},
		),
		ForecastUsage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "forecast_usage",
				Help:      "Billing cycle usage by kind (to_date, forecasted, typical)",
			},
			[]string{"measurement", "unit", "kind"},
		),
		ForecastCost: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "forecast_cost",
				Help:      "Billing cycle cost by kind (to_date, forecasted, typical)",
			},
			[]string{"measurement", "kind"},
		),
	}
}

// ObserveRequest records one round trip. A status of 0 means the request
// never got a response.
func (c *Collector) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	c.RequestsTotal.WithLabelValues(endpoint, label).Inc()
	c.RequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveLogin records a login attempt
func (c *Collector) ObserveLogin(utility string, err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.Logins.WithLabelValues(utility, result).Inc()
}

// WindowStarted and WindowDone track concurrent partitioned fetches
func (c *Collector) WindowStarted() {
	if c != nil {
		c.WindowsInFlight.Inc()
	}
}

func (c *Collector) WindowDone() {
	if c != nil {
		c.WindowsInFlight.Dec()
	}
}

// AddReads counts reads returned for a measurement and aggregate
func (c *Collector) AddReads(measurement, aggregate string, n int) {
	if c == nil {
		return
	}
	c.ReadsFetched.WithLabelValues(measurement, aggregate).Add(float64(n))
}

// ObserveForecast publishes the latest billing-cycle snapshot
func (c *Collector) ObserveForecast(measurement string, f *models.Forecast) {
	if c == nil || f == nil {
		return
	}
	unit := string(f.UnitOfMeasure)
	c.ForecastUsage.WithLabelValues(measurement, unit, "to_date").Set(f.UsageToDate)
	c.ForecastUsage.WithLabelValues(measurement, unit, "forecasted").Set(f.ForecastedUsage)
	c.ForecastUsage.WithLabelValues(measurement, unit, "typical").Set(f.TypicalUsage)
	c.ForecastCost.WithLabelValues(measurement, "to_date").Set(f.CostToDate)
	c.ForecastCost.WithLabelValues(measurement, "forecasted").Set(f.ForecastedCost)
	c.ForecastCost.WithLabelValues(measurement, "typical").Set(f.TypicalCost)
}
