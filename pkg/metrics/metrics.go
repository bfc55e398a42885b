// Package metrics defines the service's prometheus collectors: HTTP request
// metrics for gin and business counters for callbacks, payouts and the ledger.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// HistogramBuckets are request latencies in milliseconds. Gateway-backed
// routes (STK push, B2C, PayPal orders) routinely take several seconds, so
// the upper range stays wide.
var HistogramBuckets = []float64{
	25, 50, 100, 200, 300, 500,
	750, 1000, 1500, 2000,
	3000, 5000, 7500, 10000, 15000,
	20000, 30000, 45000, 60000,
}

// Metric describes one collector. Type is one of counter, counter_vec,
// histogram_vec or summary_vec; Args are the label names of vector types.
type Metric struct {
	ID          string
	Name        string
	Description string
	Type        string
	Args        []string
}

// NewMetric builds the prometheus.Collector for m. It panics on an unknown
// Type since metrics are declared at package level.
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case "counter":
		return prometheus.NewCounter(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description})
	case "counter_vec":
		return prometheus.NewCounterVec(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	case "histogram_vec":
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      m.Name,
			Help:      m.Description,
			Buckets:   HistogramBuckets,
		}, m.Args)
	case "summary_vec":
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	default:
		panic(fmt.Sprintf("metrics: unsupported type %q for %s", m.Type, m.ID))
	}
}
