package metrics

// HTTP request metrics for gin, adapted from github.com/zsais/go-gin-prometheus.

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code, method and route.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "url"},
}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "url"},
}

var resSz = &Metric{
	ID:          "resSz",
	Name:        "resp_sz_bytes",
	Description: "The HTTP response sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "url"},
}

const defaultMetricPath = "/metrics"

// Prometheus records request count, latency and response size per route.
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec
	resSz  *prometheus.SummaryVec

	MetricsPath string
	// URLLabel picks the "url" label. Defaults to the matched route so path
	// parameters do not blow up cardinality.
	URLLabel func(c *gin.Context) string
}

type NewPrometheusOptions struct {
	Subsystem   string
	MetricsPath string
	URLLabel    func(c *gin.Context) string
	Logger      *zap.SugaredLogger
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

func routeLabel(c *gin.Context) string {
	if fp := c.FullPath(); fp != "" {
		return fp
	}
	return "unmatched"
}

// register returns the collector already registered under the same name, if any.
func register(reg prometheus.Registerer, c prometheus.Collector, log *zap.SugaredLogger, name string) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		if log != nil {
			log.Errorw("metric_register_failed", "metric", name, "error", err.Error())
		}
	}
	return c
}

func NewPrometheus(options NewPrometheusOptions) *Prometheus {
	reg := options.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{MetricsPath: options.MetricsPath, URLLabel: options.URLLabel}
	if p.MetricsPath == "" {
		p.MetricsPath = defaultMetricPath
	}
	if p.URLLabel == nil {
		p.URLLabel = routeLabel
	}
	p.reqCnt = register(reg, NewMetric(reqCnt, options.Subsystem), options.Logger, reqCnt.Name).(*prometheus.CounterVec)
	p.reqDur = register(reg, NewMetric(reqDur, options.Subsystem), options.Logger, reqDur.Name).(*prometheus.HistogramVec)
	p.resSz = register(reg, NewMetric(resSz, options.Subsystem), options.Logger, resSz.Name).(*prometheus.SummaryVec)
	return p
}

// HandlerFunc is the gin middleware.
func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.MetricsPath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		url := p.URLLabel(c)
		elapsed := float64(time.Since(start)) / float64(time.Millisecond)

		p.reqCnt.WithLabelValues(status, c.Request.Method, url).Inc()
		p.reqDur.WithLabelValues(status, c.Request.Method, url).Observe(elapsed)
		p.resSz.WithLabelValues(status, c.Request.Method, url).Observe(float64(max(c.Writer.Size(), 0)))
	}
}

// Use adds the middleware to e.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.HandlerFunc())
}

// Server exposes MetricsPath on its own address, away from the API access log.
func (p *Prometheus) Server(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(p.MetricsPath, promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
