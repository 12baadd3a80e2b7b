package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_inventory_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lab_inventory_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lab_inventory_http_requests_in_flight",
		Help: "Current number of HTTP requests being processed.",
	})

	authEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_inventory_auth_events_total",
			Help: "Authentication events by action (login, register, refresh, logout) and result.",
		},
		[]string{"action", "result"},
	)
)

// InventoryDB is the subset of db.DB needed to collect inventory metrics.
type InventoryDB interface {
	CountByKind() (map[string]int, error)
}

// itemCollector is a custom Prometheus collector that queries the database
// on each scrape to report item counts broken down by resource kind.
type itemCollector struct {
	db        InventoryDB
	itemsDesc *prometheus.Desc
}

// NewItemCollector returns the per-kind item count collector.
func NewItemCollector(db InventoryDB) prometheus.Collector {
	return &itemCollector{
		db: db,
		itemsDesc: prometheus.NewDesc(
			"lab_inventory_items_total",
			"Number of inventory items stored, partitioned by resource kind.",
			[]string{"kind"},
			nil,
		),
	}
}

func (c *itemCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.itemsDesc
}

func (c *itemCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := c.db.CountByKind()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.itemsDesc, err)
		return
	}
	for kind, n := range counts {
		ch <- prometheus.MustNewConstMetric(
			c.itemsDesc,
			prometheus.GaugeValue,
			float64(n),
			kind,
		)
	}
}

// Register registers the service metrics with reg. Call once at startup
// after the database is initialised. Go runtime and process collectors are
// not included: prometheus.DefaultRegisterer already carries them.
func Register(reg prometheus.Registerer, db InventoryDB) error {
	cs := []prometheus.Collector{
		// HTTP service metrics
		httpRequestsTotal,
		httpRequestDuration,
		httpRequestsInFlight,
		authEventsTotal,

		// Application metrics
		NewItemCollector(db),
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthEvent records one authentication action outcome, e.g.
// AuthEvent("login", "invalid_credentials").
func AuthEvent(action, result string) {
	authEventsTotal.WithLabelValues(action, result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the response status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware wraps an http.Handler to record HTTP metrics.
// pattern should be the route pattern string (e.g. "/api/v1/{kind}/{id}")
// so the path label has bounded cardinality.
func Middleware(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			httpRequestsInFlight.Dec()
			status := strconv.Itoa(rw.status)
			httpRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}
