package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "walletledger"

// Metrics owns its registry so that several instances can coexist in one process.
// Every method is safe to call on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	depositsTotal     *prometheus.CounterVec
	settlementsTotal  *prometheus.CounterVec
	transfersTotal    *prometheus.CounterVec
	conflictsTotal    *prometheus.CounterVec
	webhooksRejected  *prometheus.CounterVec
	sweepRunsTotal    *prometheus.CounterVec
	sweepResultsTotal *prometheus.CounterVec
	gatewayLatency    *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		depositsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "deposits",
				Name:      "initiated_total",
				Help:      "Deposit initiations partitioned by result.",
			},
			[]string{"result"},
		),
		settlementsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "deposits",
				Name:      "settlements_total",
				Help:      "Settlement attempts partitioned by source and outcome.",
			},
			[]string{"source", "outcome"},
		),
		transfersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transfers",
				Name:      "total",
				Help:      "Transfers partitioned by result.",
			},
			[]string{"result"},
		),
		conflictsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wallets",
				Name:      "version_conflicts_total",
				Help:      "Optimistic concurrency conflicts partitioned by operation.",
			},
			[]string{"operation"},
		),
		webhooksRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhooks",
				Name:      "rejected_total",
				Help:      "Webhook deliveries rejected before processing, partitioned by reason.",
			},
			[]string{"reason"},
		),
		sweepRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "runs_total",
				Help:      "Pending deposit sweeps partitioned by result.",
			},
			[]string{"result"},
		),
		sweepResultsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "deposits_total",
				Help:      "Deposits examined by the sweeper partitioned by what happened to them.",
			},
			[]string{"result"},
		),
		gatewayLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Payment gateway call latency partitioned by operation and result.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests partitioned by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency partitioned by method and route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveDeposit(result string) {
	if m == nil {
		return
	}
	m.depositsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSettlement(source, outcome string) {
	if m == nil {
		return
	}
	m.settlementsTotal.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObserveTransfer(result string) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveConflict(operation string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveWebhookRejected(reason string) {
	if m == nil {
		return
	}
	m.webhooksRejected.WithLabelValues(reason).Inc()
}

// ObserveSweep records one sweeper pass
func (m *Metrics) ObserveSweep(settled, failed, left int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sweepRunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.sweepRunsTotal.WithLabelValues("success").Inc()
	m.sweepResultsTotal.WithLabelValues("settled").Add(float64(settled))
	m.sweepResultsTotal.WithLabelValues("failed").Add(float64(failed))
	m.sweepResultsTotal.WithLabelValues("pending").Add(float64(left))
}

func (m *Metrics) ObserveGateway(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayLatency.WithLabelValues(operation, result).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
