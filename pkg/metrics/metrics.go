package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics métricas del núcleo del libro. Todos los métodos aceptan receptor nil (métricas deshabilitadas).
type Metrics struct {
	registry *prometheus.Registry

	LockWait         *prometheus.HistogramVec
	LockTimeouts     *prometheus.CounterVec
	TxDuration       *prometheus.HistogramVec
	Retries          *prometheus.CounterVec
	Movements        *prometheus.CounterVec
	CodesGenerated   *prometheus.CounterVec
	AuditIssues      *prometheus.GaugeVec
	AuditRepairs     *prometheus.CounterVec
	AuditRunDuration prometheus.Histogram
	BreakerState     *prometheus.GaugeVec
}

// Config configuración de métricas.
type Config struct {
	Namespace string
	Service   string
}

// New crea las métricas sobre un registro propio.
func New(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	labels := prometheus.Labels{"service": cfg.Service}
	m := &Metrics{registry: registry}

	m.LockWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   cfg.Namespace,
		Name:        "lock_wait_seconds",
		Help:        "Tiempo de espera para adquirir un bloqueo en proceso",
		ConstLabels: labels,
		Buckets:     []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
	}, []string{"scope"})
	m.LockTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Name:        "lock_timeouts_total",
		Help:        "Bloqueos no adquiridos dentro del tiempo de espera",
		ConstLabels: labels,
	}, []string{"scope"})
	m.TxDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   cfg.Namespace,
		Name:        "tx_duration_seconds",
		Help:        "Duración de las transacciones del libro",
		ConstLabels: labels,
		Buckets:     prometheus.DefBuckets,
	}, []string{"outcome"})
	m.Retries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Name:        "retries_total",
		Help:        "Reintentos por contención",
		ConstLabels: labels,
	}, []string{"operation", "reason"})
	m.Movements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Name:        "movements_total",
		Help:        "Movimientos aplicados por tipo y resultado",
		ConstLabels: labels,
	}, []string{"kind", "result"})
	m.CodesGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Name:        "codes_generated_total",
		Help:        "Códigos de identificación emitidos",
		ConstLabels: labels,
	}, []string{"prefix"})
	m.AuditIssues = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   cfg.Namespace,
		Name:        "audit_issues",
		Help:        "Incidencias de la última auditoría por severidad",
		ConstLabels: labels,
	}, []string{"severity"})
	m.AuditRepairs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Name:        "audit_repairs_total",
		Help:        "Correcciones automáticas aplicadas por tipo de chequeo",
		ConstLabels: labels,
	}, []string{"check"})
	m.AuditRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   cfg.Namespace,
		Name:        "audit_run_duration_seconds",
		Help:        "Duración de una auditoría completa",
		ConstLabels: labels,
		Buckets:     []float64{.1, .5, 1, 5, 15, 60, 300},
	})
	m.BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   cfg.Namespace,
		Name:        "circuit_breaker_state",
		Help:        "Estado del circuit breaker (0=closed, 1=half-open, 2=open)",
		ConstLabels: labels,
	}, []string{"name"})

	registry.MustRegister(
		m.LockWait, m.LockTimeouts, m.TxDuration, m.Retries, m.Movements,
		m.CodesGenerated, m.AuditIssues, m.AuditRepairs, m.AuditRunDuration, m.BreakerState,
	)
	return m
}

// Handler expone el registro en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry devuelve el registro (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveLockWait(scope string, d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.WithLabelValues(scope).Observe(d.Seconds())
}

func (m *Metrics) IncLockTimeout(scope string) {
	if m == nil {
		return
	}
	m.LockTimeouts.WithLabelValues(scope).Inc()
}

func (m *Metrics) ObserveTx(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TxDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) IncRetry(operation, reason string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) IncMovement(kind, result string) {
	if m == nil {
		return
	}
	m.Movements.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncCodeGenerated(prefix string) {
	if m == nil {
		return
	}
	m.CodesGenerated.WithLabelValues(prefix).Inc()
}

// SetAuditIssues publica los totales de la última auditoría.
func (m *Metrics) SetAuditIssues(high, medium, low int, d time.Duration) {
	if m == nil {
		return
	}
	m.AuditIssues.WithLabelValues("high").Set(float64(high))
	m.AuditIssues.WithLabelValues("medium").Set(float64(medium))
	m.AuditIssues.WithLabelValues("low").Set(float64(low))
	m.AuditRunDuration.Observe(d.Seconds())
}

func (m *Metrics) IncAuditRepair(check string) {
	if m == nil {
		return
	}
	m.AuditRepairs.WithLabelValues(check).Inc()
}

func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}
