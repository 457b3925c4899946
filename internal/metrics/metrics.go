// Package metrics exposes registrar instrumentation as Prometheus
// collectors on a private registry.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/registrar/internal/model"
)

const namespace = "registrar"

// Metrics records coordinator, engine and HTTP activity. It implements
// coordinator.Recorder and engine.Recorder. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	triggerEvents     *prometheus.CounterVec
	triggerDuration   *prometheus.HistogramVec
	cursorPosition    *prometheus.GaugeVec
	riskAlerts        *prometheus.CounterVec
	rollbacks         prometheus.Counter
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
}

// New registers the registrar collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Coordinator operations by outcome (ok or error code)",
	}, []string{"op", "outcome"})

	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of coordinator operations including retries",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	triggerEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trigger_events_total",
		Help:      "Change events processed by triggers, by result",
	}, []string{"trigger", "collection", "result"})

	triggerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "trigger_duration_seconds",
		Help:      "Time spent processing one change event",
		Buckets:   prometheus.DefBuckets,
	}, []string{"trigger"})

	cursorPosition := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscriber_position",
		Help:      "Last change log seq acknowledged by each subscription",
	}, []string{"trigger", "collection"})

	riskAlerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "risk_alerts_total",
		Help:      "Academic risk alerts sent, by level",
	}, []string{"level"})

	rollbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capacity_rollbacks_total",
		Help:      "Enrollments rolled back for exceeding the admission ceiling",
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	registry.MustRegister(operations, operationDuration, triggerEvents, triggerDuration,
		cursorPosition, riskAlerts, rollbacks, requestDuration, requestTotal)

	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		operations:        operations,
		operationDuration: operationDuration,
		triggerEvents:     triggerEvents,
		triggerDuration:   triggerDuration,
		cursorPosition:    cursorPosition,
		riskAlerts:        riskAlerts,
		rollbacks:         rollbacks,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveOperation records one coordinator operation.
func (m *Metrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveTrigger records one processed change event.
func (m *Metrics) ObserveTrigger(trigger string, collection model.Collection, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.triggerEvents.WithLabelValues(trigger, string(collection), result).Inc()
	m.triggerDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

// ObserveCursor records a subscription's acknowledged position.
func (m *Metrics) ObserveCursor(trigger string, collection model.Collection, seq int64) {
	if m == nil {
		return
	}
	m.cursorPosition.WithLabelValues(trigger, string(collection)).Set(float64(seq))
}

// ObserveRiskAlert counts a sent alert.
func (m *Metrics) ObserveRiskAlert(level model.RiskLevel) {
	if m == nil {
		return
	}
	m.riskAlerts.WithLabelValues(string(level)).Inc()
}

// ObserveRollback counts a capacity rollback.
func (m *Metrics) ObserveRollback() {
	if m == nil {
		return
	}
	m.rollbacks.Inc()
}

// ObserveHTTPRequest records one HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(d.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}
