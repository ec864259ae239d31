// Package metrics exposes Prometheus collectors for the intake service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry. All methods
// are safe on a nil receiver so metrics stay optional.
type Metrics struct {
	reg *prometheus.Registry

	transitions   *prometheus.CounterVec
	invalidInputs *prometheus.CounterVec
	handoffs      prometheus.Counter
	completions   *prometheus.CounterVec
	storeErrors   prometheus.Counter
	sendErrors    *prometheus.CounterVec
	nudges        prometheus.Counter
	activeWorkers prometheus.Gauge
	adminRequests *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendant_transitions_total",
			Help: "Dialogue transitions by source and target state.",
		}, []string{"from", "to"}),
		invalidInputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendant_invalid_inputs_total",
			Help: "Inputs rejected by a state's validator.",
		}, []string{"state"}),
		handoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendant_handoffs_total",
			Help: "Correspondents handed to a human agent.",
		}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendant_completions_total",
			Help: "Finished intakes by status.",
		}, []string{"status"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendant_store_errors_total",
			Help: "Session writes that failed to persist.",
		}),
		sendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendant_send_errors_total",
			Help: "Outbound messages dropped after retrying.",
		}, []string{"channel"}),
		nudges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendant_nudges_total",
			Help: "Idle reminders sent.",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendant_active_workers",
			Help: "Correspondents with an in-flight gate worker.",
		}),
		adminRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendant_admin_requests_total",
			Help: "Admin HTTP requests by route pattern and status class.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.transitions, m.invalidInputs, m.handoffs, m.completions,
		m.storeErrors, m.sendErrors, m.nudges, m.activeWorkers, m.adminRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) InvalidInput(state string) {
	if m == nil {
		return
	}
	m.invalidInputs.WithLabelValues(state).Inc()
}

func (m *Metrics) Handoff() {
	if m == nil {
		return
	}
	m.handoffs.Inc()
}

func (m *Metrics) Completion(status string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(status).Inc()
}

func (m *Metrics) StoreError() {
	if m == nil {
		return
	}
	m.storeErrors.Inc()
}

func (m *Metrics) SendError(channel string) {
	if m == nil {
		return
	}
	m.sendErrors.WithLabelValues(channel).Inc()
}

func (m *Metrics) Nudge() {
	if m == nil {
		return
	}
	m.nudges.Inc()
}

func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.activeWorkers.Inc()
}

func (m *Metrics) WorkerDone() {
	if m == nil {
		return
	}
	m.activeWorkers.Dec()
}

// AdminRequest counts one admin HTTP request. Status codes are bucketed by
// class ("2xx", "4xx") to keep the label set small.
func (m *Metrics) AdminRequest(route string, status int) {
	if m == nil {
		return
	}
	m.adminRequests.WithLabelValues(route, strconv.Itoa(status/100)+"xx").Inc()
}
