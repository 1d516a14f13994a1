// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus collectors for task and approval activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agentd"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	tasksCreated  prometheus.Counter
	tasksFinished *prometheus.CounterVec
	jobsActive    prometheus.Gauge
	jobDuration   *prometheus.HistogramVec
	approvals     *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Number of tasks accepted by message/send or message/stream.",
		}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Number of tasks that reached a terminal state.",
		}, []string{"state"}),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Number of background jobs currently running.",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of background jobs by terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"state"}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approvals_total",
			Help:      "Approval prompts by channel and outcome.",
		}, []string{"channel", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tasksCreated,
		m.tasksFinished,
		m.jobsActive,
		m.jobDuration,
		m.approvals,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// TaskCreated counts an accepted task.
func (m *Metrics) TaskCreated() {
	if m == nil {
		return
	}
	m.tasksCreated.Inc()
}

// TaskFinished counts a task reaching state.
func (m *Metrics) TaskFinished(state string) {
	if m == nil {
		return
	}
	m.tasksFinished.WithLabelValues(state).Inc()
}

// JobStarted marks a background job as running.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsActive.Inc()
}

// JobDone marks a background job as finished in state after d.
func (m *Metrics) JobDone(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobsActive.Dec()
	m.jobDuration.WithLabelValues(state).Observe(d.Seconds())
}

// Approval counts one approval outcome on channel.
func (m *Metrics) Approval(channel, outcome string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(channel, outcome).Inc()
}
