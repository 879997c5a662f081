// Package metricsvc holds the Prometheus collectors of the portal.
package metricsvc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/reminder"
)

const namespace = "portal"

type Metrics struct {
	registry *prometheus.Registry

	remindersSent     prometheus.Counter
	remindersFailed   prometheus.Counter
	reminderRuns      *prometheus.CounterVec
	timeFallbacks     prometheus.Counter
	loginsRateLimited prometheus.Counter
	guardRedirects    *prometheus.CounterVec
}

var _ reminder.Observer = (*Metrics)(nil)

// New registers the portal collectors, plus the Go and process collectors, on a
// dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Inactive user reminders handed to the mail endpoint.",
		}),
		remindersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_failed_total",
			Help:      "Inactive user reminders the mail endpoint rejected.",
		}),
		reminderRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_runs_total",
			Help:      "Reminder job runs by outcome.",
		}, []string{"outcome"}),
		timeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "time_oracle_fallbacks_total",
			Help:      "Times the local clock replaced the world time service.",
		}),
		loginsRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_rate_limited_total",
			Help:      "Login attempts rejected by the rate limiter.",
		}),
		guardRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_redirects_total",
			Help:      "Guarded page requests sent back to the login page, by reason.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.remindersSent,
		m.remindersFailed,
		m.reminderRuns,
		m.timeFallbacks,
		m.loginsRateLimited,
		m.guardRedirects,
	)
	return m
}

func (m *Metrics) ObserveDispatch(status string) {
	switch status {
	case reminder.StatusSent:
		m.remindersSent.Inc()
	case reminder.StatusFailed:
		m.remindersFailed.Inc()
	}
}

func (m *Metrics) ObserveRun(outcome string) {
	m.reminderRuns.WithLabelValues(outcome).Inc()
}

// TimeFallback matches timeoracle.Options.OnFallback.
func (m *Metrics) TimeFallback(error) {
	m.timeFallbacks.Inc()
}

func (m *Metrics) LoginRateLimited() {
	m.loginsRateLimited.Inc()
}

func (m *Metrics) GuardRedirect(reason string) {
	m.guardRedirects.WithLabelValues(reason).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
