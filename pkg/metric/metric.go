// Package metric holds the Prometheus collectors exported on /metrics.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesArchived counts ingest attempts by outcome: archived, duplicate or failed.
	MessagesArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listarchive_messages_archived_total",
			Help: "Messages handed to the archive, by outcome",
		},
		[]string{"outcome"},
	)

	// ModerationActions counts applied moderation actions.
	ModerationActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listarchive_moderation_actions_total",
			Help: "Moderation actions applied, by action",
		},
		[]string{"action"},
	)

	// AccessDenied counts reads rejected by the access gate, by document kind.
	AccessDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listarchive_access_denied_total",
			Help: "Document reads denied by access policy, by document kind",
		},
		[]string{"document"},
	)

	// StoredEmails reports the number of emails in the store, sampled once per minute.
	StoredEmails = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listarchive_stored_emails",
			Help: "Emails currently held by the store",
		},
	)

	// HTTPRequestDuration observes API request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listarchive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route", "status"},
	)
)

// RecordHTTPRequestDuration records the latency of one HTTP request.
func RecordHTTPRequestDuration(method, route, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// TickerFunc is the function signature accepted by AddTickerFunc, will be called once per minute.
type TickerFunc func()

var tickerFuncChan = make(chan TickerFunc)

func init() {
	go metricsTicker()
}

// AddTickerFunc adds a callback to the list of TickerFuncs called each minute, typically to
// refresh a gauge that is expensive to compute.
func AddTickerFunc(f TickerFunc) {
	tickerFuncChan <- f
}

func metricsTicker() {
	funcs := make([]TickerFunc, 0)
	ticker := time.NewTicker(time.Minute)

	for {
		select {
		case <-ticker.C:
			for _, f := range funcs {
				f()
			}
		case f := <-tickerFuncChan:
			funcs = append(funcs, f)
		}
	}
}
