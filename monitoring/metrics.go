package monitoring

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewards_http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PostbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_postbacks_total",
			Help: "Inbound postbacks by outcome code",
		},
		[]string{"code"},
	)

	LedgerEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_ledger_entries_total",
			Help: "Wallet transactions written, by kind and currency",
		},
		[]string{"kind", "currency"},
	)

	ReconcileDriftTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_reconcile_drift_total",
			Help: "Cached balances found out of line with the transaction log",
		},
		[]string{"currency"},
	)

	ReferralCommissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rewards_referral_commissions_total",
			Help: "Referral commissions paid",
		},
	)

	ArchiveRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_archive_runs_total",
			Help: "Postback-log archive runs by result",
		},
		[]string{"result"},
	)
)

// Middleware records request count and latency. Route paths are used as labels to keep cardinality bounded.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		path := c.Route().Path
		HttpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(c.Response().StatusCode())).Inc()
		ResponseTimeHistogram.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}
