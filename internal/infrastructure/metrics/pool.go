package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"stockledger/internal/infrastructure/storage/postgres"
)

// PoolStatsCollector exports pgxpool statistics.
type PoolStatsCollector struct {
	pool *postgres.Pool

	acquiredConns   *prometheus.Desc
	idleConns       *prometheus.Desc
	totalConns      *prometheus.Desc
	maxConns        *prometheus.Desc
	acquireCount    *prometheus.Desc
	acquireDuration *prometheus.Desc
}

// NewPoolStatsCollector creates a collector for pool.
func NewPoolStatsCollector(pool *postgres.Pool) *PoolStatsCollector {
	return &PoolStatsCollector{
		pool:            pool,
		acquiredConns:   prometheus.NewDesc("db_pool_acquired_connections", "Number of currently acquired connections", nil, nil),
		idleConns:       prometheus.NewDesc("db_pool_idle_connections", "Number of currently idle connections", nil, nil),
		totalConns:      prometheus.NewDesc("db_pool_total_connections", "Total number of connections in the pool", nil, nil),
		maxConns:        prometheus.NewDesc("db_pool_max_connections", "Maximum number of connections allowed", nil, nil),
		acquireCount:    prometheus.NewDesc("db_pool_acquire_count_total", "Total number of connection acquires", nil, nil),
		acquireDuration: prometheus.NewDesc("db_pool_acquire_duration_seconds_total", "Total time spent acquiring connections in seconds", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredConns
	ch <- c.idleConns
	ch <- c.totalConns
	ch <- c.maxConns
	ch <- c.acquireCount
	ch <- c.acquireDuration
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(s.AcquiredConns))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(s.MaxConns))
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(s.AcquireCount))
	ch <- prometheus.MustNewConstMetric(c.acquireDuration, prometheus.CounterValue, s.AcquireDuration.Seconds())
}
