package pool

import "github.com/go-i2p/dbpool/lib/metrics"

// Pool utilization metrics
var (
	// PoolConnectionsMax is the configured cap on live connections.
	PoolConnectionsMax = metrics.NewGauge(
		"dbpool_connections_max",
		"Maximum number of live connections",
	)
	// PoolConnectionsOpen is the current number of live connections.
	PoolConnectionsOpen = metrics.NewGauge(
		"dbpool_connections_open",
		"Current number of live connections",
	)
	// PoolConnectionsIdle is the current number of idle connections.
	PoolConnectionsIdle = metrics.NewGauge(
		"dbpool_connections_idle",
		"Current number of idle connections in the pool",
	)
	// PoolConnectionsInUse is the number of borrowed connections.
	PoolConnectionsInUse = metrics.NewGauge(
		"dbpool_connections_in_use",
		"Number of connections currently borrowed",
	)
	PoolAcquireTotal = metrics.NewCounter(
		"dbpool_acquire_total",
		"Total number of connection acquire attempts",
	)
	PoolAcquireSuccessTotal = metrics.NewCounter(
		"dbpool_acquire_success_total",
		"Total number of successful connection acquires",
	)
	PoolAcquireFailedTotal = metrics.NewCounter(
		"dbpool_acquire_failed_total",
		"Total number of failed connection acquires",
	)
	PoolAcquireTimeoutTotal = metrics.NewCounter(
		"dbpool_acquire_timeout_total",
		"Total number of acquires that timed out waiting for an idle connection",
	)
	PoolReleaseTotal = metrics.NewCounter(
		"dbpool_release_total",
		"Total number of connection releases",
	)
	PoolCreatedTotal = metrics.NewCounter(
		"dbpool_connections_created_total",
		"Total number of connections opened",
	)
	PoolReapedTotal = metrics.NewCounter(
		"dbpool_connections_reaped_total",
		"Total number of idle connections closed by the reaper",
	)
	PoolConnectFailuresTotal = metrics.NewCounter(
		"dbpool_connect_failures_total",
		"Total number of failed connection attempts",
	)
	// PoolDegraded is 1 while consecutive connect failures exceed the threshold.
	PoolDegraded = metrics.NewGauge(
		"dbpool_degraded",
		"Whether the pool is failing to open new connections (1=yes, 0=no)",
	)
	// PoolAcquireLatency tracks time spent acquiring connections.
	PoolAcquireLatency = metrics.NewHistogram(
		"dbpool_acquire_duration_seconds",
		"Time spent acquiring a connection from the pool",
		metrics.DefaultLatencyBuckets,
	)
)

// UpdateMetrics updates the pool gauges from Stats.
func UpdateMetrics(stats Stats) {
	PoolConnectionsMax.Set(int64(stats.MaxSize))
	PoolConnectionsOpen.Set(int64(stats.NumOpen))
	PoolConnectionsIdle.Set(int64(stats.NumIdle))
	PoolConnectionsInUse.Set(int64(stats.NumInUse))
	PoolDegraded.SetBool(stats.Degraded)
}
