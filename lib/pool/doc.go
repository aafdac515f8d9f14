// Package pool provides a bounded, self-growing pool of database connections.
//
// The pool keeps a FIFO queue of idle connections. Callers borrow one with
// Acquire and give it back by releasing the returned Handle. Two background
// goroutines maintain the pool:
//
//   - the growth worker opens a new connection whenever the idle queue runs
//     dry and the live count is below MaxSize;
//   - the idle reaper wakes every MaxIdleTime and closes idle connections
//     that have not been used for MaxIdleTime, never going below InitialSize.
//
// Connections are only ever closed while idle. A borrowed connection is
// invisible to the reaper until its handle is released.
//
// # Basic Usage
//
//	dial, err := dbconn.NewDialer(dbconn.DriverMySQL, ep, cred, "chat")
//	if err != nil {
//	    return err
//	}
//
//	cfg := pool.DefaultConfig()
//	cfg.InitialSize = 4
//	cfg.MaxSize = 32
//
//	p, err := pool.New(ctx, dial, cfg)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	h, err := p.Acquire(ctx)
//	if err != nil {
//	    return err // pool.ErrTimeout when nothing became idle in time
//	}
//	defer h.Release()
//
//	_, err = h.Exec(ctx, "UPDATE accounts SET active = 1 WHERE id = ?", id)
//
// Do wraps the acquire/release pair so the handle is returned even when the
// callback panics.
//
// # Metrics
//
// Pool metrics are registered with the metrics package:
//   - dbpool_connections_max, dbpool_connections_open,
//     dbpool_connections_idle, dbpool_connections_in_use
//   - dbpool_acquire_total, dbpool_acquire_success_total,
//     dbpool_acquire_failed_total, dbpool_acquire_timeout_total
//   - dbpool_release_total
//   - dbpool_connections_created_total, dbpool_connections_reaped_total
//   - dbpool_connect_failures_total, dbpool_degraded
//   - dbpool_acquire_duration_seconds
package pool
