package pool

import (
	"sync/atomic"
	"time"
)

// growLoop is the only place new connections are created after New.
// It sleeps until the idle queue is empty while the pool is below MaxSize,
// opens one connection outside the lock and wakes all waiting callers.
func (p *Pool) growLoop() {
	defer p.wg.Done()

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		for !p.closed && !p.needsGrowthLocked() {
			p.starved.Wait()
		}
		if p.closed {
			return
		}

		p.pending++
		p.mu.Unlock()
		ok := p.grow()
		p.mu.Lock()

		if !ok && !p.closed {
			delay := p.retryDelayLocked()
			p.mu.Unlock()
			select {
			case <-p.ctx.Done():
			case <-time.After(delay):
			}
			p.mu.Lock()
		}
	}
}

// needsGrowthLocked reports whether callers are starved and a slot is free.
// Connects in flight count against MaxSize.
func (p *Pool) needsGrowthLocked() bool {
	return len(p.idle) == 0 && p.numOpen+p.pending < p.config.MaxSize
}

// grow opens one connection and pushes it onto the idle queue. It must be
// called without the lock and with one slot reserved in p.pending.
func (p *Pool) grow() bool {
	conn, err := p.dial(p.ctx)

	p.mu.Lock()
	p.pending--
	defer p.mu.Unlock()
	// Waiters re-check whether or not a connection was added.
	defer p.available.Broadcast()
	defer func() { UpdateMetrics(p.statsLocked()) }()

	if err != nil {
		if p.closed {
			return false
		}
		p.connectFailures++
		atomic.AddUint64(&p.connectErrors, 1)
		PoolConnectFailuresTotal.Inc()
		entry := log.WithError(err).WithField("consecutive", p.connectFailures)
		if p.connectFailures == p.config.DegradedThreshold {
			entry.Warn("pool degraded: repeated connect failures")
		} else {
			entry.Warn("failed to create new connection")
		}
		return false
	}

	if p.closed {
		p.mu.Unlock()
		conn.Close()
		p.mu.Lock()
		return true
	}

	conn.Touch()
	p.idle = append(p.idle, &pooledConn{conn: conn, createdAt: time.Now()})
	p.numOpen++
	if p.connectFailures >= p.config.DegradedThreshold {
		log.WithField("failures", p.connectFailures).Info("pool recovered")
	}
	p.connectFailures = 0
	atomic.AddUint64(&p.created, 1)
	PoolCreatedTotal.Inc()
	log.WithField("open", p.numOpen).Debug("created new connection")
	return true
}

// retryDelayLocked doubles GrowthRetryDelay per consecutive failure, up to
// MaxGrowthRetryDelay.
func (p *Pool) retryDelayLocked() time.Duration {
	delay := p.config.GrowthRetryDelay
	for i := 1; i < p.connectFailures && delay < p.config.MaxGrowthRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, p.config.MaxGrowthRetryDelay)
}
