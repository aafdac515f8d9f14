package pool

import (
	"sync/atomic"
	"time"
)

// reapLoop wakes every MaxIdleTime and closes expired surplus connections.
func (p *Pool) reapLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.MaxIdleTime)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if n := p.reapIdle(); n > 0 {
				log.WithField("reaped", n).Debug("idle connections closed")
			}
			UpdateMetrics(p.Stats())
		}
	}
}

// reapIdle pops idle connections from the front of the queue while they have
// been idle for at least MaxIdleTime and the pool is above InitialSize.
// The queue is ordered by release time, so the scan stops at the first
// connection that has not expired. It returns the number closed.
func (p *Pool) reapIdle() int {
	p.mu.Lock()
	var expired []*pooledConn
	for !p.closed && p.numOpen > p.config.InitialSize && len(p.idle) > 0 {
		pc := p.idle[0]
		if pc.conn.IdleDuration() < p.config.MaxIdleTime {
			break
		}
		p.idle[0] = nil
		p.idle = p.idle[1:]
		p.numOpen--
		expired = append(expired, pc)
	}
	p.mu.Unlock()

	for _, pc := range expired {
		p.destroy(pc, "idle timeout")
	}
	atomic.AddUint64(&p.reaped, uint64(len(expired)))
	PoolReapedTotal.Add(uint64(len(expired)))
	return len(expired)
}
