package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/dbpool/lib/dbconn"
	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

var (
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = apperrors.ErrPoolClosed
	// ErrTimeout is returned when no connection became idle within AcquireTimeout.
	ErrTimeout = apperrors.ErrAcquireTimeout
	// ErrHandleReleased is returned when a handle is used after Release.
	ErrHandleReleased = apperrors.ErrHandleReleased
)

// Config configures the connection pool.
type Config struct {
	// InitialSize connections are opened by New. The reaper never shrinks
	// the pool below this. Must be positive.
	InitialSize int
	// MaxSize is the hard cap on live connections. Must be >= InitialSize.
	MaxSize int
	// MaxIdleTime is how long a surplus connection may sit idle before the
	// reaper closes it. It is also the reaper's wake interval.
	MaxIdleTime time.Duration
	// AcquireTimeout bounds how long Acquire waits for an idle connection.
	AcquireTimeout time.Duration
	// GrowthRetryDelay is the first pause after a failed connect by the
	// growth worker. It doubles per consecutive failure.
	// Default: 100 milliseconds
	GrowthRetryDelay time.Duration
	// MaxGrowthRetryDelay caps the growth worker's backoff.
	// Default: 5 seconds
	MaxGrowthRetryDelay time.Duration
	// DegradedThreshold is the number of consecutive connect failures after
	// which the pool reports itself degraded.
	// Default: 3
	DegradedThreshold int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		InitialSize:         1,
		MaxSize:             10,
		MaxIdleTime:         10 * time.Minute,
		AcquireTimeout:      30 * time.Second,
		GrowthRetryDelay:    100 * time.Millisecond,
		MaxGrowthRetryDelay: 5 * time.Second,
		DegradedThreshold:   3,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch {
	case c.InitialSize <= 0:
		return fmt.Errorf("pool: initial size must be positive: %w", apperrors.ErrInvalidInput)
	case c.MaxSize < c.InitialSize:
		return fmt.Errorf("pool: max size %d below initial size %d: %w", c.MaxSize, c.InitialSize, apperrors.ErrInvalidInput)
	case c.MaxIdleTime <= 0:
		return fmt.Errorf("pool: max idle time must be positive: %w", apperrors.ErrInvalidInput)
	case c.AcquireTimeout <= 0:
		return fmt.Errorf("pool: acquire timeout must be positive: %w", apperrors.ErrInvalidInput)
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.GrowthRetryDelay <= 0 {
		c.GrowthRetryDelay = def.GrowthRetryDelay
	}
	if c.MaxGrowthRetryDelay < c.GrowthRetryDelay {
		c.MaxGrowthRetryDelay = max(def.MaxGrowthRetryDelay, c.GrowthRetryDelay)
	}
	if c.DegradedThreshold <= 0 {
		c.DegradedThreshold = def.DegradedThreshold
	}
	return c
}

// pooledConn is owned either by the idle queue or by exactly one Handle.
type pooledConn struct {
	conn      dbconn.Conn
	createdAt time.Time
}

// Pool is a bounded connection pool. It is safe for concurrent use.
type Pool struct {
	dial   dbconn.Dialer
	config Config

	// ctx is cancelled by Close and stops both workers.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu sync.Mutex
	// available is signalled when the idle queue may have become non-empty.
	available *sync.Cond
	// starved is signalled when the idle queue may have become empty.
	starved *sync.Cond
	// idle is ordered oldest-released first.
	idle []*pooledConn
	// numOpen counts idle plus borrowed connections.
	numOpen int
	// pending counts connects in flight in the growth worker.
	pending         int
	connectFailures int
	closed          bool

	acquireCount    uint64
	acquireSuccess  uint64
	acquireFailed   uint64
	acquireTimeouts uint64
	releaseCount    uint64
	created         uint64
	reaped          uint64
	connectErrors   uint64
}

// New opens cfg.InitialSize connections with dial and starts the growth
// worker and the idle reaper.
//
// If any initial connection fails, the ones already opened are closed and
// the error is returned; no goroutines are left running.
func New(ctx context.Context, dial dbconn.Dialer, cfg Config) (*Pool, error) {
	if dial == nil {
		return nil, fmt.Errorf("pool: nil dialer: %w", apperrors.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	p := &Pool{
		dial:   dial,
		config: cfg,
		idle:   make([]*pooledConn, 0, cfg.MaxSize),
	}
	p.available = sync.NewCond(&p.mu)
	p.starved = sync.NewCond(&p.mu)

	for i := 0; i < cfg.InitialSize; i++ {
		conn, err := dial(ctx)
		if err != nil {
			atomic.AddUint64(&p.connectErrors, 1)
			PoolConnectFailuresTotal.Inc()
			for _, pc := range p.idle {
				pc.conn.Close()
			}
			return nil, fmt.Errorf("pool: opening initial connection %d of %d: %w", i+1, cfg.InitialSize, err)
		}
		conn.Touch()
		p.idle = append(p.idle, &pooledConn{conn: conn, createdAt: time.Now()})
		p.numOpen++
		atomic.AddUint64(&p.created, 1)
		PoolCreatedTotal.Inc()
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.wg.Add(2)
	go p.growLoop()
	go p.reapLoop()

	UpdateMetrics(p.Stats())
	log.WithField("initialSize", cfg.InitialSize).
		WithField("maxSize", cfg.MaxSize).
		WithField("maxIdleTime", cfg.MaxIdleTime).
		Debug("pool created")
	return p, nil
}

// Config returns the configuration in effect, defaults applied.
func (p *Pool) Config() Config {
	return p.config
}

// Acquire borrows an idle connection, waiting up to AcquireTimeout (or
// until ctx is done, if sooner) for one to become available.
//
// It returns ErrTimeout if the timeout elapsed with the queue still empty,
// ctx.Err() if ctx ended first, and ErrPoolClosed after Close. A failed
// Acquire has no effect on the pool.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	start := time.Now()
	atomic.AddUint64(&p.acquireCount, 1)
	PoolAcquireTotal.Inc()

	acquireCtx, cancel := context.WithTimeout(ctx, p.config.AcquireTimeout)
	defer cancel()
	stopWake := context.AfterFunc(acquireCtx, func() {
		p.mu.Lock()
		p.available.Broadcast()
		p.mu.Unlock()
	})
	defer stopWake()

	p.mu.Lock()
	if len(p.idle) == 0 && !p.closed {
		// Wake the growth worker in case it gave up waiting on an earlier
		// empty queue, e.g. after the reaper freed capacity.
		p.starved.Signal()
	}
	for len(p.idle) == 0 && !p.closed && acquireCtx.Err() == nil {
		log.Debug("waiting for available connection")
		p.available.Wait()
	}

	if p.closed {
		p.mu.Unlock()
		p.recordAcquireFailure(false)
		return nil, ErrPoolClosed
	}
	if len(p.idle) == 0 {
		p.mu.Unlock()
		if err := ctx.Err(); err != nil {
			p.recordAcquireFailure(false)
			return nil, err
		}
		p.recordAcquireFailure(true)
		log.WithField("timeout", p.config.AcquireTimeout).Debug("acquire timed out")
		return nil, ErrTimeout
	}

	pc := p.idle[0]
	p.idle[0] = nil
	p.idle = p.idle[1:]
	if len(p.idle) == 0 {
		p.starved.Signal()
	}
	UpdateMetrics(p.statsLocked())
	p.mu.Unlock()

	atomic.AddUint64(&p.acquireSuccess, 1)
	PoolAcquireSuccessTotal.Inc()
	PoolAcquireLatency.ObserveDuration(time.Since(start))
	return newHandle(p, pc), nil
}

func (p *Pool) recordAcquireFailure(timeout bool) {
	atomic.AddUint64(&p.acquireFailed, 1)
	PoolAcquireFailedTotal.Inc()
	if timeout {
		atomic.AddUint64(&p.acquireTimeouts, 1)
		PoolAcquireTimeoutTotal.Inc()
	}
}

// Do acquires a connection, runs fn with it and releases it, even if fn
// panics.
func (p *Pool) Do(ctx context.Context, fn func(h *Handle) error) error {
	h, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(h)
}

// release returns a borrowed connection to the back of the idle queue.
// After Close the connection is destroyed instead.
func (p *Pool) release(pc *pooledConn) {
	atomic.AddUint64(&p.releaseCount, 1)
	PoolReleaseTotal.Inc()

	p.mu.Lock()
	if p.closed {
		p.numOpen--
		UpdateMetrics(p.statsLocked())
		p.mu.Unlock()
		p.destroy(pc, "pool closed")
		return
	}
	pc.conn.Touch()
	p.idle = append(p.idle, pc)
	p.available.Broadcast()
	UpdateMetrics(p.statsLocked())
	p.mu.Unlock()
}

// destroy closes the underlying connection. Callers must already have
// removed pc from the idle queue and decremented numOpen.
func (p *Pool) destroy(pc *pooledConn, reason string) {
	if err := pc.conn.Close(); err != nil {
		log.WithError(err).WithField("reason", reason).Warn("error closing connection")
		return
	}
	log.WithField("reason", reason).WithField("age", time.Since(pc.createdAt)).Debug("connection closed")
}

// Close stops the background workers, closes every idle connection and
// wakes all waiting callers with ErrPoolClosed. Borrowed connections are
// closed when their handles are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.numOpen -= len(idle)
	p.cancel()
	p.available.Broadcast()
	p.starved.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()

	for _, pc := range idle {
		p.destroy(pc, "pool closed")
	}
	UpdateMetrics(p.Stats())
	log.WithField("closed", len(idle)).Debug("pool closed")
	return nil
}

// Stats describes the pool at one instant.
type Stats struct {
	// InitialSize is the floor the reaper keeps.
	InitialSize int
	// MaxSize is the maximum pool size.
	MaxSize int
	// NumOpen is the current number of live connections.
	NumOpen int
	// NumIdle is the current number of idle connections.
	NumIdle int
	// NumInUse is the number of connections currently borrowed.
	NumInUse int
	// AcquireCount is the total number of acquire attempts.
	AcquireCount uint64
	// AcquireSuccess is the number of successful acquires.
	AcquireSuccess uint64
	// AcquireFailed is the number of failed acquires, timeouts included.
	AcquireFailed uint64
	// AcquireTimeouts is the number of acquires that hit AcquireTimeout.
	AcquireTimeouts uint64
	// ReleaseCount is the number of releases.
	ReleaseCount uint64
	// Created is the number of connections ever opened.
	Created uint64
	// Reaped is the number of connections closed for idling.
	Reaped uint64
	// ConnectFailures is the total number of failed connects.
	ConnectFailures uint64
	// ConsecutiveConnectFailures resets on the next successful connect.
	ConsecutiveConnectFailures int
	// Degraded is set while ConsecutiveConnectFailures >= DegradedThreshold.
	Degraded bool
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

// statsLocked must be called with p.mu held. The gauges are refreshed from
// it on every state change so a scrape never sees a stale pool.
func (p *Pool) statsLocked() Stats {
	return Stats{
		InitialSize:                p.config.InitialSize,
		MaxSize:                    p.config.MaxSize,
		NumOpen:                    p.numOpen,
		NumIdle:                    len(p.idle),
		NumInUse:                   p.numOpen - len(p.idle),
		AcquireCount:               atomic.LoadUint64(&p.acquireCount),
		AcquireSuccess:             atomic.LoadUint64(&p.acquireSuccess),
		AcquireFailed:              atomic.LoadUint64(&p.acquireFailed),
		AcquireTimeouts:            atomic.LoadUint64(&p.acquireTimeouts),
		ReleaseCount:               atomic.LoadUint64(&p.releaseCount),
		Created:                    atomic.LoadUint64(&p.created),
		Reaped:                     atomic.LoadUint64(&p.reaped),
		ConnectFailures:            atomic.LoadUint64(&p.connectErrors),
		ConsecutiveConnectFailures: p.connectFailures,
		Degraded:                   p.connectFailures >= p.config.DegradedThreshold,
	}
}

// IsTimeout reports whether err is an acquire timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
