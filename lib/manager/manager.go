// Package manager owns the process-wide connection pool. The pool is built
// lazily from a configuration file on first use; concurrent first callers
// all receive the same pool or the same construction error.
package manager

import (
	"context"
	"os"
	"sync"

	"github.com/go-i2p/dbpool/lib/config"
	"github.com/go-i2p/dbpool/lib/dbconn"
	"github.com/go-i2p/dbpool/lib/pool"
)

const (
	// DefaultConfigPath is read when no path was configured.
	DefaultConfigPath = "mysql.ini"
	// ConfigPathEnv overrides DefaultConfigPath.
	ConfigPathEnv = "DBPOOL_CONFIG"
)

// DefaultPath returns the config path used when Configure was never called.
func DefaultPath() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p
	}
	return DefaultConfigPath
}

// PoolConfig maps a loaded configuration onto pool settings.
func PoolConfig(c *config.Config) pool.Config {
	cfg := pool.DefaultConfig()
	cfg.InitialSize = c.InitSize
	cfg.MaxSize = c.MaxSize
	cfg.MaxIdleTime = c.MaxIdleTime.Duration()
	cfg.AcquireTimeout = c.ConnectionTimeout.Duration()
	return cfg
}

// generation is one build of the pool. Shutdown starts a new generation;
// a build that finishes after its generation was retired closes its pool.
type generation struct {
	once sync.Once
	// built is set under Manager.mu once pool and err are final.
	built bool
	pool  *pool.Pool
	err   error
}

// Manager builds one pool on first use and hands it to every caller.
type Manager struct {
	mu   sync.Mutex
	gen  *generation
	path string
	dial dbconn.Dialer
}

// New returns a Manager reading path. An empty path means DefaultPath at
// initialization time.
func New(path string) *Manager {
	return &Manager{gen: new(generation), path: path}
}

// Configure sets the config file read by the next initialization.
func (m *Manager) Configure(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.path = path
}

// SetDialer replaces the driver chosen by the config file. A nil dialer
// restores the default.
func (m *Manager) SetDialer(dial dbconn.Dialer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dial = dial
}

// Get returns the pool, building it on the first call. A failed build is
// remembered and returned to every caller until Shutdown. If Shutdown runs
// while the pool is being built, the new pool is closed and Get returns
// pool.ErrPoolClosed.
func (m *Manager) Get() (*pool.Pool, error) {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	gen.once.Do(func() { m.init(gen) })

	m.mu.Lock()
	defer m.mu.Unlock()
	return gen.pool, gen.err
}

func (m *Manager) init(gen *generation) {
	m.mu.Lock()
	path, dial := m.path, m.dial
	m.mu.Unlock()

	if path == "" {
		path = DefaultPath()
	}

	p, err := build(path, dial)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		if p != nil {
			log.WithField("path", path).Debug("closing pool built during shutdown")
			p.Close()
		}
		m.mu.Lock()
		gen.pool, gen.err = nil, pool.ErrPoolClosed
	} else {
		gen.pool, gen.err = p, err
	}
	gen.built = true
	m.mu.Unlock()
}

func build(path string, dial dbconn.Dialer) (*pool.Pool, error) {
	cfg, err := config.Load(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Error("failed to load pool configuration")
		return nil, err
	}

	if dial == nil {
		dial, err = cfg.Dialer()
		if err != nil {
			return nil, err
		}
	}

	p, err := pool.New(context.Background(), dial, PoolConfig(cfg))
	if err != nil {
		log.WithError(err).WithField("endpoint", cfg.Endpoint().Address()).Error("failed to open connection pool")
		return nil, err
	}

	log.WithField("path", path).
		WithField("driver", cfg.Driver).
		WithField("initSize", cfg.InitSize).
		WithField("maxSize", cfg.MaxSize).
		Info("connection pool ready")
	return p, nil
}

// Acquire borrows a connection from the managed pool.
func (m *Manager) Acquire(ctx context.Context) (*pool.Handle, error) {
	p, err := m.Get()
	if err != nil {
		return nil, err
	}
	return p.Acquire(ctx)
}

// Shutdown closes the pool, if one was built, and forgets it and any cached
// error so the next Get starts over. A build still in progress is not
// waited for; it closes its own pool when it finishes.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	old := m.gen
	m.gen = new(generation)
	var p *pool.Pool
	if old.built {
		p = old.pool
	}
	m.mu.Unlock()

	if p == nil {
		return nil
	}
	log.Debug("shutting down connection pool")
	return p.Close()
}

var std = New("")

// Default returns the process-wide Manager.
func Default() *Manager { return std }

// Configure sets the config file of the process-wide pool.
func Configure(path string) { std.Configure(path) }

// SetDialer overrides the driver of the process-wide pool.
func SetDialer(dial dbconn.Dialer) { std.SetDialer(dial) }

// Get returns the process-wide pool.
func Get() (*pool.Pool, error) { return std.Get() }

// Acquire borrows a connection from the process-wide pool.
func Acquire(ctx context.Context) (*pool.Handle, error) { return std.Acquire(ctx) }

// Shutdown closes the process-wide pool.
func Shutdown() error { return std.Shutdown() }
