// Package testutil provides in-memory database doubles for exercising the
// pool without a database server.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-i2p/dbpool/lib/dbconn"
	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

// ErrMockRefused is the default cause of a failing MockDialer.
var ErrMockRefused = errors.New("mock: connection refused")

// MockConn is a dbconn.Conn that records the statements run on it.
type MockConn struct {
	ID int

	mu         sync.Mutex
	lastActive time.Time
	closed     bool
	statements []string
	execErr    error
}

// Connect is a no-op; MockDialer returns connections already connected.
func (c *MockConn) Connect(context.Context, dbconn.Endpoint, dbconn.Credentials, string) error {
	return nil
}

// Exec records stmt and reports one affected row.
func (c *MockConn) Exec(ctx context.Context, stmt string, _ ...any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, apperrors.ErrNotConnected
	}
	if c.execErr != nil {
		return 0, c.execErr
	}
	c.statements = append(c.statements, stmt)
	return 1, nil
}

// Query records stmt and returns the connection ID as a single row.
func (c *MockConn) Query(ctx context.Context, stmt string, _ ...any) (*dbconn.ResultSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, apperrors.ErrNotConnected
	}
	c.statements = append(c.statements, stmt)
	return &dbconn.ResultSet{Columns: []string{"id"}, Rows: [][]any{{c.ID}}}, nil
}

func (c *MockConn) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActive = time.Now()
}

func (c *MockConn) IdleDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastActive)
}

func (c *MockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (c *MockConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Statements returns a copy of the statements run on c.
func (c *MockConn) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.statements...)
}

// MockDialer hands out MockConns and can be switched to fail.
type MockDialer struct {
	mu      sync.Mutex
	conns   []*MockConn
	dials   int
	failErr error
	execErr error
}

// NewMockDialer returns a dialer that succeeds until SetFailing is called.
func NewMockDialer() *MockDialer {
	return &MockDialer{}
}

// Dial implements dbconn.Dialer.
func (d *MockDialer) Dial(ctx context.Context) (dbconn.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failErr != nil {
		return nil, apperrors.Connection("mock", d.failErr)
	}
	c := &MockConn{ID: d.dials, lastActive: time.Now(), execErr: d.execErr}
	d.conns = append(d.conns, c)
	return c, nil
}

// Dialer returns Dial as a dbconn.Dialer.
func (d *MockDialer) Dialer() dbconn.Dialer {
	return d.Dial
}

// SetFailing makes later dials fail with err, or ErrMockRefused if err is
// nil. Use Recover to succeed again.
func (d *MockDialer) SetFailing(err error) {
	if err == nil {
		err = ErrMockRefused
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failErr = err
}

// Recover makes later dials succeed.
func (d *MockDialer) Recover() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failErr = nil
}

// SetExecError makes every statement on connections dialed afterwards fail
// with err.
func (d *MockDialer) SetExecError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execErr = err
}

// Dials returns the number of dial attempts, failed ones included.
func (d *MockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Conns returns the connections dialed so far.
func (d *MockDialer) Conns() []*MockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MockConn(nil), d.conns...)
}

// Statements returns the number of statements run across all connections.
func (d *MockDialer) Statements() int {
	n := 0
	for _, c := range d.Conns() {
		n += len(c.Statements())
	}
	return n
}

// Closed returns the number of dialed connections that have been closed.
func (d *MockDialer) Closed() int {
	n := 0
	for _, c := range d.Conns() {
		if c.IsClosed() {
			n++
		}
	}
	return n
}
