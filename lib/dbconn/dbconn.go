// Package dbconn provides single physical connections to a backing database.
//
// A Conn is deliberately not a pool: it owns exactly one server session and
// tracks when it was last active so that an owner can decide when it has sat
// idle for too long. Pooling is layered on top by package pool.
//
// Supported drivers:
//   - "mysql"    via github.com/go-sql-driver/mysql
//   - "postgres" via github.com/jackc/pgx/v5
//   - "sqlite3"  via github.com/mattn/go-sqlite3 (dbname is the file path)
package dbconn

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

// Driver names accepted by New and NewDialer.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Endpoint is the network location of the database server.
type Endpoint struct {
	Host string
	Port int
}

// Address returns host:port, bracketing IPv6 literals.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Credentials authenticate a connection.
type Credentials struct {
	Username string
	Password string
}

// String never prints the password.
func (c Credentials) String() string {
	return c.Username + ":****"
}

// ResultSet is a fully materialised query result.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Querier runs statements. It is all a borrower of a pooled connection
// gets to see.
type Querier interface {
	// Exec runs a statement that does not return rows and reports rows affected.
	Exec(ctx context.Context, stmt string, args ...any) (int64, error)
	// Query runs a statement and returns all rows.
	Query(ctx context.Context, stmt string, args ...any) (*ResultSet, error)
}

// Conn is one physical database connection.
//
// A Conn is not safe for concurrent use; ownership is expected to pass
// between goroutines, never to be shared.
type Conn interface {
	Querier
	// Connect opens the session. It must be called exactly once.
	Connect(ctx context.Context, ep Endpoint, cred Credentials, dbname string) error
	// Touch marks the connection as active now.
	Touch()
	// IdleDuration reports the time elapsed since the last Touch.
	IdleDuration() time.Duration
	// Close terminates the session.
	Close() error
}

// Dialer returns a connected Conn.
type Dialer func(ctx context.Context) (Conn, error)

// New returns an unconnected Conn for the named driver.
func New(driver string) (Conn, error) {
	switch driver {
	case DriverMySQL:
		return newSQLConn(DriverMySQL, mysqlDSN), nil
	case DriverSQLite:
		return newSQLConn(DriverSQLite, sqliteDSN), nil
	case DriverPostgres:
		return &pgConn{}, nil
	default:
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "driver "+strconv.Quote(driver), apperrors.ErrUnknownDriver)
	}
}

// NewDialer returns a Dialer that creates and connects driver connections
// to ep. The driver name is checked immediately.
func NewDialer(driver string, ep Endpoint, cred Credentials, dbname string) (Dialer, error) {
	if _, err := New(driver); err != nil {
		return nil, err
	}
	return func(ctx context.Context) (Conn, error) {
		c, err := New(driver)
		if err != nil {
			return nil, err
		}
		if err := c.Connect(ctx, ep, cred, dbname); err != nil {
			return nil, err
		}
		return c, nil
	}, nil
}

// activity records the last time a connection was active.
// It is embedded by every driver implementation.
type activity struct {
	mu   sync.Mutex
	last time.Time
}

// Touch marks the connection as active now.
func (a *activity) Touch() {
	a.mu.Lock()
	a.last = time.Now()
	a.mu.Unlock()
}

// IdleDuration reports the time since the last Touch.
func (a *activity) IdleDuration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Since(a.last)
}
