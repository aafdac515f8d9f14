package dbconn

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

// dsnFunc renders a driver specific data source name.
type dsnFunc func(ep Endpoint, cred Credentials, dbname string) string

// sqlConn pins a database/sql handle to a single physical connection.
// The *sql.DB is limited to one open connection so the driver never dials
// behind our back; all statements go through the pinned *sql.Conn.
type sqlConn struct {
	activity
	driver string
	dsn    dsnFunc
	db     *sql.DB
	conn   *sql.Conn
}

func newSQLConn(driver string, dsn dsnFunc) *sqlConn {
	return &sqlConn{driver: driver, dsn: dsn}
}

func (c *sqlConn) Connect(ctx context.Context, ep Endpoint, cred Credentials, dbname string) error {
	if c.conn != nil {
		return apperrors.Wrap(apperrors.CodeState, "connect "+c.driver, apperrors.ErrInvalidState)
	}

	db, err := sql.Open(c.driver, c.dsn(ep, cred, dbname))
	if err != nil {
		return apperrors.Connection(c.driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return apperrors.Connection(c.driver, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return apperrors.Connection(c.driver, err)
	}

	c.db = db
	c.conn = conn
	c.Touch()
	log.WithField("driver", c.driver).WithField("endpoint", ep.Address()).Debug("database connection opened")
	return nil
}

func (c *sqlConn) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	if c.conn == nil {
		return 0, apperrors.ErrNotConnected
	}
	res, err := c.conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *sqlConn) Query(ctx context.Context, stmt string, args ...any) (*ResultSet, error) {
	if c.conn == nil {
		return nil, apperrors.ErrNotConnected
	}
	rows, err := c.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// Drivers may reuse []byte buffers between rows.
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	return rs, rows.Err()
}

func (c *sqlConn) Close() error {
	if c.db == nil {
		return nil
	}
	err := errors.Join(c.conn.Close(), c.db.Close())
	c.conn = nil
	c.db = nil
	log.WithField("driver", c.driver).Debug("database connection closed")
	return err
}
