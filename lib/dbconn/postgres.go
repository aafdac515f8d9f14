package dbconn

import (
	"context"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

const pgCloseTimeout = 5 * time.Second

// pgConn is a single pgx session.
type pgConn struct {
	activity
	conn *pgx.Conn
}

func postgresDSN(ep Endpoint, cred Credentials, dbname string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cred.Username, cred.Password),
		Host:   ep.Address(),
		Path:   "/" + dbname,
	}
	return u.String()
}

func (c *pgConn) Connect(ctx context.Context, ep Endpoint, cred Credentials, dbname string) error {
	if c.conn != nil {
		return apperrors.Wrap(apperrors.CodeState, "connect "+DriverPostgres, apperrors.ErrInvalidState)
	}
	conn, err := pgx.Connect(ctx, postgresDSN(ep, cred, dbname))
	if err != nil {
		return apperrors.Connection(DriverPostgres, err)
	}
	c.conn = conn
	c.Touch()
	log.WithField("driver", DriverPostgres).WithField("endpoint", ep.Address()).Debug("database connection opened")
	return nil
}

func (c *pgConn) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	if c.conn == nil {
		return 0, apperrors.ErrNotConnected
	}
	tag, err := c.conn.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *pgConn) Query(ctx context.Context, stmt string, args ...any) (*ResultSet, error) {
	if c.conn == nil {
		return nil, apperrors.ErrNotConnected
	}
	rows, err := c.conn.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	rs := &ResultSet{Columns: make([]string, len(fields))}
	for i, f := range fields {
		rs.Columns[i] = f.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, vals)
	}
	return rs, rows.Err()
}

func (c *pgConn) Close() error {
	if c.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), pgCloseTimeout)
	defer cancel()
	err := c.conn.Close(ctx)
	c.conn = nil
	log.WithField("driver", DriverPostgres).Debug("database connection closed")
	return err
}
