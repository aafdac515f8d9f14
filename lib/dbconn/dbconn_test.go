package dbconn

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

func TestEndpointAddress(t *testing.T) {
	tests := []struct {
		ep   Endpoint
		want string
	}{
		{Endpoint{Host: "127.0.0.1", Port: 3306}, "127.0.0.1:3306"},
		{Endpoint{Host: "db.internal", Port: 5432}, "db.internal:5432"},
		{Endpoint{Host: "::1", Port: 3306}, "[::1]:3306"},
	}
	for _, tc := range tests {
		if got := tc.ep.Address(); got != tc.want {
			t.Errorf("Address() = %q, want %q", got, tc.want)
		}
	}
}

func TestCredentialsStringHidesPassword(t *testing.T) {
	c := Credentials{Username: "root", Password: "hunter2"}
	if strings.Contains(c.String(), "hunter2") {
		t.Errorf("String() leaked password: %q", c.String())
	}
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New("oracle")
	if !errors.Is(err, apperrors.ErrUnknownDriver) {
		t.Fatalf("New(oracle) error = %v, want ErrUnknownDriver", err)
	}

	_, err = NewDialer("oracle", Endpoint{}, Credentials{}, "x")
	if !apperrors.IsInvalidInput(err) {
		t.Fatalf("NewDialer(oracle) error = %v, want invalid input", err)
	}
}

func TestNewKnownDrivers(t *testing.T) {
	for _, d := range []string{DriverMySQL, DriverPostgres, DriverSQLite} {
		c, err := New(d)
		if err != nil {
			t.Fatalf("New(%s): %v", d, err)
		}
		if _, err := c.Exec(context.Background(), "SELECT 1"); !errors.Is(err, apperrors.ErrNotConnected) {
			t.Errorf("%s: Exec before Connect = %v, want ErrNotConnected", d, err)
		}
		if err := c.Close(); err != nil {
			t.Errorf("%s: Close on unconnected conn: %v", d, err)
		}
	}
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(Endpoint{Host: "127.0.0.1", Port: 3306}, Credentials{Username: "root", Password: "secret"}, "chat")

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if cfg.Addr != "127.0.0.1:3306" || cfg.Net != "tcp" {
		t.Errorf("addr = %s/%s", cfg.Net, cfg.Addr)
	}
	if cfg.User != "root" || cfg.Passwd != "secret" || cfg.DBName != "chat" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.ParseTime {
		t.Error("ParseTime should be enabled")
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(Endpoint{Host: "db", Port: 5433}, Credentials{Username: "app", Password: "p@ss word"}, "orders")

	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("ParseConfig(%q): %v", dsn, err)
	}
	if cfg.Host != "db" || cfg.Port != 5433 {
		t.Errorf("host = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.User != "app" || cfg.Password != "p@ss word" || cfg.Database != "orders" {
		t.Errorf("unexpected config user=%q db=%q", cfg.User, cfg.Database)
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := sqliteDSN(Endpoint{}, Credentials{}, "/tmp/a.db"); got != "/tmp/a.db?_busy_timeout=5000" {
		t.Errorf("sqliteDSN = %q", got)
	}
	if got := sqliteDSN(Endpoint{}, Credentials{}, "file:x.db?mode=memory"); got != "file:x.db?mode=memory" {
		t.Errorf("sqliteDSN should keep explicit params, got %q", got)
	}
}

func TestActivity(t *testing.T) {
	var a activity
	a.Touch()
	time.Sleep(20 * time.Millisecond)

	if d := a.IdleDuration(); d < 20*time.Millisecond {
		t.Errorf("IdleDuration() = %v, want >= 20ms", d)
	}

	a.Touch()
	if d := a.IdleDuration(); d >= 20*time.Millisecond {
		t.Errorf("IdleDuration() after Touch = %v, want < 20ms", d)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pool.db")

	dial, err := NewDialer(DriverSQLite, Endpoint{}, Credentials{}, path)
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}
	c, err := dial(ctx)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if c.IdleDuration() > time.Second {
		t.Errorf("fresh connection should be recently active, idle %v", c.IdleDuration())
	}

	if _, err := c.Exec(ctx, `CREATE TABLE studentinfo (stuName TEXT, stuNo INTEGER, score REAL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	n, err := c.Exec(ctx, `INSERT INTO studentinfo (stuName, stuNo, score) VALUES (?, ?, ?), (?, ?, ?)`,
		"zhang san", 111, 66.0, "li si", 112, 70.5)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 2 {
		t.Errorf("rows affected = %d, want 2", n)
	}

	rs, err := c.Query(ctx, `SELECT stuName, stuNo FROM studentinfo ORDER BY stuNo`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rs.Len() != 2 {
		t.Fatalf("rows = %d, want 2", rs.Len())
	}
	if len(rs.Columns) != 2 || rs.Columns[0] != "stuName" {
		t.Errorf("columns = %v", rs.Columns)
	}
	if rs.Rows[0][0] != "zhang san" {
		t.Errorf("first row name = %v", rs.Rows[0][0])
	}

	if _, err := c.Exec(ctx, `INSERT INTO missing_table VALUES (1)`); err == nil {
		t.Error("statement against missing table should fail")
	}

	if err := c.Connect(ctx, Endpoint{}, Credentials{}, path); !apperrors.IsInvalidState(err) {
		t.Errorf("second Connect = %v, want invalid state", err)
	}
}
