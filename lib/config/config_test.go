package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-i2p/dbpool/lib/dbconn"
	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Driver != dbconn.DriverMySQL {
		t.Errorf("Driver = %q, want %q", cfg.Driver, dbconn.DriverMySQL)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.MaxIdleTime.Duration() != time.Minute {
		t.Errorf("MaxIdleTime = %v, want 1m", cfg.MaxIdleTime.Duration())
	}
	if cfg.ConnectionTimeout.Duration() != 100*time.Millisecond {
		t.Errorf("ConnectionTimeout = %v, want 100ms", cfg.ConnectionTimeout.Duration())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadKeyValue(t *testing.T) {
	path := writeFile(t, "mysql.ini", `# database settings
ip=10.0.0.5
port=3307
username=app
password=s3cret=with=equals
dbname=chat

initSize=2
maxSize=8
maxIdleTime=500
connectionTimeOut=50
unknownKey=whatever
no separator here
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.IP != "10.0.0.5" || cfg.Port != 3307 {
		t.Errorf("endpoint = %s", cfg.Endpoint().Address())
	}
	if cfg.Username != "app" || cfg.Password != "s3cret=with=equals" {
		t.Errorf("credentials = %q/%q", cfg.Username, cfg.Password)
	}
	if cfg.DBName != "chat" {
		t.Errorf("DBName = %q", cfg.DBName)
	}
	if cfg.InitSize != 2 || cfg.MaxSize != 8 {
		t.Errorf("sizes = %d/%d, want 2/8", cfg.InitSize, cfg.MaxSize)
	}
	if cfg.MaxIdleTime.Duration() != 500*time.Millisecond {
		t.Errorf("MaxIdleTime = %v, want 500ms", cfg.MaxIdleTime.Duration())
	}
	if cfg.ConnectionTimeout.Duration() != 50*time.Millisecond {
		t.Errorf("ConnectionTimeout = %v, want 50ms", cfg.ConnectionTimeout.Duration())
	}
	if cfg.Driver != dbconn.DriverMySQL {
		t.Errorf("Driver should default to mysql, got %q", cfg.Driver)
	}
}

func TestLoadKeyValueCRLF(t *testing.T) {
	path := writeFile(t, "mysql.ini", "ip=127.0.0.1\r\nport=3306\r\ninitSize=1\r\nmaxSize=2\r\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IP != "127.0.0.1" || cfg.Port != 3306 {
		t.Errorf("CR should be trimmed, got %q:%d", cfg.IP, cfg.Port)
	}
}

func TestLoadKeyValueBadInteger(t *testing.T) {
	path := writeFile(t, "mysql.ini", "port=abc\n")

	_, err := Load(path)
	if !apperrors.IsConfiguration(err) {
		t.Fatalf("Load error = %v, want configuration error", err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "pool.toml", `
driver = "postgres"
ip = "db.internal"
port = 5432
username = "svc"
dbname = "orders"
initSize = 3
maxSize = 12
maxIdleTime = 30000
connectionTimeOut = 250
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Driver != dbconn.DriverPostgres {
		t.Errorf("Driver = %q", cfg.Driver)
	}
	if cfg.InitSize != 3 || cfg.MaxSize != 12 {
		t.Errorf("sizes = %d/%d", cfg.InitSize, cfg.MaxSize)
	}
	if cfg.MaxIdleTime.Duration() != 30*time.Second {
		t.Errorf("MaxIdleTime = %v", cfg.MaxIdleTime.Duration())
	}
	if cfg.ConnectionTimeout.Duration() != 250*time.Millisecond {
		t.Errorf("ConnectionTimeout = %v", cfg.ConnectionTimeout.Duration())
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "pool.yaml", `
driver: sqlite3
dbname: /var/lib/app/app.db
initSize: 1
maxSize: 4
maxIdleTime: 1000
connectionTimeOut: 20
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Driver != dbconn.DriverSQLite || cfg.DBName != "/var/lib/app/app.db" {
		t.Errorf("driver/dbname = %q/%q", cfg.Driver, cfg.DBName)
	}
	if cfg.MaxSize != 4 {
		t.Errorf("MaxSize = %d", cfg.MaxSize)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeFile(t, "pool.toml", "initSize = [unterminated")

	if _, err := Load(path); !apperrors.IsConfiguration(err) {
		t.Fatalf("Load error = %v, want configuration error", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	if err == nil {
		t.Fatal("missing config file should be reported")
	}
	if !apperrors.IsConfiguration(err) {
		t.Errorf("error = %v, want configuration error", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"init equals max", func(c *Config) { c.InitSize, c.MaxSize = 4, 4 }, false},
		{"zero init", func(c *Config) { c.InitSize = 0 }, true},
		{"max below init", func(c *Config) { c.InitSize, c.MaxSize = 5, 4 }, true},
		{"zero idle time", func(c *Config) { c.MaxIdleTime = 0 }, true},
		{"zero timeout", func(c *Config) { c.ConnectionTimeout = 0 }, true},
		{"empty ip", func(c *Config) { c.IP = "" }, true},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
		{"unknown driver", func(c *Config) { c.Driver = "oracle" }, true},
		{"sqlite without dbname", func(c *Config) { c.Driver = dbconn.DriverSQLite }, true},
		{"sqlite ignores endpoint", func(c *Config) {
			c.Driver, c.DBName, c.IP, c.Port = dbconn.DriverSQLite, "x.db", "", 0
		}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !apperrors.IsConfiguration(err) {
				t.Errorf("Validate() error should be a configuration error, got %v", err)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DBPOOL_IP", "192.168.1.9")
	t.Setenv("DBPOOL_PORT", "3310")
	t.Setenv("DBPOOL_PASSWORD", "from-env")
	t.Setenv("DBPOOL_MAX_SIZE", "64")
	t.Setenv("DBPOOL_MAX_IDLE_TIME", "2500")

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides: %v", err)
	}
	if cfg.IP != "192.168.1.9" || cfg.Port != 3310 {
		t.Errorf("endpoint = %s", cfg.Endpoint().Address())
	}
	if cfg.Password != "from-env" {
		t.Errorf("Password = %q", cfg.Password)
	}
	if cfg.MaxSize != 64 {
		t.Errorf("MaxSize = %d", cfg.MaxSize)
	}
	if cfg.MaxIdleTime.Duration() != 2500*time.Millisecond {
		t.Errorf("MaxIdleTime = %v", cfg.MaxIdleTime.Duration())
	}
}

func TestApplyEnvOverridesBadInteger(t *testing.T) {
	t.Setenv("DBPOOL_INIT_SIZE", "ten")

	if err := ApplyEnvOverrides(DefaultConfig()); !apperrors.IsConfiguration(err) {
		t.Fatalf("error = %v, want configuration error", err)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeFile(t, "mysql.ini", "initSize=1\nmaxSize=2\n")
	t.Setenv("DBPOOL_MAX_SIZE", "0")

	if _, err := Load(path); !apperrors.IsConfiguration(err) {
		t.Fatalf("override making config invalid should fail validation, got %v", err)
	}
}

func TestDialerUnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = "oracle"
	if _, err := cfg.Dialer(); !apperrors.IsInvalidInput(err) {
		t.Errorf("Dialer() error = %v, want invalid input", err)
	}
}
