// Package config loads dbpool settings.
//
// Three file formats are accepted, chosen by extension:
//   - .toml        TOML document
//   - .yaml, .yml  YAML document
//   - anything else the flat key=value format (e.g. mysql.ini)
//
// All formats share the same keys: driver, ip, port, username, password,
// dbname, initSize, maxSize, maxIdleTime and connectionTimeOut. Both time
// settings are integer milliseconds.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/go-i2p/dbpool/lib/dbconn"
	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

// Default configuration values
const (
	DefaultDriver            = dbconn.DriverMySQL
	DefaultIP                = "127.0.0.1"
	DefaultPort              = 3306
	DefaultUsername          = "root"
	DefaultInitSize          = 10
	DefaultMaxSize           = 1024
	DefaultMaxIdleTime       = Millis(60 * 1000)
	DefaultConnectionTimeout = Millis(100)
)

// Millis is a duration expressed as integer milliseconds in config files.
type Millis int64

// Duration converts m to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// Config holds the connection and pool settings.
type Config struct {
	// Driver selects the database driver: mysql, postgres or sqlite3
	Driver string `toml:"driver" yaml:"driver"`
	// IP is the database server host
	IP string `toml:"ip" yaml:"ip"`
	// Port is the database server port
	Port int `toml:"port" yaml:"port"`
	// Username and Password authenticate every connection
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
	// DBName is the database (or sqlite file) to open
	DBName string `toml:"dbname" yaml:"dbname"`
	// InitSize connections are opened at startup and never reaped
	InitSize int `toml:"initSize" yaml:"initSize"`
	// MaxSize caps the number of live connections
	MaxSize int `toml:"maxSize" yaml:"maxSize"`
	// MaxIdleTime is both the reaper interval and the idle threshold
	MaxIdleTime Millis `toml:"maxIdleTime" yaml:"maxIdleTime"`
	// ConnectionTimeout bounds how long a caller waits for a connection
	ConnectionTimeout Millis `toml:"connectionTimeOut" yaml:"connectionTimeOut"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Driver:            DefaultDriver,
		IP:                DefaultIP,
		Port:              DefaultPort,
		Username:          DefaultUsername,
		InitSize:          DefaultInitSize,
		MaxSize:           DefaultMaxSize,
		MaxIdleTime:       DefaultMaxIdleTime,
		ConnectionTimeout: DefaultConnectionTimeout,
	}
}

// Load reads configuration from path, applies DBPOOL_* environment
// overrides and validates the result. A missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Configuration("reading config file", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = parseKeyValue(data, cfg)
	}
	if err != nil {
		return nil, apperrors.Configuration("parsing config file", err)
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.WithField("path", path).
		WithField("driver", cfg.Driver).
		WithField("initSize", cfg.InitSize).
		WithField("maxSize", cfg.MaxSize).
		Debug("config loaded")
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Driver {
	case dbconn.DriverMySQL, dbconn.DriverPostgres:
		if c.IP == "" {
			return apperrors.Configuration("ip is required", nil)
		}
		if c.Port < 1 || c.Port > 65535 {
			return apperrors.Configuration("port must be between 1 and 65535", nil)
		}
	case dbconn.DriverSQLite:
		if c.DBName == "" {
			return apperrors.Configuration("dbname is required for sqlite3", nil)
		}
	default:
		return apperrors.Configuration(fmt.Sprintf("unknown driver %q", c.Driver), nil)
	}
	if c.InitSize <= 0 {
		return apperrors.Configuration("initSize must be positive", nil)
	}
	if c.MaxSize < c.InitSize {
		return apperrors.Configuration("maxSize must be at least initSize", nil)
	}
	if c.MaxIdleTime <= 0 {
		return apperrors.Configuration("maxIdleTime must be positive", nil)
	}
	if c.ConnectionTimeout <= 0 {
		return apperrors.Configuration("connectionTimeOut must be positive", nil)
	}
	return nil
}

// Endpoint returns the server address.
func (c *Config) Endpoint() dbconn.Endpoint {
	return dbconn.Endpoint{Host: c.IP, Port: c.Port}
}

// Credentials returns the login credentials.
func (c *Config) Credentials() dbconn.Credentials {
	return dbconn.Credentials{Username: c.Username, Password: c.Password}
}

// Dialer returns a dbconn.Dialer for the configured driver and server.
func (c *Config) Dialer() (dbconn.Dialer, error) {
	return dbconn.NewDialer(c.Driver, c.Endpoint(), c.Credentials(), c.DBName)
}

// ApplyEnvOverrides overrides fields from DBPOOL_* environment variables.
func ApplyEnvOverrides(c *Config) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"DBPOOL_DRIVER", &c.Driver},
		{"DBPOOL_IP", &c.IP},
		{"DBPOOL_USERNAME", &c.Username},
		{"DBPOOL_PASSWORD", &c.Password},
		{"DBPOOL_DBNAME", &c.DBName},
	}
	for _, s := range strs {
		if v, ok := os.LookupEnv(s.env); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		env string
		set func(int64)
	}{
		{"DBPOOL_PORT", func(v int64) { c.Port = int(v) }},
		{"DBPOOL_INIT_SIZE", func(v int64) { c.InitSize = int(v) }},
		{"DBPOOL_MAX_SIZE", func(v int64) { c.MaxSize = int(v) }},
		{"DBPOOL_MAX_IDLE_TIME", func(v int64) { c.MaxIdleTime = Millis(v) }},
		{"DBPOOL_CONNECTION_TIMEOUT", func(v int64) { c.ConnectionTimeout = Millis(v) }},
	}
	for _, i := range ints {
		raw, ok := os.LookupEnv(i.env)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return apperrors.Configuration(i.env+" must be an integer", err)
		}
		i.set(v)
	}
	return nil
}
