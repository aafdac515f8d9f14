package config

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// parseKeyValue reads the flat key=value format, one setting per line.
// Blank lines and lines starting with '#' or ';' are skipped, as are lines
// without '='. Unknown keys are ignored so that files shared with other
// tools still load.
func parseKeyValue(data []byte, cfg *Config) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if err := setKey(cfg, key, value); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return sc.Err()
}

func setKey(cfg *Config, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not an integer", key, value)
		}
		return n, nil
	}

	var err error
	switch key {
	case "driver":
		cfg.Driver = value
	case "ip":
		cfg.IP = value
	case "port":
		cfg.Port, err = atoi()
	case "username":
		cfg.Username = value
	case "password":
		cfg.Password = value
	case "dbname":
		cfg.DBName = value
	case "initSize":
		cfg.InitSize, err = atoi()
	case "maxSize":
		cfg.MaxSize, err = atoi()
	case "maxIdleTime":
		var n int
		n, err = atoi()
		cfg.MaxIdleTime = Millis(n)
	case "connectionTimeOut":
		var n int
		n, err = atoi()
		cfg.ConnectionTimeout = Millis(n)
	default:
		log.WithField("key", key).Debug("ignoring unknown config key")
	}
	return err
}
