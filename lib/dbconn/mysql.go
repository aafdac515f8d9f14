package dbconn

import (
	"time"

	"github.com/go-sql-driver/mysql"
)

// mysqlDialTimeout bounds the TCP handshake when ctx carries no deadline.
const mysqlDialTimeout = 10 * time.Second

func mysqlDSN(ep Endpoint, cred Credentials, dbname string) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = ep.Address()
	cfg.User = cred.Username
	cfg.Passwd = cred.Password
	cfg.DBName = dbname
	cfg.ParseTime = true
	cfg.Timeout = mysqlDialTimeout
	return cfg.FormatDSN()
}
