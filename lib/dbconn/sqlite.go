package dbconn

import (
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteDSN uses dbname as the database file. Endpoint and credentials
// have no meaning for an embedded database and are ignored.
func sqliteDSN(_ Endpoint, _ Credentials, dbname string) string {
	if strings.Contains(dbname, "?") {
		return dbname
	}
	return dbname + "?_busy_timeout=5000"
}
