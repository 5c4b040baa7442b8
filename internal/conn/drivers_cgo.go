//go:build cgo

package conn

import _ "github.com/mattn/go-sqlite3" // registers "sqlite3"

func init() {
	RegisterDriver(Driver{
		Type:      "sqlite3",
		SQLDriver: "sqlite3",
		Dialect:   "sqlite",
		DSN:       sqliteDSN,
		Validate:  requireFile,
	})
}
