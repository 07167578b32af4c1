//go:build cgo_sqlite

package main

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// initDB opens the model database with mattn's cgo driver. Its DSN options
// differ from modernc's, e.g. "_busy_timeout=5000&_journal_mode=WAL".
func initDB(dataSource string) (*sql.DB, error) {
	return sql.Open("sqlite3", dataSource)
}
