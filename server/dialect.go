package server

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect papers over the few differences between Postgres and SQLite.
// Queries are written with $N placeholders and rebound for SQLite.
type dialect struct {
	driver string
}

var (
	postgresDialect = dialect{driver: "postgres"}
	sqliteDialect   = dialect{driver: "sqlite"}
)

var placeholderRE = regexp.MustCompile(`\$\d+`)

func (d dialect) rebind(query string) string {
	if d.driver != "sqlite" {
		return query
	}
	return placeholderRE.ReplaceAllString(query, "?")
}

func (d dialect) serialPK() string {
	if d.driver == "sqlite" {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "BIGSERIAL PRIMARY KEY"
}

// openDatabase picks the driver from the URL. "sqlite:<path>" (including
// "sqlite::memory:") selects SQLite, anything else is handed to lib/pq.
func openDatabase(url string) (*sql.DB, dialect, error) {
	d := postgresDialect
	dsn := url
	if strings.HasPrefix(url, "sqlite:") {
		d = sqliteDialect
		dsn = strings.TrimPrefix(url, "sqlite:")
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, d, fmt.Errorf("failed to open database: %w", err)
	}
	if d.driver == "sqlite" {
		// One connection serializes writers and keeps :memory: a single database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, d, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, d, nil
}

// Timestamps are stored as fixed-width UTC text so they order lexically on
// both backends.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
