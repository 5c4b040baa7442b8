// Package analyzer turns a SELECT into the driver's EXPLAIN statement and
// reads the plan it returns into one Plan shape for MySQL, PostgreSQL and SQLite.
package analyzer

import (
	"database/sql"
	"fmt"
	"strings"
)

// Plan summarizes an execution plan.
type Plan struct {
	Driver        string  // mysql, postgres or sqlite
	Cost          float64 // driver-specific units; 0 on sqlite
	EstimatedRows int64   // 0 on sqlite

	UsesIndex bool
	IndexName string // first index seen
	FullScan  bool

	Filesort  bool // rows are sorted outside an index
	TempTable bool // a temporary table or b-tree is built

	Raw string // EXPLAIN output as returned by the database
}

// Warnings lists the plan properties worth a log line.
func (p *Plan) Warnings() []string {
	var w []string
	if p.FullScan {
		w = append(w, "full table scan")
	}
	if p.Filesort {
		w = append(w, "filesort")
	}
	if p.TempTable {
		w = append(w, "temporary table")
	}
	return w
}

// Statement wraps query in the EXPLAIN form understood by driver. Binds stay
// untouched, so the result runs with the same arguments as query.
func Statement(driver, query string) (string, error) {
	switch driver {
	case "mysql":
		return "EXPLAIN FORMAT=JSON " + query, nil
	case "postgres":
		return "EXPLAIN (FORMAT JSON) " + query, nil
	case "sqlite":
		return "EXPLAIN QUERY PLAN " + query, nil
	}
	return "", fmt.Errorf("analyzer: no EXPLAIN support for %q", driver)
}

// Read parses the rows of a statement built by Statement.
func Read(driver string, rows *sql.Rows) (*Plan, error) {
	switch driver {
	case "mysql", "postgres":
		var raw string
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("analyzer: empty EXPLAIN output")
		}
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("analyzer: scan EXPLAIN output: %w", err)
		}
		if driver == "mysql" {
			return ParseMySQL(raw)
		}
		return ParsePostgres(raw)

	case "sqlite":
		var lines []string
		for rows.Next() {
			var id, parent, notused int
			var detail string
			if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
				return nil, fmt.Errorf("analyzer: scan EXPLAIN output: %w", err)
			}
			lines = append(lines, detail)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return ParseSQLite(lines), nil
	}
	return nil, fmt.Errorf("analyzer: no EXPLAIN support for %q", driver)
}

func (p *Plan) useIndex(name string) {
	p.UsesIndex = true
	if p.IndexName == "" {
		p.IndexName = name
	}
}

func firstWord(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " ("); i >= 0 {
		return s[:i]
	}
	return s
}
