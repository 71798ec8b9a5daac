package main

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	. "github.com/fixxit/fixxit/internal/logging"
)

// store wraps the maintenance database. The schema is created when
// missing so the server can start against a fresh path.
type store struct {
	db *sql.DB
}

func openStore(cfg databaseConfig) (*store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", cfg.Path, cfg.BusyTimeoutMS)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema setup failed: %w", err)
	}

	L_info("database opened", "path", cfg.Path)
	return s, nil
}

func (s *store) Close() error { return s.db.Close() }

func (s *store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS machines (
			id INTEGER PRIMARY KEY,
			serial_number TEXT NOT NULL UNIQUE,
			model TEXT,
			manufacturer TEXT,
			location TEXT,
			status TEXT NOT NULL DEFAULT 'operational',
			installed_date TEXT
		);
		CREATE TABLE IF NOT EXISTS tickets (
			id INTEGER PRIMARY KEY,
			machine_id INTEGER REFERENCES machines(id),
			title TEXT,
			status TEXT NOT NULL DEFAULT 'open',
			priority TEXT NOT NULL DEFAULT 'medium',
			reported_by TEXT,
			created_at TEXT DEFAULT (datetime('now')),
			updated_at TEXT DEFAULT (datetime('now'))
		);
		CREATE TABLE IF NOT EXISTS service_history (
			id INTEGER PRIMARY KEY,
			machine_id INTEGER REFERENCES machines(id),
			technician_id INTEGER REFERENCES technicians(id),
			maintenance_type TEXT,
			description TEXT,
			parts_used TEXT,
			performed_at TEXT DEFAULT (datetime('now'))
		);
		CREATE TABLE IF NOT EXISTS parts (
			part_number TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT,
			stock_quantity INTEGER NOT NULL DEFAULT 0,
			min_stock INTEGER NOT NULL DEFAULT 0,
			location TEXT,
			unit_cost REAL
		);
		CREATE TABLE IF NOT EXISTS fault_codes (
			code TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			severity TEXT,
			troubleshooting TEXT
		);
		CREATE TABLE IF NOT EXISTS technicians (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			expertise TEXT,
			certification_level TEXT,
			available INTEGER NOT NULL DEFAULT 1,
			phone TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_machines_location ON machines(location);
		CREATE INDEX IF NOT EXISTS idx_tickets_machine ON tickets(machine_id);
		CREATE INDEX IF NOT EXISTS idx_history_machine ON service_history(machine_id);
	`)
	return err
}

// query runs a parameterized SELECT and renders the rows as generic
// maps for JSON serialization.
func (s *store) query(q string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// filterClause builds a WHERE clause from the given column=value pairs,
// skipping empty values. Text columns match case-insensitively with
// substring semantics for location and name columns.
type filter struct {
	clauses []string
	args    []any
}

func (f *filter) eq(col, v string) {
	if v == "" {
		return
	}
	f.clauses = append(f.clauses, col+" = ?")
	f.args = append(f.args, v)
}

func (f *filter) eqInt(col string, v *int) {
	if v == nil {
		return
	}
	f.clauses = append(f.clauses, col+" = ?")
	f.args = append(f.args, *v)
}

func (f *filter) like(col string, v string) {
	if v == "" {
		return
	}
	f.clauses = append(f.clauses, col+" LIKE ?")
	f.args = append(f.args, "%"+v+"%")
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}
