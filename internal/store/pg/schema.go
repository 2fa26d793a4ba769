package pg

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sort"
)

// Schema is the DDL for every table the stores use. It is idempotent
// (CREATE ... IF NOT EXISTS) and is applied by operators, not by the gateway.
//
//go:embed schema.sql
var Schema string

// RequiredTables are the tables the Postgres stores read and write.
var RequiredTables = []string{"organizations", "meta_integrations", "meta_pages", "agents", "stages", "leads"}

// SchemaStatus is the result of a schema compatibility check.
type SchemaStatus struct {
	Present []string
	Missing []string
}

// Compatible reports whether every required table exists.
func (s *SchemaStatus) Compatible() bool { return len(s.Missing) == 0 }

// CheckSchema lists which required tables exist in the current schema.
func CheckSchema(ctx context.Context, db *sql.DB) (*SchemaStatus, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema()`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s := &SchemaStatus{}
	for _, t := range RequiredTables {
		if existing[t] {
			s.Present = append(s.Present, t)
		} else {
			s.Missing = append(s.Missing, t)
		}
	}
	sort.Strings(s.Missing)
	return s, nil
}
