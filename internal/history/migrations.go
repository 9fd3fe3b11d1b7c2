package history

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Migrate brings the history schema up to date.
func (s *Store) Migrate() error {
	_, err := s.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err = s.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}
		log.Info().Int("version", migration.Version).Str("name", migration.Name).Msg("Applying history migration")

		if err := s.Transaction(func(tx *sql.Tx) error {
			for i, stmt := range splitStatements(migration.SQL) {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("migration %d statement %d failed: %w", migration.Version, i+1, err)
				}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.Version); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
			CREATE TABLE runs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				site TEXT NOT NULL,
				site_code INTEGER NOT NULL,
				triggered_by TEXT NOT NULL,
				ran_at TIMESTAMP NOT NULL,
				matched INTEGER NOT NULL DEFAULT 0,
				mismatched INTEGER NOT NULL DEFAULT 0,
				missing INTEGER NOT NULL DEFAULT 0
			);

			CREATE TABLE run_rows (
				run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				product_name TEXT NOT NULL,
				ndc TEXT NOT NULL,
				forecasted_order_qty REAL NOT NULL,
				ordered_qty REAL NOT NULL,
				color TEXT NOT NULL
			);

			CREATE INDEX idx_runs_site ON runs(site, ran_at);
			CREATE INDEX idx_run_rows_run ON run_rows(run_id);
		`,
	},
}

// splitStatements splits migration SQL into individual statements, dropping
// comments and blank lines.
func splitStatements(script string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" && stmt != ";" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		statements = append(statements, remaining)
	}
	return statements
}
