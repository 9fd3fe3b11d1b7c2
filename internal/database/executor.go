package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// batchDelimiter separates batches in multi-batch scripts. It is recognized
// client-side only and never sent to the server.
const batchDelimiter = "GO"

// ReadQuery runs a read-only query and returns its rows as a Table. A query
// that produces no resultset yields an empty Table.
func (db *DB) ReadQuery(ctx context.Context, query string, args ...any) (*Table, error) {
	conn, err := db.Conn()
	if err != nil {
		return nil, err
	}
	cur, err := conn.Cursor(ctx)
	if err != nil {
		return nil, connErr("open cursor", err)
	}
	defer cur.Close()

	if err := cur.Execute(ctx, query, args...); err != nil {
		return nil, connErr("execute query", err)
	}
	return tableFromCursor(cur)
}

// ExecuteQuery runs a query with optional positional parameters and returns
// the raw matched rows. The cursor is released on success and failure alike.
func (db *DB) ExecuteQuery(ctx context.Context, query string, args ...any) ([][]any, error) {
	conn, err := db.Conn()
	if err != nil {
		return nil, err
	}
	cur, err := conn.Cursor(ctx)
	if err != nil {
		return nil, connErr("open cursor", err)
	}
	defer cur.Close()

	if err := cur.Execute(ctx, query, args...); err != nil {
		return nil, connErr("execute query", err)
	}
	rows, err := cur.Fetch()
	if err != nil {
		return nil, connErr("fetch rows", err)
	}
	return rows, nil
}

// CallProcedureWithSelect executes a stored procedure and, in the same
// batch, a SELECT * against tempTable, then returns the first resultset of
// the batch that carries a column descriptor; an empty Table when none
// does. Execution failures are logged and reported as a nil table rather
// than returned: procedure behavior is unpredictable enough that callers
// treat nil as "no data".
func (db *DB) CallProcedureWithSelect(ctx context.Context, procedure string, params Binding, tempTable string) (*Table, error) {
	conn, err := db.Conn()
	if err != nil {
		return nil, err
	}
	cur, err := conn.Cursor(ctx)
	if err != nil {
		return nil, connErr("open cursor", err)
	}
	defer cur.Close()

	exec := fmt.Sprintf("EXEC %s", procedure)
	if ph := params.Placeholders(); ph != "" {
		exec += " " + ph
	}
	query := fmt.Sprintf("%s;\nSELECT * FROM %s;", exec, tempTable)

	if err := cur.Execute(ctx, query, params.Args()...); err != nil {
		log.Error().Err(err).Str("procedure", procedure).Msg("Stored procedure call failed")
		return nil, nil
	}

	for {
		if cols := cur.Columns(); cols != nil {
			rows, err := cur.Fetch()
			if err != nil {
				log.Error().Err(err).Str("procedure", procedure).Msg("Stored procedure fetch failed")
				return nil, nil
			}
			return &Table{Columns: cols, Rows: rows}, nil
		}
		if !cur.NextResultSet() {
			break
		}
	}

	log.Warn().Str("procedure", procedure).Msg("No resultset returned from procedure and select")
	return &Table{}, nil
}

// RunScript executes a multi-batch script (batches separated by GO lines)
// on the one session and returns a Table from the first resultset of the
// final batch that carries a column descriptor. params, if given, bind to
// the final batch only.
func (db *DB) RunScript(ctx context.Context, script string, params ...any) (*Table, error) {
	conn, err := db.Conn()
	if err != nil {
		return nil, err
	}

	batches := SplitBatches(script)
	if len(batches) == 0 {
		return nil, connErr("run script", errors.New("script contains no batches"))
	}

	cur, err := conn.Cursor(ctx)
	if err != nil {
		return nil, connErr("open cursor", err)
	}
	defer cur.Close()

	for _, batch := range batches[:len(batches)-1] {
		if err := cur.Execute(ctx, batch); err != nil {
			return nil, connErr("execute batch", err)
		}
		// Drain intermediate resultsets without retaining them.
		for cur.NextResultSet() {
		}
	}

	if err := cur.Execute(ctx, batches[len(batches)-1], params...); err != nil {
		return nil, connErr("execute final batch", err)
	}
	for cur.Columns() == nil {
		if !cur.NextResultSet() {
			return nil, connErr("run script", errors.New("final batch produced no resultset"))
		}
	}
	return tableFromCursor(cur)
}

// RunMultiStatementScript executes each ;-separated statement of script in
// order with no result capture, then commits.
func (db *DB) RunMultiStatementScript(ctx context.Context, script string) error {
	conn, err := db.Conn()
	if err != nil {
		return err
	}
	cur, err := conn.Cursor(ctx)
	if err != nil {
		return connErr("open cursor", err)
	}

	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := cur.Execute(ctx, stmt); err != nil {
			cur.Close()
			return connErr("execute statement", err)
		}
	}
	// The session serves one request at a time; the final statement's
	// resultset must be released before the commit goes out on it.
	if err := cur.Close(); err != nil {
		return connErr("close cursor", err)
	}
	if err := conn.Commit(ctx); err != nil {
		return connErr("commit", err)
	}
	return nil
}

// SplitBatches splits a script on lines holding only the GO delimiter,
// dropping empty batches.
func SplitBatches(script string) []string {
	var batches []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			batches = append(batches, s)
		}
		b.Reset()
	}
	for _, line := range strings.Split(script, "\n") {
		if strings.EqualFold(strings.TrimSpace(line), batchDelimiter) {
			flush()
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	flush()
	return batches
}

func tableFromCursor(cur Cursor) (*Table, error) {
	cols := cur.Columns()
	if cols == nil {
		return &Table{}, nil
	}
	rows, err := cur.Fetch()
	if err != nil {
		return nil, connErr("fetch rows", err)
	}
	return &Table{Columns: cols, Rows: rows}, nil
}
