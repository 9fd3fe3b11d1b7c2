package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/azuread"
)

// mssqlConnector implements Connector on top of the go-mssqldb driver. One
// Conn maps onto one pinned session so multi-batch scripts that build temp
// tables keep seeing them across statements.
type mssqlConnector struct{}

// NewMSSQLConnector returns the production SQL Server connector.
func NewMSSQLConnector() Connector { return mssqlConnector{} }

func (mssqlConnector) Connect(ctx context.Context, dsn string) (Conn, error) {
	connector, err := azuread.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to build connector: %w", err)
	}
	return openSession(ctx, sql.OpenDB(connector))
}

func (mssqlConnector) ConnectWithAttrs(ctx context.Context, dsn string, attrs map[int][]byte) (Conn, error) {
	blob, ok := attrs[AttrAccessToken]
	if !ok {
		return nil, fmt.Errorf("no access-token attribute among %d pre-connection attributes", len(attrs))
	}
	token := DecodeAccessToken(blob)
	connector, err := mssql.NewAccessTokenConnector(dsn, func() (string, error) {
		return token, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build access-token connector: %w", err)
	}
	return openSession(ctx, sql.OpenDB(connector))
}

func openSession(ctx context.Context, db *sql.DB) (Conn, error) {
	// One live session per logical database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	sess, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := sess.PingContext(ctx); err != nil {
		sess.Close()
		db.Close()
		return nil, err
	}
	return &mssqlConn{db: db, sess: sess}, nil
}

type mssqlConn struct {
	db   *sql.DB
	sess *sql.Conn
}

func (c *mssqlConn) Cursor(ctx context.Context) (Cursor, error) {
	return &mssqlCursor{conn: c.sess}, nil
}

func (c *mssqlConn) Commit(ctx context.Context) error {
	// The session runs autocommit; an open transaction only exists when the
	// script itself issued BEGIN TRANSACTION.
	_, err := c.sess.ExecContext(ctx, "IF @@TRANCOUNT > 0 COMMIT TRANSACTION")
	return err
}

func (c *mssqlConn) Close() error {
	err := c.sess.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

type mssqlCursor struct {
	conn *sql.Conn
	rows *sql.Rows
}

func (c *mssqlCursor) Execute(ctx context.Context, query string, args ...any) error {
	if c.rows != nil {
		c.rows.Close()
		c.rows = nil
	}
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	c.rows = rows
	return nil
}

func (c *mssqlCursor) Columns() []string {
	if c.rows == nil {
		return nil
	}
	cols, err := c.rows.Columns()
	if err != nil || len(cols) == 0 {
		return nil
	}
	return cols
}

func (c *mssqlCursor) Fetch() ([][]any, error) {
	if c.rows == nil {
		return nil, errors.New("no resultset to fetch from")
	}
	cols, err := c.rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for c.rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := c.rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, c.rows.Err()
}

func (c *mssqlCursor) NextResultSet() bool {
	if c.rows == nil {
		return false
	}
	return c.rows.NextResultSet()
}

func (c *mssqlCursor) Close() error {
	if c.rows == nil {
		return nil
	}
	err := c.rows.Close()
	c.rows = nil
	return err
}
