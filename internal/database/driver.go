package database

import "context"

// AttrAccessToken is the ODBC pre-connection attribute number
// (SQL_COPT_SS_ACCESS_TOKEN) carrying an Azure AD access token.
const AttrAccessToken = 1256

// Connector opens driver-level connections. Implementations decide how a
// DSN maps onto the underlying driver.
type Connector interface {
	// Connect opens a connection described by dsn alone. Any authentication
	// beyond what the DSN carries (e.g. managed-identity fedauth) is the
	// driver's job.
	Connect(ctx context.Context, dsn string) (Conn, error)

	// ConnectWithAttrs opens a connection with driver-level pre-connection
	// attributes, keyed by ODBC attribute number.
	ConnectWithAttrs(ctx context.Context, dsn string, attrs map[int][]byte) (Conn, error)
}

// Conn is one live session to one database.
type Conn interface {
	Cursor(ctx context.Context) (Cursor, error)
	Commit(ctx context.Context) error
	Close() error
}

// Cursor is a single statement handle. Execute may produce several
// resultsets; Columns describes the current one (nil when it carries no
// column descriptor) and NextResultSet advances to the next.
type Cursor interface {
	Execute(ctx context.Context, query string, args ...any) error
	Columns() []string
	Fetch() ([][]any, error)
	NextResultSet() bool
	Close() error
}
