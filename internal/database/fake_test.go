package database

import "context"

// resultSet is one fake resultset; nil cols model a statement that produced
// no column descriptor.
type resultSet struct {
	cols []string
	rows [][]any
}

// execResult is everything one Execute call produces.
type execResult struct {
	sets []resultSet
	err  error
}

// fakeCursor serves canned execResults in order and counts calls.
type fakeCursor struct {
	results  []execResult
	executed []string
	args     [][]any
	current  []resultSet
	fetchErr error
	closes   int
}

func (c *fakeCursor) Execute(ctx context.Context, query string, args ...any) error {
	c.executed = append(c.executed, query)
	c.args = append(c.args, args)

	var res execResult
	if len(c.results) > 0 {
		res = c.results[0]
		c.results = c.results[1:]
	}
	if res.err != nil {
		c.current = nil
		return res.err
	}
	c.current = res.sets
	return nil
}

func (c *fakeCursor) Columns() []string {
	if len(c.current) == 0 {
		return nil
	}
	return c.current[0].cols
}

func (c *fakeCursor) Fetch() ([][]any, error) {
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	if len(c.current) == 0 {
		return nil, nil
	}
	return c.current[0].rows, nil
}

func (c *fakeCursor) NextResultSet() bool {
	if len(c.current) <= 1 {
		c.current = nil
		return false
	}
	c.current = c.current[1:]
	return true
}

func (c *fakeCursor) Close() error {
	c.closes++
	return nil
}

type fakeConn struct {
	cursor  *fakeCursor
	commits int
	closes  int

	// cursorClosesAtCommit snapshots how many times the cursor had been
	// closed when Commit was issued on the session.
	cursorClosesAtCommit int
}

func (c *fakeConn) Cursor(ctx context.Context) (Cursor, error) { return c.cursor, nil }

func (c *fakeConn) Commit(ctx context.Context) error {
	c.commits++
	if c.cursor != nil {
		c.cursorClosesAtCommit = c.cursor.closes
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closes++
	return nil
}

// fakeConnector records how it was asked to connect.
type fakeConnector struct {
	conn       *fakeConn
	err        error
	dsn        string
	attrs      map[int][]byte
	plainCalls int
	attrsCalls int
}

func (f *fakeConnector) Connect(ctx context.Context, dsn string) (Conn, error) {
	f.plainCalls++
	f.dsn = dsn
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

func (f *fakeConnector) ConnectWithAttrs(ctx context.Context, dsn string, attrs map[int][]byte) (Conn, error) {
	f.attrsCalls++
	f.dsn = dsn
	f.attrs = attrs
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

// testDB wires a fake cursor straight into a connected DB.
func testDB(cur *fakeCursor) (*DB, *fakeConn) {
	conn := &fakeConn{cursor: cur}
	return &DB{conn: conn}, conn
}
