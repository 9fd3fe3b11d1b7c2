package database

// Table is a normalized resultset: ordered column names plus rows in column
// order. Operations that yield no resultset return an empty Table rather
// than nil, except CallProcedureWithSelect which reports failures as a nil
// table.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return t == nil || len(t.Rows) == 0 }

// ColumnIndex returns the position of the named column, or -1 when the
// table has no such column.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at (row, column), or nil when out of range.
func (t *Table) Value(row int, column string) any {
	i := t.ColumnIndex(column)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return nil
	}
	return t.Rows[row][i]
}
