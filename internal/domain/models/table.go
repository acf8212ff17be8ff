package models

// Table is a generic tabular result: raw queries, summaries and the
// analytics views all produce one.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTable allocates a table with the given column set.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns, Rows: make([][]any, 0, 16)}
}

// Append adds one row. Callers are trusted to match the column count.
func (t *Table) Append(cells ...any) {
	t.Rows = append(t.Rows, cells)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
