package model

import "fmt"

// Table is a row-indexed feature table. Rows are aligned with the label
// vector supplied alongside it; columns are named. After the rule generation
// stage the columns are rule activation indicators rather than raw features.
type Table struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

func NewTable(columns []string, rows [][]float64) (*Table, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

// NumRows reports the number of rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumColumns reports the number of columns.
func (t *Table) NumColumns() int {
	return len(t.Columns)
}

// Empty reports whether the table carries no columns. A rule table with zero
// columns means no usable rules survived the upstream stages.
func (t *Table) Empty() bool {
	return len(t.Columns) == 0
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// SelectRows returns a new table containing the given rows in the given
// order. Row data is shared with the receiver.
func (t *Table) SelectRows(indices []int) (*Table, error) {
	rows := make([][]float64, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(t.Rows) {
			return nil, fmt.Errorf("row index %d out of range [0, %d)", idx, len(t.Rows))
		}
		rows = append(rows, t.Rows[idx])
	}
	return &Table{Columns: t.Columns, Rows: rows}, nil
}

// SelectColumns returns a new table restricted to the named columns, in the
// given order.
func (t *Table) SelectColumns(names []string) (*Table, error) {
	indices := make([]int, 0, len(names))
	for _, name := range names {
		idx, ok := t.ColumnIndex(name)
		if !ok {
			return nil, fmt.Errorf("unknown column: %s", name)
		}
		indices = append(indices, idx)
	}
	rows := make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		selected := make([]float64, len(indices))
		for i, idx := range indices {
			selected[i] = row[idx]
		}
		rows[r] = selected
	}
	return &Table{Columns: append([]string(nil), names...), Rows: rows}, nil
}

// SelectLabels subsets a label vector by row indices.
func SelectLabels(labels []string, indices []int) ([]string, error) {
	out := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(labels) {
			return nil, fmt.Errorf("label index %d out of range [0, %d)", idx, len(labels))
		}
		out = append(out, labels[idx])
	}
	return out, nil
}
