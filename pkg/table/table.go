// Package table rebuilds row/column structure from scattered OCR fragments.
//
// Rows come from clustering fragment vertical centers; columns come from
// clustering the left edges of every fragment on the page, so all rows share
// one set of column boundaries.
package table

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
)

// ErrNoTable is returned when the fragments do not form at least a 2x2 grid.
// Callers should fall back to linear text output.
var ErrNoTable = errors.New("no table detected")

const (
	// RowToleranceFactor scales the median fragment height into the default
	// vertical clustering tolerance.
	RowToleranceFactor = 0.5
	// ColumnToleranceFactor scales the median fragment width into the default
	// horizontal clustering tolerance.
	ColumnToleranceFactor = 0.5
)

// Options holds the clustering tolerances in pixels. A value <= 0 means the
// tolerance is derived from the median fragment size on the page.
type Options struct {
	RowTolerance    float64 `yaml:"row_tolerance"`
	ColumnTolerance float64 `yaml:"column_tolerance"`
}

// Tolerances resolves the effective tolerances for a set of valid fragments.
func (o Options) Tolerances(fragments []ocr.Fragment) (row, column float64) {
	row, column = o.RowTolerance, o.ColumnTolerance
	if row > 0 && column > 0 {
		return row, column
	}

	heights := make([]float64, len(fragments))
	widths := make([]float64, len(fragments))
	for i, f := range fragments {
		heights[i] = f.Box.Height()
		widths[i] = f.Box.Width()
	}
	if row <= 0 {
		row = RowToleranceFactor * median(heights)
	}
	if column <= 0 {
		column = ColumnToleranceFactor * median(widths)
	}
	return row, column
}

// Row is a horizontal band of fragments ordered left to right.
type Row []ocr.Fragment

// Text joins the row's fragment texts with single spaces.
func (r Row) Text() string {
	var out []byte
	for i, f := range r {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, f.Text...)
	}
	return string(out)
}

// Lines groups fragments into reading-order rows. It is the linear fallback
// used when no table is detected.
func Lines(fragments []ocr.Fragment, opts Options) []Row {
	frags := ocr.Clean(fragments)
	if len(frags) == 0 {
		return nil
	}
	rowTol, _ := opts.Tolerances(frags)
	return groupRows(frags, rowTol)
}

func groupRows(fragments []ocr.Fragment, tolerance float64) []Row {
	centers := make([]float64, len(fragments))
	for i, f := range fragments {
		centers[i] = f.Box.CenterY()
	}

	clusters := Cluster1D(centers, tolerance)
	rows := make([]Row, len(clusters))
	for i, c := range clusters {
		row := make(Row, len(c.Members))
		for j, idx := range c.Members {
			row[j] = fragments[idx]
		}
		sort.SliceStable(row, func(a, b int) bool {
			la, lb := row[a].Box.Left(), row[b].Box.Left()
			if la != lb {
				return la < lb
			}
			if row[a].Text != row[b].Text {
				return row[a].Text < row[b].Text
			}
			return row[a].Box.CenterY() < row[b].Box.CenterY()
		})
		rows[i] = row
	}
	return rows
}

// Table is an immutable grid of cell text.
type Table struct {
	rows  int
	cols  int
	cells [][]string
}

// New builds a table from records, padding short records with empty cells.
func New(records [][]string) *Table {
	cols := 0
	for _, rec := range records {
		cols = max(cols, len(rec))
	}
	cells := make([][]string, len(records))
	for i, rec := range records {
		cells[i] = make([]string, cols)
		copy(cells[i], rec)
	}
	return &Table{rows: len(records), cols: cols, cells: cells}
}

// Reconstruct clusters fragments into a table.
//
// Empty or entirely malformed input yields an empty table. Input that
// clusters into fewer than two rows or two columns yields ErrNoTable.
func Reconstruct(fragments []ocr.Fragment, opts Options) (*Table, error) {
	frags := ocr.Clean(fragments)
	if len(frags) == 0 {
		return &Table{}, nil
	}

	rowTol, colTol := opts.Tolerances(frags)
	rows := groupRows(frags, rowTol)

	var lefts []float64
	for _, row := range rows {
		for _, f := range row {
			lefts = append(lefts, f.Box.Left())
		}
	}
	columns := Cluster1D(lefts, colTol)

	if len(rows) < 2 || len(columns) < 2 {
		return nil, ErrNoTable
	}

	boundaries := make([]float64, len(columns))
	for i, c := range columns {
		boundaries[i] = c.Center
	}

	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(boundaries))
		for _, f := range row {
			c := nearest(boundaries, f.Box.Left())
			if cells[r][c] == "" {
				cells[r][c] = f.Text
			} else {
				cells[r][c] += " " + f.Text
			}
		}
	}

	return &Table{rows: len(rows), cols: len(boundaries), cells: cells}, nil
}

// Rows returns the row count.
func (t *Table) Rows() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Cols returns the column count.
func (t *Table) Cols() int {
	if t == nil {
		return 0
	}
	return t.cols
}

// Empty reports whether the table has no cells.
func (t *Table) Empty() bool {
	return t.Rows() == 0 || t.Cols() == 0
}

// Cell returns the text at (row, col), or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= t.Rows() || col < 0 || col >= t.Cols() {
		return ""
	}
	return t.cells[row][col]
}

// Records returns a copy of the cell grid.
func (t *Table) Records() [][]string {
	out := make([][]string, t.Rows())
	for i := range out {
		out[i] = append([]string(nil), t.cells[i]...)
	}
	return out
}

func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Records())
}
