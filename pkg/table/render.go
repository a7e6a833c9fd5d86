package table

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ColumnSeparator sits between padded cells in the text grid.
const ColumnSeparator = " | "

// Text renders the table as a column-aligned grid. Widths are measured in
// terminal cells so wide (CJK) characters line up.
func Text(t *Table) string {
	if t.Empty() {
		return ""
	}

	widths := make([]int, t.Cols())
	for r := 0; r < t.Rows(); r++ {
		for c := 0; c < t.Cols(); c++ {
			widths[c] = max(widths[c], runewidth.StringWidth(t.Cell(r, c)))
		}
	}

	var sb strings.Builder
	for r := 0; r < t.Rows(); r++ {
		for c := 0; c < t.Cols(); c++ {
			cell := t.Cell(r, c)
			if c == t.Cols()-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[c]))
			sb.WriteString(ColumnSeparator)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Node builds a <table> element with one <tr> per row and one <td> per cell.
func Node(t *Table) *html.Node {
	tbl := &html.Node{Type: html.ElementNode, Data: "table", DataAtom: atom.Table}
	for r := 0; r < t.Rows(); r++ {
		tr := &html.Node{Type: html.ElementNode, Data: "tr", DataAtom: atom.Tr}
		for c := 0; c < t.Cols(); c++ {
			td := &html.Node{Type: html.ElementNode, Data: "td", DataAtom: atom.Td}
			td.AppendChild(&html.Node{Type: html.TextNode, Data: t.Cell(r, c)})
			tr.AppendChild(td)
		}
		tbl.AppendChild(tr)
	}
	return tbl
}

// HTML renders the table as an HTML fragment.
func HTML(t *Table) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, Node(t)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteCSV writes one record per row using standard CSV quoting.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return err
	}
	return cw.Error()
}
