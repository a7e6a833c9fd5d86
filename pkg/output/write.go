package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lehigh-university-libraries/tabocr/pkg/hocr"
	"github.com/lehigh-university-libraries/tabocr/pkg/pdf"
	"github.com/lehigh-university-libraries/tabocr/pkg/result"
	"github.com/lehigh-university-libraries/tabocr/pkg/table"
)

// NoText is printed wherever a page or document has no recognized text.
const NoText = "No text found"

const rule = "============================================================"

// Write renders doc in every configured format into dir and returns the
// paths written.
func Write(c RunConfig, dir string, doc *result.Document) ([]string, error) {
	base := BaseName(doc.Source)

	var written []string
	for _, format := range c.formats() {
		var (
			paths []string
			err   error
		)
		switch format {
		case FormatText:
			paths, err = writeFile(filepath.Join(dir, base+".txt"), func(w io.Writer) error { return WriteText(w, doc) })
		case FormatJSON:
			paths, err = writeFile(filepath.Join(dir, base+".json"), func(w io.Writer) error { return WriteJSON(w, doc) })
		case FormatCSV:
			paths, err = writeCSV(dir, base, doc)
		case FormatHTML:
			paths, err = writeFile(filepath.Join(dir, base+".html"), func(w io.Writer) error { return WriteHTML(w, doc) })
		case FormatHOCR:
			paths, err = writeFile(filepath.Join(dir, base+".hocr"), func(w io.Writer) error {
				_, err := io.WriteString(w, hocr.ConvertToHOCR(doc))
				return err
			})
		default:
			err = fmt.Errorf("unknown output format %q", format)
		}
		if err != nil {
			return written, fmt.Errorf("write %s: %w", format, err)
		}
		slog.Debug("Wrote output", "format", format, "files", len(paths))
		written = append(written, paths...)
	}
	return written, nil
}

func writeFile(path string, render func(io.Writer) error) ([]string, error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// WriteText writes the human readable report.
func WriteText(w io.Writer, doc *result.Document) error {
	var sb strings.Builder
	stats := doc.Statistics()

	fmt.Fprintf(&sb, "OCR Results: %s\n", doc.Source)
	fmt.Fprintf(&sb, "Processed: %s\n", doc.CreatedAt.Format(time.DateTime))
	fmt.Fprintf(&sb, "Run ID: %s\n", doc.RunID)
	fmt.Fprintf(&sb, "Type: %s\n", doc.Kind)
	if doc.PDF != nil {
		writePDFInfo(&sb, doc.PDF)
	}
	sb.WriteString(rule + "\n")

	sb.WriteString("Statistics:\n")
	fmt.Fprintf(&sb, "  Total pages: %d\n", stats.TotalPages)
	fmt.Fprintf(&sb, "  Total text regions: %d\n", stats.TotalRegions)
	fmt.Fprintf(&sb, "  Tables detected: %d\n", doc.Tables())
	fmt.Fprintf(&sb, "  Average confidence: %.3f\n", stats.AverageConfidence)
	fmt.Fprintf(&sb, "  Min confidence: %.3f\n", stats.MinConfidence)
	fmt.Fprintf(&sb, "  Max confidence: %.3f\n", stats.MaxConfidence)
	sb.WriteString(rule + "\n")

	for _, p := range doc.Pages {
		fmt.Fprintf(&sb, "\n--- Page %d", p.Number)
		if p.Variant != "" {
			fmt.Fprintf(&sb, " (%s)", p.Variant)
		}
		sb.WriteString(" ---\n")

		if p.Err != "" {
			fmt.Fprintf(&sb, "Error: %s\n", p.Err)
		}
		if len(p.Fragments) == 0 {
			sb.WriteString(NoText + "\n")
			continue
		}
		for i, f := range p.Fragments {
			fmt.Fprintf(&sb, "%d. %s (%.3f)\n", i+1, f.Text, f.Confidence)
		}
		if p.Table != nil && !p.Table.Empty() {
			fmt.Fprintf(&sb, "\nTable (%d rows x %d columns):\n", p.Table.Rows(), p.Table.Cols())
			sb.WriteString(table.Text(p.Table))
		}
	}

	sb.WriteString("\n" + rule + "\n")
	sb.WriteString("All text:\n")
	if text := doc.Text(); text != "" {
		sb.WriteString(text + "\n")
	} else {
		sb.WriteString(NoText + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writePDFInfo(sb *strings.Builder, info *pdf.Info) {
	fmt.Fprintf(sb, "PDF pages: %d\n", info.Pages)
	fields := []struct{ label, value string }{
		{"Title", info.Title},
		{"Author", info.Author},
		{"Subject", info.Subject},
		{"Creator", info.Creator},
		{"Producer", info.Producer},
		{"Created", info.CreationDate},
		{"Modified", info.ModDate},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(sb, "PDF %s: %s\n", strings.ToLower(f.label), f.value)
		}
	}
}

type jsonMetadata struct {
	RunID      string            `json:"run_id"`
	Source     string            `json:"source"`
	Kind       result.Kind       `json:"type"`
	CreatedAt  time.Time         `json:"processed_at"`
	PDF        *pdf.Info         `json:"pdf_info,omitempty"`
	Statistics result.Statistics `json:"statistics"`
	Tables     int               `json:"tables_detected"`
}

type jsonDocument struct {
	Metadata jsonMetadata  `json:"metadata"`
	Pages    []result.Page `json:"pages"`
	Text     string        `json:"text"`
}

// WriteJSON writes metadata, statistics and every page. Tables are encoded
// as grids of strings.
func WriteJSON(w io.Writer, doc *result.Document) error {
	out := jsonDocument{
		Metadata: jsonMetadata{
			RunID:      doc.RunID,
			Source:     doc.Source,
			Kind:       doc.Kind,
			CreatedAt:  doc.CreatedAt,
			PDF:        doc.PDF,
			Statistics: doc.Statistics(),
			Tables:     doc.Tables(),
		},
		Pages: doc.Pages,
		Text:  doc.Text(),
	}
	if out.Pages == nil {
		out.Pages = []result.Page{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

// writeCSV writes one CSV per detected table plus a fragments CSV.
func writeCSV(dir, base string, doc *result.Document) ([]string, error) {
	var written []string
	for _, p := range doc.Pages {
		if p.Table == nil || p.Table.Empty() {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_page%d_table.csv", base, p.Number))
		paths, err := writeFile(path, func(w io.Writer) error { return table.WriteCSV(w, p.Table) })
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
	}

	paths, err := writeFile(filepath.Join(dir, base+"_fragments.csv"), func(w io.Writer) error {
		return WriteFragmentsCSV(w, doc)
	})
	if err != nil {
		return written, err
	}
	return append(written, paths...), nil
}

// WriteFragmentsCSV writes one record per fragment with its bounding rectangle.
func WriteFragmentsCSV(w io.Writer, doc *result.Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"page", "index", "text", "confidence", "x1", "y1", "x2", "y2"}); err != nil {
		return err
	}
	for _, p := range doc.Pages {
		for i, f := range p.Fragments {
			x1, y1, x2, y2 := f.Box.Bounds()
			record := []string{
				strconv.Itoa(p.Number),
				strconv.Itoa(i + 1),
				f.Text,
				strconv.FormatFloat(f.Confidence, 'f', 4, 64),
				strconv.FormatFloat(x1, 'f', -1, 64),
				strconv.FormatFloat(y1, 'f', -1, 64),
				strconv.FormatFloat(x2, 'f', -1, 64),
				strconv.FormatFloat(y2, 'f', -1, 64),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHTML writes a standalone page with a <table> for every detected table
// and a <pre> block for pages without one.
func WriteHTML(w io.Writer, doc *result.Document) error {
	body := element(atom.Body)
	body.AppendChild(withText(element(atom.H1), "OCR Results: "+filepath.Base(doc.Source)))

	if len(doc.Pages) == 0 {
		body.AppendChild(withText(element(atom.P), NoText))
	}
	for _, p := range doc.Pages {
		body.AppendChild(withText(element(atom.H2), fmt.Sprintf("Page %d", p.Number)))
		switch {
		case p.Table != nil && !p.Table.Empty():
			body.AppendChild(table.Node(p.Table))
		case len(p.Fragments) > 0:
			body.AppendChild(withText(element(atom.Pre), p.Text()))
		default:
			body.AppendChild(withText(element(atom.P), NoText))
		}
	}

	head := element(atom.Head)
	meta := element(atom.Meta)
	meta.Attr = []html.Attribute{{Key: "charset", Val: "utf-8"}}
	head.AppendChild(meta)
	head.AppendChild(withText(element(atom.Title), filepath.Base(doc.Source)))

	root := element(atom.Html)
	root.AppendChild(head)
	root.AppendChild(body)

	page := &html.Node{Type: html.DocumentNode}
	page.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	page.AppendChild(root)
	return html.Render(w, page)
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}
