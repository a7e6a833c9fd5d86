// Package result holds the recognized content of one input file.
package result

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
	"github.com/lehigh-university-libraries/tabocr/pkg/pdf"
	"github.com/lehigh-university-libraries/tabocr/pkg/preprocess"
	"github.com/lehigh-university-libraries/tabocr/pkg/table"
)

// Kind of input a document came from.
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
)

// Page is the OCR result for one page image.
type Page struct {
	Number     int                `json:"page"`
	ImagePath  string             `json:"image_path"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Variant    preprocess.Variant `json:"preprocessing"`
	Fragments  []ocr.Fragment     `json:"fragments"`
	Table      *table.Table       `json:"table,omitempty"`
	Confidence float64            `json:"average_confidence"`
	Err        string             `json:"error,omitempty"`
}

// Document collects the pages recognized from one source file.
type Document struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Kind      Kind      `json:"kind"`
	PDF       *pdf.Info `json:"pdf_info,omitempty"`
	Pages     []Page    `json:"pages"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDocument starts a document with a fresh run id.
func NewDocument(source string, kind Kind, now time.Time) *Document {
	return &Document{
		RunID:     uuid.NewString(),
		Source:    source,
		Kind:      kind,
		CreatedAt: now,
	}
}

// Text returns the page's fragments in reading order, one line per row.
func (p Page) Text() string {
	var lines []string
	for _, row := range table.Lines(p.Fragments, table.Options{}) {
		lines = append(lines, row.Text())
	}
	return strings.Join(lines, "\n")
}

// Text joins the text of every page, separated by blank lines. Pages
// without text are skipped.
func (d *Document) Text() string {
	var parts []string
	for _, p := range d.Pages {
		if t := p.Text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Statistics summarises fragment counts and confidences across a document.
type Statistics struct {
	TotalPages        int     `json:"total_pages" yaml:"total_pages"`
	TotalRegions      int     `json:"total_text_regions" yaml:"total_text_regions"`
	AverageConfidence float64 `json:"average_confidence" yaml:"average_confidence"`
	MinConfidence     float64 `json:"min_confidence" yaml:"min_confidence"`
	MaxConfidence     float64 `json:"max_confidence" yaml:"max_confidence"`
}

// Statistics computes document statistics. Confidence figures are zero when
// no text was found.
func (d *Document) Statistics() Statistics {
	s := Statistics{TotalPages: len(d.Pages)}
	minConf, maxConf := math.Inf(1), math.Inf(-1)
	var sum float64
	for _, p := range d.Pages {
		for _, f := range p.Fragments {
			s.TotalRegions++
			sum += f.Confidence
			minConf = math.Min(minConf, f.Confidence)
			maxConf = math.Max(maxConf, f.Confidence)
		}
	}
	if s.TotalRegions > 0 {
		s.AverageConfidence = sum / float64(s.TotalRegions)
		s.MinConfidence = minConf
		s.MaxConfidence = maxConf
	}
	return s
}

// Confidences returns every fragment confidence in page order.
func (d *Document) Confidences() []float64 {
	var out []float64
	for _, p := range d.Pages {
		for _, f := range p.Fragments {
			out = append(out, f.Confidence)
		}
	}
	return out
}

// Tables counts pages with a detected table.
func (d *Document) Tables() int {
	n := 0
	for _, p := range d.Pages {
		if p.Table != nil && !p.Table.Empty() {
			n++
		}
	}
	return n
}

// Match is a fragment found by Search.
type Match struct {
	Page       int         `json:"page"`
	Index      int         `json:"index"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Box        ocr.Polygon `json:"box"`
}

// Search finds fragments containing query. Matching ignores case unless
// caseSensitive is set.
func (d *Document) Search(query string, caseSensitive bool) []Match {
	if query == "" {
		return nil
	}
	if !caseSensitive {
		query = strings.ToLower(query)
	}

	var matches []Match
	for _, p := range d.Pages {
		for i, f := range p.Fragments {
			text := f.Text
			if !caseSensitive {
				text = strings.ToLower(text)
			}
			if strings.Contains(text, query) {
				matches = append(matches, Match{
					Page:       p.Number,
					Index:      i,
					Text:       f.Text,
					Confidence: f.Confidence,
					Box:        f.Box,
				})
			}
		}
	}
	return matches
}
