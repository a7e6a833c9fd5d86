// Package hocr renders recognized pages as an hOCR document.
package hocr

import (
	"fmt"
	"html"
	"math"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/tabocr/pkg/result"
	"github.com/lehigh-university-libraries/tabocr/pkg/table"
)

// ConvertToHOCR converts a document to hOCR with one ocr_page per page, one
// ocr_line per row of fragments and one ocrx_word per fragment.
func ConvertToHOCR(doc *result.Document) string {
	var pages []string
	for _, p := range doc.Pages {
		pages = append(pages, convertPage(p))
	}
	return WrapInHOCRDocument(filepath.Base(doc.Source), strings.Join(pages, "\n"))
}

func convertPage(p result.Page) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<div class='ocr_page' id='page_%d' title='image \"%s\"; bbox 0 0 %d %d; ppageno %d'>\n",
		p.Number, html.EscapeString(imageName(p.ImagePath)), p.Width, p.Height, p.Number-1)

	wordIndex := 0
	for lineIndex, row := range table.Lines(p.Fragments, table.Options{}) {
		x1, y1, x2, y2 := rowBounds(row)
		fmt.Fprintf(&sb, "<span class='ocr_line' id='line_%d_%d' title='bbox %d %d %d %d'>",
			p.Number, lineIndex+1, x1, y1, x2, y2)

		for i, f := range row {
			wordIndex++
			minX, minY, maxX, maxY := f.Box.Bounds()
			if i > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "<span class='ocrx_word' id='word_%d_%d' title='bbox %d %d %d %d; x_wconf %d'>%s</span>",
				p.Number, wordIndex,
				round(minX), round(minY), round(maxX), round(maxY),
				round(f.Confidence*100),
				html.EscapeString(f.Text))
		}
		sb.WriteString("</span>\n")
	}

	sb.WriteString("</div>")
	return sb.String()
}

func rowBounds(row table.Row) (x1, y1, x2, y2 int) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, f := range row {
		a, b, c, d := f.Box.Bounds()
		minX, minY = math.Min(minX, a), math.Min(minY, b)
		maxX, maxY = math.Max(maxX, c), math.Max(maxY, d)
	}
	return round(minX), round(minY), round(maxX), round(maxY)
}

func imageName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func round(v float64) int {
	return int(math.Round(v))
}

// WrapInHOCRDocument wraps page content in a complete hOCR HTML document
func WrapInHOCRDocument(title, content string) string {
	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en" lang="en">
<head>
<title>%s</title>
<meta http-equiv="Content-Type" content="text/html;charset=utf-8" />
<meta name='ocr-system' content='tabocr' />
<meta name='ocr-capabilities' content='ocr_page ocr_line ocrx_word' />
</head>
<body>
%s
</body>
</html>`, html.EscapeString(title), content)
}
