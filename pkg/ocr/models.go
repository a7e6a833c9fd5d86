package ocr

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Point is a vertex in image pixel space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Polygon is the quadrilateral an engine reports around a text span.
// Vertices are expected in clockwise order starting at the top-left corner.
type Polygon []Point

// Fragment is one recognized text span with its confidence and bounding polygon.
type Fragment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Box        Polygon `json:"box"`
}

// Rect builds an axis-aligned polygon from two opposite corners.
func Rect(x1, y1, x2, y2 float64) Polygon {
	return Polygon{
		{X: x1, Y: y1},
		{X: x2, Y: y1},
		{X: x2, Y: y2},
		{X: x1, Y: y2},
	}
}

// Bounds returns the axis-aligned bounding rectangle of the polygon.
func (p Polygon) Bounds() (minX, minY, maxX, maxY float64) {
	if len(p) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = p[0].X, p[0].Y
	maxX, maxY = p[0].X, p[0].Y
	for _, v := range p[1:] {
		minX = math.Min(minX, v.X)
		minY = math.Min(minY, v.Y)
		maxX = math.Max(maxX, v.X)
		maxY = math.Max(maxY, v.Y)
	}
	return minX, minY, maxX, maxY
}

// CenterY is the average of the vertex y-coordinates.
func (p Polygon) CenterY() float64 {
	if len(p) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p {
		sum += v.Y
	}
	return sum / float64(len(p))
}

// Left is the smallest x-coordinate of the polygon.
func (p Polygon) Left() float64 {
	minX, _, _, _ := p.Bounds()
	return minX
}

// Width of the bounding rectangle.
func (p Polygon) Width() float64 {
	minX, _, maxX, _ := p.Bounds()
	return maxX - minX
}

// Height of the bounding rectangle.
func (p Polygon) Height() float64 {
	_, minY, _, maxY := p.Bounds()
	return maxY - minY
}

// Area is the shoelace area of the polygon.
func (p Polygon) Area() float64 {
	var sum float64
	for i := range p {
		j := (i + 1) % len(p)
		sum += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return math.Abs(sum) / 2
}

// Valid reports whether the polygon has four finite vertices enclosing a
// non-zero area.
func (p Polygon) Valid() bool {
	if len(p) != 4 {
		return false
	}
	for _, v := range p {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
			return false
		}
	}
	return p.Area() > 0
}

// Scale multiplies every coordinate by f.
func (p Polygon) Scale(f float64) Polygon {
	out := make(Polygon, len(p))
	for i, v := range p {
		out[i] = Point{X: v.X * f, Y: v.Y * f}
	}
	return out
}

// IoU is the intersection-over-union of the bounding rectangles of a and b.
func IoU(a, b Polygon) float64 {
	ax1, ay1, ax2, ay2 := a.Bounds()
	bx1, by1, bx2, by2 := b.Bounds()

	ix1, iy1 := math.Max(ax1, bx1), math.Max(ay1, by1)
	ix2, iy2 := math.Min(ax2, bx2), math.Min(ay2, by2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}

	inter := (ix2 - ix1) * (iy2 - iy1)
	union := (ax2-ax1)*(ay2-ay1) + (bx2-bx1)*(by2-by1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NormalizeText trims surrounding whitespace and composes the text to NFC so
// that the same glyphs from different engines compare equal.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Clean normalizes fragment text and drops fragments with empty text or a
// malformed polygon. Confidence is clamped to [0,1].
func Clean(fragments []Fragment) []Fragment {
	out := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		f.Text = NormalizeText(f.Text)
		if f.Text == "" || !f.Box.Valid() {
			continue
		}
		f.Confidence = math.Max(0, math.Min(1, f.Confidence))
		out = append(out, f)
	}
	return out
}

// FilterConfidence drops fragments below min.
func FilterConfidence(fragments []Fragment, min float64) []Fragment {
	if min <= 0 {
		return fragments
	}
	out := fragments[:0:0]
	for _, f := range fragments {
		if f.Confidence >= min {
			out = append(out, f)
		}
	}
	return out
}

// AverageConfidence returns the mean confidence, or 0 for no fragments.
func AverageConfidence(fragments []Fragment) float64 {
	if len(fragments) == 0 {
		return 0
	}
	var sum float64
	for _, f := range fragments {
		sum += f.Confidence
	}
	return sum / float64(len(fragments))
}

// Dedupe removes fragments whose bounding rectangles overlap an earlier
// fragment by more than threshold IoU, keeping whichever has the higher
// confidence in the earlier fragment's position.
func Dedupe(fragments []Fragment, threshold float64) []Fragment {
	var unique []Fragment
	for _, f := range fragments {
		duplicate := false
		for i, u := range unique {
			if IoU(f.Box, u.Box) > threshold {
				if f.Confidence > u.Confidence {
					unique[i] = f
				}
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, f)
		}
	}
	return unique
}

// ScaleFragments maps fragment boxes by factor f, returning new fragments.
func ScaleFragments(fragments []Fragment, f float64) []Fragment {
	if f == 1 {
		return fragments
	}
	out := make([]Fragment, len(fragments))
	for i, frag := range fragments {
		frag.Box = frag.Box.Scale(f)
		out[i] = frag
	}
	return out
}
