// Package visualize draws recognized fragments over page images and renders
// confidence histograms.
package visualize

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
)

var (
	High   = color.RGBA{R: 0, G: 170, B: 0, A: 255}
	Medium = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	Low    = color.RGBA{R: 220, G: 0, B: 0, A: 255}

	labelBackground = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// maxLabel is the number of runes of fragment text shown in a label.
const maxLabel = 30

// ConfidenceColor returns the outline colour for a confidence score.
func ConfidenceColor(conf float64) color.RGBA {
	switch {
	case conf >= 0.8:
		return High
	case conf >= 0.5:
		return Medium
	default:
		return Low
	}
}

// Annotate copies img and draws each fragment's polygon with a numbered
// label above it.
func Annotate(img image.Image, fragments []ocr.Fragment) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	for i, f := range fragments {
		c := ConfidenceColor(f.Confidence)
		for j := range f.Box {
			p, q := f.Box[j], f.Box[(j+1)%len(f.Box)]
			line(out, p, q, c)
		}

		minX, minY, _, _ := f.Box.Bounds()
		label(out, int(minX), int(minY), fmt.Sprintf("%d. %s (%.2f)", i+1, truncate(f.Text), f.Confidence))
	}
	return out
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxLabel {
		return s
	}
	return string(r[:maxLabel]) + "..."
}

// line draws a one pixel segment between p and q.
func line(img *image.RGBA, p, q ocr.Point, c color.RGBA) {
	x0, y0 := int(math.Round(p.X)), int(math.Round(p.Y))
	x1, y1 := int(math.Round(q.X)), int(math.Round(q.Y))

	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.SetRGBA(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// label draws text on a yellow box whose bottom edge sits at (x, y). The box
// is pushed inside the image when it would fall off the top.
func label(img *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.Black, Face: face}

	width := d.MeasureString(text).Ceil()
	height := face.Metrics().Height.Ceil()
	top := y - height - 2
	if top < 0 {
		top = 0
	}
	bg := image.Rect(x, top, x+width+4, top+height+2)
	draw.Draw(img, bg, &image.Uniform{C: labelBackground}, image.Point{}, draw.Src)

	d.Dot = fixed.P(x+2, top+1+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SavePNG encodes img to path.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
