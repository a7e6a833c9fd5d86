package visualize

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	histogramWidth  = 640
	histogramHeight = 360
	margin          = 30
)

var barColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}

// Bins counts scores in [0,1] into n equal-width bins. A score of exactly 1
// lands in the last bin; out of range scores are clamped.
func Bins(scores []float64, n int) []int {
	if n <= 0 {
		return nil
	}
	counts := make([]int, n)
	for _, s := range scores {
		i := int(s * float64(n))
		if i < 0 {
			i = 0
		}
		if i >= n {
			i = n - 1
		}
		counts[i]++
	}
	return counts
}

// Histogram renders a bar chart of the confidence scores.
func Histogram(scores []float64, bins int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, histogramWidth, histogramHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	counts := Bins(scores, bins)
	peak := 0
	for _, c := range counts {
		peak = max(peak, c)
	}

	plotW := histogramWidth - 2*margin
	plotH := histogramHeight - 2*margin
	baseline := histogramHeight - margin

	if peak > 0 {
		barW := plotW / len(counts)
		for i, c := range counts {
			h := c * plotH / peak
			x := margin + i*barW
			draw.Draw(img, image.Rect(x+1, baseline-h, x+barW-1, baseline), &image.Uniform{C: barColor}, image.Point{}, draw.Src)
		}
	}

	// axes
	draw.Draw(img, image.Rect(margin, baseline, histogramWidth-margin, baseline+1), image.Black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(margin-1, margin, margin, baseline+1), image.Black, image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13}
	d.Dot = fixed.P(margin-4, baseline+16)
	d.DrawString("0.0")
	d.Dot = fixed.P(histogramWidth-margin-12, baseline+16)
	d.DrawString("1.0")
	d.Dot = fixed.P(margin, margin-10)
	d.DrawString(fmt.Sprintf("Confidence distribution (n=%d, max bin=%d)", len(scores), peak))

	return img
}
