// Package preprocess decodes page images and produces the image variants that
// are offered to an OCR engine.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Variant names one way of preparing a page image for OCR.
type Variant string

const (
	Original Variant = "original"
	Standard Variant = "standard"
	Contrast Variant = "contrast"
	Inverted Variant = "inverted"
)

// Variants lists every variant in the order "best" mode tries them.
var Variants = []Variant{Original, Standard, Contrast, Inverted}

const (
	// MinSide is the shortest side the standard variant upscales to.
	MinSide = 300
	// BlockSize is the adaptive threshold neighbourhood.
	BlockSize = 11
	// ThresholdC is subtracted from the neighbourhood mean.
	ThresholdC = 2

	contrastAlpha = 1.5
	contrastBeta  = 30
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
	".gif":  true,
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsPDF reports whether path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Supported reports whether path can be processed at all.
func Supported(path string) bool {
	return IsImage(path) || IsPDF(path)
}

// Load reads and decodes an image file.
func Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Encode returns img as PNG bytes.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Apply builds the requested variant. The returned scale is the variant's
// size relative to img; fragment coordinates found on the variant must be
// divided by it.
func Apply(img image.Image, v Variant) (image.Image, float64, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, 0, fmt.Errorf("empty image")
	}

	switch v {
	case Original, "":
		return img, 1, nil
	case Standard:
		g := AdaptiveThreshold(Median3(Grayscale(img)), BlockSize, ThresholdC)
		up, scale := Upscale(g, MinSide)
		return up, scale, nil
	case Contrast:
		return Adjust(Grayscale(img), contrastAlpha, contrastBeta), 1, nil
	case Inverted:
		return Invert(Grayscale(img)), 1, nil
	}
	return nil, 0, fmt.Errorf("unknown preprocessing variant %q", v)
}

// Grayscale converts img to an 8-bit gray image anchored at the origin.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return g
}

// Median3 applies a 3x3 median filter, replicating edge pixels.
func Median3(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	var window [9]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					window[n] = g.GrayAt(clamp(x+dx, w), clamp(y+dy, h)).Y
					n++
				}
			}
			out.SetGray(x, y, color.Gray{Y: median9(window)})
		}
	}
	return out
}

func median9(w [9]uint8) uint8 {
	// insertion sort, nine elements
	for i := 1; i < len(w); i++ {
		for j := i; j > 0 && w[j] < w[j-1]; j-- {
			w[j], w[j-1] = w[j-1], w[j]
		}
	}
	return w[4]
}

// AdaptiveThreshold binarizes g: a pixel becomes white when it is brighter
// than the mean of its block x block neighbourhood minus c. The window is
// clipped at the image border.
func AdaptiveThreshold(g *image.Gray, block, c int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	half := block / 2

	// integral image with a zero first row and column
	integral := make([]int, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			rowSum += int(g.GrayAt(x, y).Y)
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-half), min(h, y+half+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-half), min(w, x+half+1)
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			mean := sum / ((x1 - x0) * (y1 - y0))
			if int(g.GrayAt(x, y).Y) > mean-c {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// Upscale enlarges g with Catmull-Rom so its shortest side is at least
// minSide. Images already large enough are returned unchanged with scale 1.
func Upscale(g *image.Gray, minSide int) (*image.Gray, float64) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	shortest := min(w, h)
	if shortest == 0 || shortest >= minSide {
		return g, 1
	}

	scale := float64(minSide) / float64(shortest)
	dst := image.NewGray(image.Rect(0, 0, int(float64(w)*scale+0.5), int(float64(h)*scale+0.5)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), g, g.Bounds(), draw.Src, nil)
	return dst, scale
}

// Adjust computes alpha*v + beta for each pixel, clamped to [0,255].
func Adjust(g *image.Gray, alpha, beta float64) *image.Gray {
	out := image.NewGray(g.Rect)
	for i, v := range g.Pix {
		f := alpha*float64(v) + beta
		switch {
		case f < 0:
			f = 0
		case f > 255:
			f = 255
		}
		out.Pix[i] = uint8(f)
	}
	return out
}

// Invert flips every gray level.
func Invert(g *image.Gray) *image.Gray {
	out := image.NewGray(g.Rect)
	for i, v := range g.Pix {
		out.Pix[i] = 255 - v
	}
	return out
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
