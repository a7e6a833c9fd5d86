package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func uniform(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"scan.PNG", true},
		{"scan.jpeg", true},
		{"scan.tif", true},
		{"scan.webp", true},
		{"report.pdf", true},
		{"notes.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Supported(tt.path); got != tt.want {
				t.Errorf("Supported(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
	if IsImage("report.pdf") || !IsPDF("REPORT.PDF") {
		t.Error("pdf detection mismatch")
	}
}

func TestLoadBMP(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, uniform(4, 3, 200)); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "page.bmp")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected decode error")
	}
}

func TestGrayscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(5, 5, 7, 6))
	img.Set(5, 5, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(6, 5, color.RGBA{A: 255})

	g := Grayscale(img)
	if g.Rect != image.Rect(0, 0, 2, 1) {
		t.Fatalf("rect = %v", g.Rect)
	}
	if g.GrayAt(0, 0).Y != 255 || g.GrayAt(1, 0).Y != 0 {
		t.Errorf("pixels = %v", g.Pix)
	}
}

func TestMedian3RemovesSpeck(t *testing.T) {
	g := uniform(5, 5, 255)
	g.SetGray(2, 2, color.Gray{Y: 0})

	out := Median3(g)
	if out.GrayAt(2, 2).Y != 255 {
		t.Errorf("speck survived median filter")
	}
}

func TestAdaptiveThreshold(t *testing.T) {
	g := uniform(20, 20, 220)
	// a dark stroke on a light page
	for y := 5; y < 15; y++ {
		g.SetGray(10, y, color.Gray{Y: 20})
	}

	out := AdaptiveThreshold(g, BlockSize, ThresholdC)
	if out.GrayAt(10, 10).Y != 0 {
		t.Errorf("stroke pixel = %d, want 0", out.GrayAt(10, 10).Y)
	}
	if out.GrayAt(2, 2).Y != 255 {
		t.Errorf("background pixel = %d, want 255", out.GrayAt(2, 2).Y)
	}
}

func TestUpscale(t *testing.T) {
	up, scale := Upscale(uniform(100, 50, 128), MinSide)
	if scale != 6 {
		t.Errorf("scale = %v, want 6", scale)
	}
	if up.Rect.Dx() != 600 || up.Rect.Dy() != 300 {
		t.Errorf("size = %v", up.Rect)
	}

	same, scale := Upscale(uniform(400, 300, 128), MinSide)
	if scale != 1 || same.Rect.Dx() != 400 {
		t.Errorf("large image was resized: %v %v", same.Rect, scale)
	}
}

func TestAdjustAndInvert(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 1))
	g.Pix = []uint8{0, 100, 200}

	adj := Adjust(g, contrastAlpha, contrastBeta)
	want := []uint8{30, 180, 255}
	for i := range want {
		if adj.Pix[i] != want[i] {
			t.Errorf("Adjust pix[%d] = %d, want %d", i, adj.Pix[i], want[i])
		}
	}

	inv := Invert(g)
	if inv.Pix[0] != 255 || inv.Pix[2] != 55 {
		t.Errorf("Invert = %v", inv.Pix)
	}
}

func TestApply(t *testing.T) {
	src := uniform(60, 40, 180)

	tests := []struct {
		variant   Variant
		wantScale float64
		wantDx    int
	}{
		{Original, 1, 60},
		{Standard, 7.5, 450},
		{Contrast, 1, 60},
		{Inverted, 1, 60},
	}
	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			img, scale, err := Apply(src, tt.variant)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if scale != tt.wantScale || img.Bounds().Dx() != tt.wantDx {
				t.Errorf("scale = %v dx = %d, want %v %d", scale, img.Bounds().Dx(), tt.wantScale, tt.wantDx)
			}
		})
	}

	if _, _, err := Apply(src, "sepia"); err == nil {
		t.Error("expected error for unknown variant")
	}
	if _, _, err := Apply(image.NewGray(image.Rect(0, 0, 0, 0)), Original); err == nil {
		t.Error("expected error for empty image")
	}
}
