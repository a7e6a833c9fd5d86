package preprocess

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"

	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
)

// scripted returns fragments keyed by the width of the decoded image so a
// test can tell variants apart.
type scripted struct {
	byWidth map[int][]ocr.Fragment
	fail    map[int]bool
	calls   int
}

func (s *scripted) recognize(ctx context.Context, data []byte) ([]ocr.Fragment, error) {
	s.calls++
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if s.fail[cfg.Width] {
		return nil, errors.New("engine failure")
	}
	return s.byWidth[cfg.Width], nil
}

func frag(text string, conf float64, x1, y1, x2, y2 float64) ocr.Fragment {
	return ocr.Fragment{Text: text, Confidence: conf, Box: ocr.Rect(x1, y1, x2, y2)}
}

func TestSelectNamedVariant(t *testing.T) {
	s := &scripted{byWidth: map[int][]ocr.Fragment{
		500: {frag("Qty", 0.8, 10, 10, 40, 20)},
	}}

	res, err := Select(context.Background(), uniform(500, 400, 200), string(Inverted), s.recognize)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if res.Variant != Inverted || len(res.Fragments) != 1 {
		t.Errorf("result = %+v", res)
	}
	if s.calls != 1 {
		t.Errorf("calls = %d, want 1", s.calls)
	}
}

func TestSelectAutoRescales(t *testing.T) {
	// 100x60 upscales 5x to 500x300 for the standard variant
	s := &scripted{byWidth: map[int][]ocr.Fragment{
		500: {frag("Total", 0.9, 50, 100, 250, 150)},
	}}

	res, err := Select(context.Background(), uniform(100, 60, 200), ModeAuto, s.recognize)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if res.Variant != Standard {
		t.Errorf("variant = %s, want standard", res.Variant)
	}
	minX, minY, maxX, maxY := res.Fragments[0].Box.Bounds()
	if minX != 10 || minY != 20 || maxX != 50 || maxY != 30 {
		t.Errorf("box not mapped back: %v %v %v %v", minX, minY, maxX, maxY)
	}
}

func TestSelectBest(t *testing.T) {
	// standard upscales the 100px image to 500px; the others stay at 100px
	s := &scripted{byWidth: map[int][]ocr.Fragment{
		100: {frag("low", 0.5, 0, 0, 10, 10)},
		500: {frag("high", 0.95, 0, 0, 50, 50), frag("also", 0.85, 60, 0, 100, 50)},
	}}

	res, err := Select(context.Background(), uniform(100, 60, 200), ModeBest, s.recognize)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if res.Variant != Standard {
		t.Errorf("variant = %s, want standard", res.Variant)
	}
	if len(res.Fragments) != 2 || res.Fragments[0].Text != "high" {
		t.Errorf("fragments = %+v", res.Fragments)
	}
	if s.calls != len(Variants) {
		t.Errorf("calls = %d, want %d", s.calls, len(Variants))
	}
}

func TestSelectBestTieBreak(t *testing.T) {
	s := &scripted{byWidth: map[int][]ocr.Fragment{
		100: {frag("a", 0.8, 0, 0, 10, 10)},
		500: {frag("a", 0.8, 0, 0, 50, 50), frag("b", 0.8, 60, 0, 100, 50)},
	}}

	res, err := Select(context.Background(), uniform(100, 60, 200), ModeBest, s.recognize)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Fragments) != 2 {
		t.Errorf("tie should prefer more fragments, got %+v", res)
	}
}

func TestSelectBestAllFail(t *testing.T) {
	s := &scripted{fail: map[int]bool{100: true, 500: true}}
	if _, err := Select(context.Background(), uniform(100, 60, 200), ModeBest, s.recognize); err == nil {
		t.Error("expected error when every variant fails")
	}
}

func TestSelectBestSkipsFailures(t *testing.T) {
	s := &scripted{
		byWidth: map[int][]ocr.Fragment{100: {frag("ok", 0.6, 0, 0, 10, 10)}},
		fail:    map[int]bool{500: true},
	}
	res, err := Select(context.Background(), uniform(100, 60, 200), ModeBest, s.recognize)
	if err != nil {
		t.Fatal(err)
	}
	if res.Variant != Original {
		t.Errorf("variant = %s, want original", res.Variant)
	}
}

func TestValidateMode(t *testing.T) {
	for _, mode := range []string{"", "auto", "best", "original", "standard", "contrast", "inverted"} {
		if err := ValidateMode(mode); err != nil {
			t.Errorf("ValidateMode(%q) = %v", mode, err)
		}
	}
	if err := ValidateMode("sharpen"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
