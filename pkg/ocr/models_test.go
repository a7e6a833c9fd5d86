package ocr

import (
	"math"
	"testing"
)

func TestPolygonGeometry(t *testing.T) {
	p := Rect(10, 20, 60, 40)

	if got := p.CenterY(); got != 30 {
		t.Errorf("CenterY() = %v, want 30", got)
	}
	if got := p.Left(); got != 10 {
		t.Errorf("Left() = %v, want 10", got)
	}
	if got := p.Width(); got != 50 {
		t.Errorf("Width() = %v, want 50", got)
	}
	if got := p.Height(); got != 20 {
		t.Errorf("Height() = %v, want 20", got)
	}
	if got := p.Area(); got != 1000 {
		t.Errorf("Area() = %v, want 1000", got)
	}
}

func TestPolygonValid(t *testing.T) {
	tests := []struct {
		name     string
		poly     Polygon
		expected bool
	}{
		{"rectangle", Rect(0, 0, 10, 10), true},
		{"rotated quad", Polygon{{5, 0}, {10, 5}, {5, 10}, {0, 5}}, true},
		{"zero width", Rect(5, 0, 5, 10), false},
		{"zero height", Rect(0, 5, 10, 5), false},
		{"three points", Polygon{{0, 0}, {10, 0}, {10, 10}}, false},
		{"nil", nil, false},
		{"nan vertex", Polygon{{math.NaN(), 0}, {10, 0}, {10, 10}, {0, 10}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.poly.Valid(); got != tt.expected {
				t.Errorf("Valid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Polygon
		expected float64
	}{
		{"identical", Rect(0, 0, 10, 10), Rect(0, 0, 10, 10), 1},
		{"disjoint", Rect(0, 0, 10, 10), Rect(20, 20, 30, 30), 0},
		{"touching edges", Rect(0, 0, 10, 10), Rect(10, 0, 20, 10), 0},
		{"half overlap", Rect(0, 0, 10, 10), Rect(5, 0, 15, 10), 50.0 / 150.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IoU(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("IoU() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClean(t *testing.T) {
	input := []Fragment{
		{Text: "  Total ", Confidence: 0.9, Box: Rect(0, 0, 10, 10)},
		{Text: "   ", Confidence: 0.9, Box: Rect(0, 0, 10, 10)},
		{Text: "flat", Confidence: 0.9, Box: Rect(0, 0, 10, 0)},
		{Text: "café", Confidence: 1.4, Box: Rect(0, 20, 10, 30)},
		{Text: "short", Confidence: 0.5, Box: Polygon{{0, 0}, {1, 1}}},
	}

	got := Clean(input)
	if len(got) != 2 {
		t.Fatalf("Clean() kept %d fragments, want 2: %+v", len(got), got)
	}
	if got[0].Text != "Total" {
		t.Errorf("Clean() text = %q, want %q", got[0].Text, "Total")
	}
	if got[1].Text != "café" {
		t.Errorf("Clean() did not compose to NFC: %q", got[1].Text)
	}
	if got[1].Confidence != 1 {
		t.Errorf("Clean() confidence = %v, want clamped 1", got[1].Confidence)
	}
}

func TestDedupe(t *testing.T) {
	input := []Fragment{
		{Text: "Invoice", Confidence: 0.7, Box: Rect(0, 0, 100, 20)},
		{Text: "Invoice", Confidence: 0.95, Box: Rect(1, 0, 101, 20)},
		{Text: "Date", Confidence: 0.8, Box: Rect(0, 40, 50, 60)},
	}

	got := Dedupe(input, DuplicateIoU)
	if len(got) != 2 {
		t.Fatalf("Dedupe() returned %d fragments, want 2", len(got))
	}
	if got[0].Confidence != 0.95 {
		t.Errorf("Dedupe() kept confidence %v, want the higher 0.95", got[0].Confidence)
	}
	if got[1].Text != "Date" {
		t.Errorf("Dedupe() second fragment = %q, want Date", got[1].Text)
	}
}

func TestAverageConfidence(t *testing.T) {
	if got := AverageConfidence(nil); got != 0 {
		t.Errorf("AverageConfidence(nil) = %v, want 0", got)
	}
	frags := []Fragment{{Confidence: 0.5}, {Confidence: 1}}
	if got := AverageConfidence(frags); got != 0.75 {
		t.Errorf("AverageConfidence() = %v, want 0.75", got)
	}
}

func TestFilterConfidence(t *testing.T) {
	frags := []Fragment{{Text: "a", Confidence: 0.2}, {Text: "b", Confidence: 0.6}}
	if got := FilterConfidence(frags, 0); len(got) != 2 {
		t.Errorf("FilterConfidence(0) kept %d, want 2", len(got))
	}
	got := FilterConfidence(frags, 0.5)
	if len(got) != 1 || got[0].Text != "b" {
		t.Errorf("FilterConfidence(0.5) = %+v, want only b", got)
	}
}

func TestScaleFragments(t *testing.T) {
	frags := []Fragment{{Text: "a", Box: Rect(10, 10, 20, 20)}}
	got := ScaleFragments(frags, 0.5)
	if got[0].Box.Left() != 5 || got[0].Box.Width() != 5 {
		t.Errorf("ScaleFragments() box = %+v", got[0].Box)
	}
	if frags[0].Box.Left() != 10 {
		t.Errorf("ScaleFragments() modified its input")
	}
}
