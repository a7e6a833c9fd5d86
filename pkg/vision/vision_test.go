package vision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/genproto/googleapis/rpc/status"

	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
)

type fakeAnnotator struct {
	resp   *visionpb.BatchAnnotateImagesResponse
	err    error
	req    *visionpb.BatchAnnotateImagesRequest
	closed bool
}

func (f *fakeAnnotator) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeAnnotator) Close() error {
	f.closed = true
	return nil
}

func newTestEngine(f *fakeAnnotator) *Engine {
	return &Engine{
		newClient: func(ctx context.Context) (annotator, error) { return f, nil },
	}
}

func box(x1, y1, x2, y2 int32) *visionpb.BoundingPoly {
	return &visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
		{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2},
	}}
}

func word(text string, conf float32, b *visionpb.BoundingPoly, brk visionpb.TextAnnotation_DetectedBreak_BreakType) *visionpb.Word {
	w := &visionpb.Word{Confidence: conf, BoundingBox: b}
	runes := []rune(text)
	for i, r := range runes {
		sym := &visionpb.Symbol{Text: string(r)}
		if i == len(runes)-1 && brk != visionpb.TextAnnotation_DetectedBreak_UNKNOWN {
			sym.Property = &visionpb.TextAnnotation_TextProperty{
				DetectedBreak: &visionpb.TextAnnotation_DetectedBreak{Type: brk},
			}
		}
		w.Symbols = append(w.Symbols, sym)
	}
	return w
}

func sampleResponse() *visionpb.BatchAnnotateImagesResponse {
	para := &visionpb.Paragraph{
		Confidence:  0.95,
		BoundingBox: box(0, 0, 120, 20),
		Words: []*visionpb.Word{
			word("Unit", 0.9, box(0, 0, 40, 20), visionpb.TextAnnotation_DetectedBreak_SPACE),
			word("price", 0.8, box(50, 0, 120, 20), visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE),
		},
	}
	return &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{
			{
				FullTextAnnotation: &visionpb.TextAnnotation{
					Pages: []*visionpb.Page{
						{Blocks: []*visionpb.Block{{Paragraphs: []*visionpb.Paragraph{para}}}},
					},
				},
			},
		},
	}
}

func TestEngine_ValidateConfig(t *testing.T) {
	e := New()

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if err := e.ValidateConfig(ocr.Config{}); err == nil || !strings.Contains(err.Error(), "GOOGLE_APPLICATION_CREDENTIALS") {
		t.Errorf("expected credentials error, got %v", err)
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/tmp/creds.json")
	if err := e.ValidateConfig(ocr.Config{Level: ocr.LevelWord}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEngine_Recognize(t *testing.T) {
	tests := []struct {
		name      string
		level     ocr.Level
		wantTexts []string
		wantConf  float64
	}{
		{"line level uses paragraphs", ocr.LevelLine, []string{"Unit price"}, float64(float32(0.95))},
		{"word level", ocr.LevelWord, []string{"Unit", "price"}, float64(float32(0.9))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAnnotator{resp: sampleResponse()}
			e := newTestEngine(f)

			got, err := e.Recognize(context.Background(), ocr.Config{Languages: []string{"en"}, Level: tt.level}, []byte("img"))
			if err != nil {
				t.Fatalf("Recognize() error = %v", err)
			}

			got = ocr.Clean(got)
			if len(got) != len(tt.wantTexts) {
				t.Fatalf("got %d fragments, want %d", len(got), len(tt.wantTexts))
			}
			for i, text := range tt.wantTexts {
				if got[i].Text != text {
					t.Errorf("fragment %d = %q, want %q", i, got[i].Text, text)
				}
			}
			if got[0].Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", got[0].Confidence, tt.wantConf)
			}

			r := f.req.GetRequests()[0]
			if string(r.GetImage().GetContent()) != "img" {
				t.Errorf("image content not forwarded")
			}
			if r.GetFeatures()[0].GetType() != visionpb.Feature_DOCUMENT_TEXT_DETECTION {
				t.Errorf("feature = %v", r.GetFeatures()[0].GetType())
			}
			if hints := r.GetImageContext().GetLanguageHints(); len(hints) != 1 || hints[0] != "en" {
				t.Errorf("language hints = %v", hints)
			}
		})
	}
}

func TestEngine_RecognizeErrors(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		e := newTestEngine(&fakeAnnotator{err: errors.New("unavailable")})
		_, err := e.Recognize(context.Background(), ocr.Config{}, nil)
		if err == nil || !strings.Contains(err.Error(), "unavailable") {
			t.Errorf("expected wrapped error, got %v", err)
		}
	})

	t.Run("per image error", func(t *testing.T) {
		resp := &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{
				{Error: &status.Status{Code: 3, Message: "bad image data"}},
			},
		}
		e := newTestEngine(&fakeAnnotator{resp: resp})
		_, err := e.Recognize(context.Background(), ocr.Config{}, nil)
		if err == nil || !strings.Contains(err.Error(), "bad image data") {
			t.Errorf("expected API error, got %v", err)
		}
	})

	t.Run("no responses", func(t *testing.T) {
		e := newTestEngine(&fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{}})
		got, err := e.Recognize(context.Background(), ocr.Config{}, nil)
		if err != nil || len(got) != 0 {
			t.Errorf("got %v, %v", got, err)
		}
	})
}

func TestEngine_Close(t *testing.T) {
	f := &fakeAnnotator{resp: sampleResponse()}
	e := newTestEngine(f)

	if err := e.Close(); err != nil {
		t.Fatalf("Close() before use: %v", err)
	}
	if _, err := e.Recognize(context.Background(), ocr.Config{}, nil); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil || !f.closed {
		t.Errorf("Close() = %v, closed = %v", err, f.closed)
	}
}
