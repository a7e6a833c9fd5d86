// Package vision implements the Google Cloud Vision engine using
// DOCUMENT_TEXT_DETECTION. Credentials are resolved the usual Google way,
// normally through GOOGLE_APPLICATION_CREDENTIALS.
package vision

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"

	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
)

// annotator is the subset of the generated client the engine calls.
type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// Engine implements ocr.Engine on top of the Cloud Vision API
type Engine struct {
	mu        sync.Mutex
	client    annotator
	newClient func(ctx context.Context) (annotator, error)
}

// New creates a new Vision engine. The API client is dialed on first use.
func New() *Engine {
	return &Engine{
		newClient: func(ctx context.Context) (annotator, error) {
			return vision.NewImageAnnotatorClient(ctx)
		},
	}
}

// Name returns the engine name
func (e *Engine) Name() string {
	return "vision"
}

// ValidateConfig validates the Vision configuration
func (e *Engine) ValidateConfig(config ocr.Config) error {
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS environment variable must be set")
	}
	return ocr.ValidateLevel(config.Level)
}

// Close releases the underlying API client, if one was created.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

func (e *Engine) annotator(ctx context.Context) (annotator, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client, nil
	}
	c, err := e.newClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}
	e.client = c
	return c, nil
}

// Recognize sends the image for document text detection. Word level returns
// one fragment per word, line level one per paragraph.
func (e *Engine) Recognize(ctx context.Context, config ocr.Config, image []byte) ([]ocr.Fragment, error) {
	c, err := e.annotator(ctx)
	if err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: config.Languages},
			},
		},
	}

	resp, err := c.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, nil
	}

	r := resp.GetResponses()[0]
	if r.GetError() != nil && r.GetError().GetCode() != 0 {
		return nil, fmt.Errorf("vision API error: %s", r.GetError().GetMessage())
	}
	return fragments(r.GetFullTextAnnotation(), config.Level), nil
}

func fragments(annotation *visionpb.TextAnnotation, level ocr.Level) []ocr.Fragment {
	var out []ocr.Fragment
	for _, page := range annotation.GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				if level == ocr.LevelWord {
					for _, word := range para.GetWords() {
						out = append(out, ocr.Fragment{
							Text:       wordText(word, false),
							Confidence: float64(word.GetConfidence()),
							Box:        polygon(word.GetBoundingBox()),
						})
					}
					continue
				}

				var sb strings.Builder
				for _, word := range para.GetWords() {
					sb.WriteString(wordText(word, true))
				}
				out = append(out, ocr.Fragment{
					Text:       sb.String(),
					Confidence: float64(para.GetConfidence()),
					Box:        polygon(para.GetBoundingBox()),
				})
			}
		}
	}
	return out
}

// wordText joins the word's symbols, appending a space for detected breaks
// when breaks is set.
func wordText(word *visionpb.Word, breaks bool) string {
	var sb strings.Builder
	for _, sym := range word.GetSymbols() {
		sb.WriteString(sym.GetText())
		if !breaks {
			continue
		}
		switch sym.GetProperty().GetDetectedBreak().GetType() {
		case visionpb.TextAnnotation_DetectedBreak_SPACE,
			visionpb.TextAnnotation_DetectedBreak_SURE_SPACE,
			visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
			visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

func polygon(poly *visionpb.BoundingPoly) ocr.Polygon {
	vertices := poly.GetVertices()
	p := make(ocr.Polygon, 0, len(vertices))
	for _, v := range vertices {
		p = append(p, ocr.Point{X: float64(v.GetX()), Y: float64(v.GetY())})
	}
	return p
}
