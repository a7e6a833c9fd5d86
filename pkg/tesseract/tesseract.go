// Package tesseract runs the local Tesseract engine through gosseract.
// It requires libtesseract and the trained data for every language used.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
)

// languages maps short codes accepted on the command line to tessdata names.
// Anything not listed is passed through untouched.
var languages = map[string]string{
	"en": "eng",
	"ch": "chi_sim",
	"zh": "chi_sim",
	"fr": "fra",
	"de": "deu",
	"es": "spa",
	"it": "ita",
	"ja": "jpn",
	"ko": "kor",
	"ru": "rus",
	"ar": "ara",
}

// Engine implements ocr.Engine. A fresh client is created for every call so
// that pages can be recognized concurrently.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// New creates a new Tesseract engine
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

// Name returns the engine name
func (e *Engine) Name() string {
	return "tesseract"
}

// ValidateConfig validates the tesseract configuration
func (e *Engine) ValidateConfig(config ocr.Config) error {
	return ocr.ValidateLevel(config.Level)
}

// Recognize runs Tesseract over the image and returns word or line fragments
func (e *Engine) Recognize(ctx context.Context, config ocr.Config, image []byte) ([]ocr.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(config.Languages) > 0 {
		if err := c.SetLanguage(Languages(config.Languages)...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}

	level := gosseract.RIL_TEXTLINE
	if config.Level == ocr.LevelWord {
		level = gosseract.RIL_WORD
	}

	boxes, err := c.GetBoundingBoxes(level)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	return fragments(boxes), nil
}

// Languages converts short language codes to tessdata names.
func Languages(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToLower(strings.TrimSpace(code))
		if name, ok := languages[code]; ok {
			code = name
		}
		out = append(out, code)
	}
	return out
}

func fragments(boxes []gosseract.BoundingBox) []ocr.Fragment {
	out := make([]ocr.Fragment, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, ocr.Fragment{
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
			Box: ocr.Rect(
				float64(b.Box.Min.X), float64(b.Box.Min.Y),
				float64(b.Box.Max.X), float64(b.Box.Max.Y),
			),
		})
	}
	return out
}
