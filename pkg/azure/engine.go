package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/tabocr/internal/utils"
	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
)

// Engine implements the Azure Computer Vision Read API engine
type Engine struct {
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int
}

// New creates a new Azure engine
func New() *Engine {
	return &Engine{
		client:       &http.Client{Timeout: 60 * time.Second},
		pollInterval: time.Second,
		maxPolls:     30,
	}
}

// Name returns the engine name
func (e *Engine) Name() string {
	return "azure"
}

// ValidateConfig validates the Azure configuration
func (e *Engine) ValidateConfig(config ocr.Config) error {
	endpoint := os.Getenv("AZURE_OCR_ENDPOINT")
	apiKey := os.Getenv("AZURE_OCR_API_KEY")

	if endpoint == "" || apiKey == "" {
		return fmt.Errorf("AZURE_OCR_ENDPOINT and AZURE_OCR_API_KEY environment variables must be set")
	}
	return ocr.ValidateLevel(config.Level)
}

type readOperation struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		ReadResults []readResult `json:"readResults"`
	} `json:"analyzeResult"`
}

type readResult struct {
	Page   int        `json:"page"`
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Lines  []readLine `json:"lines"`
}

type readLine struct {
	BoundingBox []float64  `json:"boundingBox"`
	Text        string     `json:"text"`
	Words       []readWord `json:"words"`
}

type readWord struct {
	BoundingBox []float64 `json:"boundingBox"`
	Text        string    `json:"text"`
	Confidence  float64   `json:"confidence"`
}

// Recognize submits the image to the Read API and polls until the analysis finishes
func (e *Engine) Recognize(ctx context.Context, config ocr.Config, image []byte) ([]ocr.Fragment, error) {
	endpoint := os.Getenv("AZURE_OCR_ENDPOINT")
	apiKey := os.Getenv("AZURE_OCR_API_KEY")

	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("AZURE_OCR_ENDPOINT and AZURE_OCR_API_KEY environment variables must be set")
	}

	readURL := fmt.Sprintf("%s/vision/v3.2/read/analyze", strings.TrimSuffix(endpoint, "/"))
	if len(config.Languages) > 0 {
		readURL += "?language=" + url.QueryEscape(config.Languages[0])
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, readURL, bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, utils.MaskSensitiveError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return nil, utils.MaskSensitiveError(fmt.Errorf("azure OCR API error: %d - %s", resp.StatusCode, truncate(body)))
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return nil, fmt.Errorf("no operation location returned from Azure OCR")
	}

	for attempts := 0; attempts < e.maxPolls; attempts++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.pollInterval):
		}

		op, done, err := e.poll(ctx, operationURL, apiKey)
		if err != nil {
			return nil, err
		}
		if !done {
			continue
		}

		switch op.Status {
		case "succeeded":
			return fragments(op, config.Level), nil
		case "failed":
			return nil, fmt.Errorf("azure OCR analysis failed")
		}
		// "running" and "notStarted" keep polling
	}

	return nil, fmt.Errorf("azure OCR operation timed out")
}

// poll fetches the operation status; done is false when the response should be retried
func (e *Engine) poll(ctx context.Context, operationURL, apiKey string) (readOperation, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return readOperation{}, false, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return readOperation{}, false, utils.MaskSensitiveError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readOperation{}, false, nil
	}

	var op readOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return readOperation{}, false, fmt.Errorf("invalid response format from Azure OCR: %w", err)
	}
	if op.Status == "" {
		return readOperation{}, false, fmt.Errorf("invalid response format from Azure OCR")
	}
	return op, true, nil
}

// fragments converts a finished read operation into fragments. Line
// confidence is the mean of its word confidences.
func fragments(op readOperation, level ocr.Level) []ocr.Fragment {
	var out []ocr.Fragment
	for _, page := range op.AnalyzeResult.ReadResults {
		for _, line := range page.Lines {
			if level == ocr.LevelWord {
				for _, w := range line.Words {
					out = append(out, ocr.Fragment{
						Text:       w.Text,
						Confidence: w.Confidence,
						Box:        polygon(w.BoundingBox),
					})
				}
				continue
			}

			var conf float64
			for _, w := range line.Words {
				conf += w.Confidence
			}
			if len(line.Words) > 0 {
				conf /= float64(len(line.Words))
			}
			out = append(out, ocr.Fragment{
				Text:       line.Text,
				Confidence: conf,
				Box:        polygon(line.BoundingBox),
			})
		}
	}
	return out
}

// polygon converts Azure's flat [x1,y1,...,x4,y4] box. Malformed boxes give
// a short polygon which ocr.Clean later drops.
func polygon(box []float64) ocr.Polygon {
	var p ocr.Polygon
	for i := 0; i+1 < len(box); i += 2 {
		p = append(p, ocr.Point{X: box[i], Y: box[i+1]})
	}
	return p
}

func truncate(body []byte) string {
	const limit = 500
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "... (truncated)"
	}
	return s
}
