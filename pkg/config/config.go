// Package config loads extraction profiles. Values come from built-in
// defaults, then TABOCR_* environment variables, then an optional YAML
// profile; command line flags are applied last by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
	"github.com/lehigh-university-libraries/tabocr/pkg/output"
	"github.com/lehigh-university-libraries/tabocr/pkg/pdf"
	"github.com/lehigh-university-libraries/tabocr/pkg/preprocess"
	"github.com/lehigh-university-libraries/tabocr/pkg/table"
)

// Profile is every setting the extract command understands.
type Profile struct {
	Engine        string        `yaml:"engine"`
	Languages     []string      `yaml:"languages"`
	MultiLanguage bool          `yaml:"multi_language"`
	Level         string        `yaml:"level"`
	Preprocess    string        `yaml:"preprocess"`
	DPI           int           `yaml:"dpi"`
	Output        string        `yaml:"output"`
	Formats       []string      `yaml:"formats"`
	Visualize     bool          `yaml:"visualize"`
	Tables        bool          `yaml:"tables"`
	Table         table.Options `yaml:"table"`
	MinConfidence float64       `yaml:"min_confidence"`
	Workers       int           `yaml:"workers"`
	KeepRuns      int           `yaml:"keep_runs"`
	KeepImages    bool          `yaml:"keep_images"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Defaults returns the built-in profile.
func Defaults() Profile {
	return Profile{
		Engine:     "tesseract",
		Languages:  []string{"en"},
		Level:      string(ocr.LevelLine),
		Preprocess: preprocess.ModeAuto,
		DPI:        pdf.DefaultDPI,
		Output:     "ocr_output",
		Formats:    append([]string(nil), output.DefaultFormats...),
		Tables:     true,
		Timeout:    2 * time.Minute,
	}
}

// FromEnv overlays TABOCR_ENGINE, TABOCR_LANG (comma separated), TABOCR_DPI
// and TABOCR_OUTPUT onto p.
func FromEnv(p Profile) Profile {
	if v := os.Getenv("TABOCR_ENGINE"); v != "" {
		p.Engine = v
	}
	if v := os.Getenv("TABOCR_LANG"); v != "" {
		p.Languages = splitList(v)
	}
	if v := os.Getenv("TABOCR_DPI"); v != "" {
		dpi, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("Ignoring invalid TABOCR_DPI", "value", v)
		} else {
			p.DPI = dpi
		}
	}
	if v := os.Getenv("TABOCR_OUTPUT"); v != "" {
		p.Output = v
	}
	return p
}

// Load builds a profile from defaults, the environment and, when path is not
// empty, the YAML file at path.
func Load(path string) (Profile, error) {
	p := FromEnv(Defaults())
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if err := Decode(bytes.NewReader(data), &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

// Decode reads YAML into p, keeping fields the document does not set.
// Unknown keys are an error.
func Decode(r io.Reader, p *Profile) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the profile for values no component would accept.
func (p Profile) Validate() error {
	var errs []error
	if p.Engine == "" {
		errs = append(errs, fmt.Errorf("engine must be set"))
	}
	if err := ocr.ValidateLevel(ocr.Level(p.Level)); err != nil {
		errs = append(errs, err)
	}
	if err := preprocess.ValidateMode(p.Preprocess); err != nil {
		errs = append(errs, err)
	}
	if err := output.ValidateFormats(p.Formats); err != nil {
		errs = append(errs, err)
	}
	if p.DPI < 0 {
		errs = append(errs, fmt.Errorf("dpi must not be negative"))
	}
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("min_confidence must be between 0 and 1"))
	}
	if p.Workers < 0 || p.KeepRuns < 0 {
		errs = append(errs, fmt.Errorf("workers and keep_runs must not be negative"))
	}
	if p.MultiLanguage && len(p.Languages) == 0 {
		errs = append(errs, ocr.ErrNoLanguage)
	}
	return errors.Join(errs...)
}

// OCRConfig is the engine configuration described by the profile.
func (p Profile) OCRConfig() ocr.Config {
	return ocr.Config{
		Engine:    p.Engine,
		Languages: p.Languages,
		Level:     ocr.Level(p.Level),
		Timeout:   p.Timeout,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
