package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Level selects the granularity of the fragments an engine reports.
type Level string

const (
	LevelWord Level = "word"
	LevelLine Level = "line"
)

// DuplicateIoU is the overlap above which two fragments from different
// language passes are considered the same text.
const DuplicateIoU = 0.8

// Config represents the configuration passed to an engine for one image
type Config struct {
	Engine    string
	Languages []string
	Level     Level
	Timeout   time.Duration
}

// Engine is implemented by every OCR backend
type Engine interface {
	// Recognize runs OCR on an encoded image (PNG, JPEG, ...) and returns the
	// fragments it found in image pixel coordinates
	Recognize(ctx context.Context, config Config, image []byte) ([]Fragment, error)
	// Name returns the engine's registry name
	Name() string
	// ValidateConfig checks engine specific configuration (credentials, levels)
	ValidateConfig(config Config) error
}

// ErrNoLanguage is returned when multi-language recognition has nothing to run.
var ErrNoLanguage = errors.New("no languages configured")

// ValidateLevel accepts the empty level as well as the known ones.
func ValidateLevel(level Level) error {
	switch level {
	case "", LevelWord, LevelLine:
		return nil
	}
	return fmt.Errorf("unsupported level %q", level)
}

// RecognizeLanguages runs the engine once per configured language and merges
// the results, removing duplicate detections of the same text.
// A language that fails is logged and skipped; the call errors only when
// every language failed.
func RecognizeLanguages(ctx context.Context, engine Engine, config Config, image []byte) ([]Fragment, error) {
	if len(config.Languages) == 0 {
		return nil, ErrNoLanguage
	}

	var (
		combined []Fragment
		errs     []error
	)
	for _, lang := range config.Languages {
		langConfig := config
		langConfig.Languages = []string{lang}

		fragments, err := engine.Recognize(ctx, langConfig, image)
		if err != nil {
			slog.Warn("Language pass failed", "engine", engine.Name(), "lang", lang, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
			continue
		}
		slog.Debug("Language pass completed", "lang", lang, "fragments", len(fragments))
		combined = append(combined, fragments...)
	}

	if len(errs) == len(config.Languages) {
		return nil, errors.Join(errs...)
	}

	return Dedupe(combined, DuplicateIoU), nil
}
