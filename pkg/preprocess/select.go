package preprocess

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
)

const (
	// ModeAuto uses the standard variant, falling back to the original image
	// when preprocessing fails.
	ModeAuto = "auto"
	// ModeBest runs OCR on every variant and keeps the most confident result.
	ModeBest = "best"
)

// RecognizeFunc runs OCR over an encoded image.
type RecognizeFunc func(ctx context.Context, image []byte) ([]ocr.Fragment, error)

// Result is the outcome of OCR on the chosen variant. Fragment coordinates
// are relative to the original image.
type Result struct {
	Variant   Variant
	Fragments []ocr.Fragment
}

// ValidateMode accepts auto, best and every variant name.
func ValidateMode(mode string) error {
	switch mode {
	case "", ModeAuto, ModeBest:
		return nil
	}
	for _, v := range Variants {
		if Variant(mode) == v {
			return nil
		}
	}
	return fmt.Errorf("unknown preprocessing mode %q", mode)
}

// Select prepares img according to mode and runs recognize on it.
func Select(ctx context.Context, img image.Image, mode string, recognize RecognizeFunc) (Result, error) {
	if err := ValidateMode(mode); err != nil {
		return Result{}, err
	}

	switch mode {
	case ModeBest:
		return best(ctx, img, recognize)
	case "", ModeAuto:
		res, err := run(ctx, img, Standard, recognize)
		if errors.Is(err, errPreprocess) {
			slog.Warn("Preprocessing failed, using original image", "err", err)
			return run(ctx, img, Original, recognize)
		}
		return res, err
	}
	return run(ctx, img, Variant(mode), recognize)
}

var errPreprocess = errors.New("preprocessing failed")

func run(ctx context.Context, img image.Image, v Variant, recognize RecognizeFunc) (Result, error) {
	prepared, scale, err := Apply(img, v)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", errPreprocess, v, err)
	}
	data, err := Encode(prepared)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", errPreprocess, v, err)
	}

	fragments, err := recognize(ctx, data)
	if err != nil {
		return Result{}, fmt.Errorf("ocr on %s variant: %w", v, err)
	}

	fragments = ocr.Clean(fragments)
	if scale != 1 {
		fragments = ocr.ScaleFragments(fragments, 1/scale)
	}
	return Result{Variant: v, Fragments: fragments}, nil
}

// best tries each variant in turn. Ties on average confidence go to the
// variant with more fragments, then to the earlier variant.
func best(ctx context.Context, img image.Image, recognize RecognizeFunc) (Result, error) {
	var (
		chosen   Result
		bestConf = -1.0
		errs     []error
	)
	for _, v := range Variants {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := run(ctx, img, v, recognize)
		if err != nil {
			slog.Warn("Variant failed", "variant", v, "err", err)
			errs = append(errs, err)
			continue
		}

		conf := ocr.AverageConfidence(res.Fragments)
		slog.Debug("Variant scored", "variant", v, "confidence", conf, "fragments", len(res.Fragments))
		if conf > bestConf || (conf == bestConf && len(res.Fragments) > len(chosen.Fragments)) {
			chosen, bestConf = res, conf
		}
	}

	if bestConf < 0 {
		return Result{}, errors.Join(errs...)
	}
	return chosen, nil
}
