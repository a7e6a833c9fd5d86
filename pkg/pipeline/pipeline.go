// Package pipeline runs OCR over image and PDF inputs and writes the results
// into session folders.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
	"github.com/lehigh-university-libraries/tabocr/pkg/output"
	"github.com/lehigh-university-libraries/tabocr/pkg/pdf"
	"github.com/lehigh-university-libraries/tabocr/pkg/preprocess"
	"github.com/lehigh-university-libraries/tabocr/pkg/result"
	"github.com/lehigh-university-libraries/tabocr/pkg/table"
	"github.com/lehigh-university-libraries/tabocr/pkg/visualize"
)

// HistogramBins is the number of bars in the confidence histogram.
const HistogramBins = 20

// Options configures a Processor.
type Options struct {
	OCR ocr.Config
	// MultiLanguage runs the engine once per language and merges the results.
	MultiLanguage bool
	Preprocess    string
	DPI           int
	Tables        bool
	Table         table.Options
	MinConfidence float64
	Workers       int
	Visualize     bool
	// KeepImages rasterizes PDF pages into the session folder instead of a
	// temporary directory.
	KeepImages bool
	Output     output.RunConfig
}

// Outcome is what processing one input produced.
type Outcome struct {
	Document *result.Document
	Session  string
	Files    []string
}

// Processor turns input files into documents and output files.
type Processor struct {
	engine     ocr.Engine
	rasterizer pdf.Rasterizer
	opts       Options
	now        func() time.Time
}

// New creates a processor. A zero Output.Timestamp is filled in with the
// current time so every input of a run shares one timestamp.
func New(engine ocr.Engine, rasterizer pdf.Rasterizer, opts Options) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Output.Timestamp.IsZero() {
		opts.Output.Timestamp = time.Now()
	}
	return &Processor{
		engine:     engine,
		rasterizer: rasterizer,
		opts:       opts,
		now:        time.Now,
	}
}

// Expand replaces directories in paths with the supported files they contain,
// in name order. Explicit file arguments are kept as given.
func Expand(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && preprocess.Supported(e.Name()) {
				out = append(out, filepath.Join(p, e.Name()))
			}
		}
	}
	return out, nil
}

// ProcessAll prunes old sessions when configured, then processes every input,
// continuing past failed files. Sessions written by this run are never pruned.
func (p *Processor) ProcessAll(ctx context.Context, paths []string) ([]*Outcome, error) {
	files, err := Expand(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no supported files found")
	}

	var (
		outcomes []*Outcome
		errs     []error
	)
	if p.opts.Output.KeepRuns > 0 {
		removed, err := output.Prune(p.opts.Output.Root, p.opts.Output.KeepRuns)
		if err != nil {
			errs = append(errs, fmt.Errorf("prune sessions: %w", err))
		}
		for _, r := range removed {
			slog.Info("Removed old session", "path", r)
		}
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		o, err := p.Process(ctx, f)
		if err != nil {
			slog.Error("Failed to process file", "file", f, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		outcomes = append(outcomes, o)
	}

	return outcomes, errors.Join(errs...)
}

// Process runs OCR over one image or PDF and writes the configured outputs.
func (p *Processor) Process(ctx context.Context, path string) (*Outcome, error) {
	var kind result.Kind
	switch {
	case preprocess.IsPDF(path):
		kind = result.KindPDF
	case preprocess.IsImage(path):
		kind = result.KindImage
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	session, err := p.opts.Output.NewSession(path)
	if err != nil {
		return nil, err
	}

	doc := result.NewDocument(path, kind, p.now())
	slog.Info("Processing", "file", path, "type", kind, "run", doc.RunID)

	images := []string{path}
	if kind == result.KindPDF {
		info, err := pdf.ReadInfo(path)
		if err != nil {
			slog.Warn("Could not read PDF info", "file", path, "err", err)
		} else {
			doc.PDF = &info
		}

		images, err = p.rasterize(ctx, path, session)
		if err != nil {
			if rmErr := os.RemoveAll(session); rmErr != nil {
				slog.Warn("Could not remove session folder", "path", session, "err", rmErr)
			}
			return nil, err
		}
		if !p.opts.KeepImages {
			defer os.RemoveAll(filepath.Dir(images[0]))
		}
	}

	doc.Pages = make([]result.Page, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, img := range images {
		g.Go(func() error {
			doc.Pages[i] = p.processPage(gctx, i+1, img, session, path)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files, err := output.Write(p.opts.Output, session, doc)
	if err != nil {
		return nil, err
	}

	if p.opts.Visualize {
		hist := filepath.Join(session, output.BaseName(path)+"_confidence.png")
		if err := visualize.SavePNG(hist, visualize.Histogram(doc.Confidences(), HistogramBins)); err != nil {
			slog.Warn("Could not save histogram", "err", err)
		} else {
			files = append(files, hist)
		}
		for _, page := range doc.Pages {
			if a := annotatedPath(session, path, page.Number); fileExists(a) {
				files = append(files, a)
			}
		}
	}

	stats := doc.Statistics()
	slog.Info("Finished",
		"file", path,
		"pages", stats.TotalPages,
		"regions", stats.TotalRegions,
		"avg_confidence", fmt.Sprintf("%.3f", stats.AverageConfidence),
		"session", session)

	return &Outcome{Document: doc, Session: session, Files: files}, nil
}

func (p *Processor) rasterize(ctx context.Context, path, session string) ([]string, error) {
	var dir string
	if p.opts.KeepImages {
		dir = filepath.Join(session, "pages")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	} else {
		var err error
		dir, err = os.MkdirTemp("", "tabocr-pages-*")
		if err != nil {
			return nil, fmt.Errorf("creating temp dir: %w", err)
		}
	}

	images, err := p.rasterizer.Rasterize(ctx, path, p.opts.DPI, dir)
	if err != nil {
		if !p.opts.KeepImages {
			os.RemoveAll(dir)
		}
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	if len(images) == 0 {
		if !p.opts.KeepImages {
			os.RemoveAll(dir)
		}
		return nil, fmt.Errorf("rasterize: no pages")
	}
	slog.Debug("Rasterized PDF", "file", path, "pages", len(images), "dpi", p.opts.DPI)
	return images, nil
}

// RecognizePage runs OCR over a single image file without writing outputs.
func (p *Processor) RecognizePage(ctx context.Context, imagePath string) result.Page {
	opts := p.opts
	opts.Visualize = false
	q := *p
	q.opts = opts
	return q.processPage(ctx, 1, imagePath, "", imagePath)
}

// processPage never fails the document: errors are logged and recorded on
// the page, which is then reported as empty.
func (p *Processor) processPage(ctx context.Context, number int, imagePath, session, source string) result.Page {
	page := result.Page{Number: number, ImagePath: imagePath}

	img, err := preprocess.Load(imagePath)
	if err != nil {
		slog.Warn("Page failed", "page", number, "err", err)
		page.Err = err.Error()
		return page
	}
	page.Width, page.Height = img.Bounds().Dx(), img.Bounds().Dy()

	res, err := preprocess.Select(ctx, img, p.opts.Preprocess, p.recognize)
	if err != nil {
		slog.Warn("Page failed", "page", number, "err", err)
		page.Err = err.Error()
		return page
	}

	page.Variant = res.Variant
	page.Fragments = ocr.FilterConfidence(res.Fragments, p.opts.MinConfidence)
	page.Confidence = ocr.AverageConfidence(page.Fragments)

	if p.opts.Tables {
		tbl, err := table.Reconstruct(page.Fragments, p.opts.Table)
		switch {
		case errors.Is(err, table.ErrNoTable):
			slog.Debug("No table detected", "page", number)
		case err != nil:
			slog.Warn("Table reconstruction failed", "page", number, "err", err)
		case !tbl.Empty():
			page.Table = tbl
			slog.Debug("Table detected", "page", number, "rows", tbl.Rows(), "cols", tbl.Cols())
		}
	}

	if p.opts.Visualize {
		out := annotatedPath(session, source, number)
		if err := visualize.SavePNG(out, visualize.Annotate(img, page.Fragments)); err != nil {
			slog.Warn("Could not save annotated page", "page", number, "err", err)
		}
	}

	slog.Debug("Page done", "page", number, "variant", page.Variant, "fragments", len(page.Fragments))
	return page
}

func (p *Processor) recognize(ctx context.Context, image []byte) ([]ocr.Fragment, error) {
	if p.opts.OCR.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.OCR.Timeout)
		defer cancel()
	}
	if p.opts.MultiLanguage {
		return ocr.RecognizeLanguages(ctx, p.engine, p.opts.OCR, image)
	}
	return p.engine.Recognize(ctx, p.opts.OCR, image)
}

func annotatedPath(session, source string, page int) string {
	return filepath.Join(session, fmt.Sprintf("%s_page%d_annotated.png", output.BaseName(source), page))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
