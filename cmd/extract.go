package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/tabocr/internal/utils"
	"github.com/lehigh-university-libraries/tabocr/pkg/config"
	"github.com/lehigh-university-libraries/tabocr/pkg/output"
	"github.com/lehigh-university-libraries/tabocr/pkg/pdf"
	"github.com/lehigh-university-libraries/tabocr/pkg/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract <path>...",
	Short: "Extract text and tables from images, PDFs or folders of them",
	Long: `Extract text from each image or PDF (folders are expanded to the supported
files they contain) and write the results into a session folder named
<input>_<timestamp> under the output directory.

Settings come from built-in defaults, then TABOCR_ENGINE, TABOCR_LANG,
TABOCR_DPI and TABOCR_OUTPUT, then the --config YAML profile. Flags given on
the command line override all of them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

var (
	extractConfigPath string
	extractEngine     string
	extractLangs      []string
	extractMultiLang  bool
	extractLevel      string
	extractPreprocess string
	extractDPI        int
	extractOutput     string
	extractFormats    []string
	extractVisualize  bool
	extractTables     bool
	extractRowTol     float64
	extractColTol     float64
	extractMinConf    float64
	extractWorkers    int
	extractKeepRuns   int
	extractKeepImages bool
	extractTimeout    time.Duration
)

func init() {
	RootCmd.AddCommand(extractCmd)

	d := config.Defaults()
	f := extractCmd.Flags()
	f.StringVar(&extractConfigPath, "config", "", "YAML profile with extraction settings")
	f.StringVar(&extractEngine, "engine", d.Engine, "OCR engine: tesseract, vision, azure")
	f.StringSliceVar(&extractLangs, "lang", d.Languages, "Recognition language; repeat for several")
	f.BoolVar(&extractMultiLang, "multi-lang", d.MultiLanguage, "Run the engine once per --lang and merge the results")
	f.StringVar(&extractLevel, "level", d.Level, "Fragment granularity: word or line")
	f.StringVar(&extractPreprocess, "preprocess", d.Preprocess, "Image preparation: auto, best, original, standard, contrast, inverted")
	f.IntVar(&extractDPI, "dpi", d.DPI, "Resolution used to rasterize PDF pages")
	f.StringVarP(&extractOutput, "output", "o", d.Output, "Directory that holds the session folders")
	f.StringSliceVarP(&extractFormats, "format", "f", d.Formats, "Output format: txt, json, csv, html, hocr; repeat for several")
	f.BoolVar(&extractVisualize, "visualize", d.Visualize, "Save annotated page images and a confidence histogram")
	f.BoolVar(&extractTables, "tables", d.Tables, "Reconstruct tables from fragment positions")
	f.Float64Var(&extractRowTol, "row-tolerance", d.Table.RowTolerance, "Row clustering tolerance in pixels (0 derives it from the median fragment height)")
	f.Float64Var(&extractColTol, "col-tolerance", d.Table.ColumnTolerance, "Column clustering tolerance in pixels (0 derives it from the median fragment width)")
	f.Float64Var(&extractMinConf, "min-confidence", d.MinConfidence, "Drop fragments below this confidence (0-1)")
	f.IntVar(&extractWorkers, "workers", d.Workers, "Pages processed in parallel (0 uses the CPU count)")
	f.IntVar(&extractKeepRuns, "keep-runs", d.KeepRuns, "Before the run, delete all but this many existing session folders (0 keeps all)")
	f.BoolVar(&extractKeepImages, "keep-images", d.KeepImages, "Keep rasterized PDF pages in the session folder")
	f.DurationVar(&extractTimeout, "timeout", d.Timeout, "Timeout for each OCR call")
}

// resolveProfile layers explicitly set flags over the loaded profile.
func resolveProfile(cmd *cobra.Command) (config.Profile, error) {
	p, err := config.Load(extractConfigPath)
	if err != nil {
		return config.Profile{}, err
	}

	f := cmd.Flags()
	if f.Changed("engine") {
		p.Engine = extractEngine
	}
	if f.Changed("lang") {
		p.Languages = extractLangs
	}
	if f.Changed("multi-lang") {
		p.MultiLanguage = extractMultiLang
	}
	if f.Changed("level") {
		p.Level = extractLevel
	}
	if f.Changed("preprocess") {
		p.Preprocess = extractPreprocess
	}
	if f.Changed("dpi") {
		p.DPI = extractDPI
	}
	if f.Changed("output") {
		p.Output = extractOutput
	}
	if f.Changed("format") {
		p.Formats = extractFormats
	}
	if f.Changed("visualize") {
		p.Visualize = extractVisualize
	}
	if f.Changed("tables") {
		p.Tables = extractTables
	}
	if f.Changed("row-tolerance") {
		p.Table.RowTolerance = extractRowTol
	}
	if f.Changed("col-tolerance") {
		p.Table.ColumnTolerance = extractColTol
	}
	if f.Changed("min-confidence") {
		p.MinConfidence = extractMinConf
	}
	if f.Changed("workers") {
		p.Workers = extractWorkers
	}
	if f.Changed("keep-runs") {
		p.KeepRuns = extractKeepRuns
	}
	if f.Changed("keep-images") {
		p.KeepImages = extractKeepImages
	}
	if f.Changed("timeout") {
		p.Timeout = extractTimeout
	}

	if err := p.Validate(); err != nil {
		return config.Profile{}, err
	}
	return p, nil
}

// pipelineOptions maps a profile onto processor options for a run started at now.
func pipelineOptions(p config.Profile, now time.Time) pipeline.Options {
	return pipeline.Options{
		OCR:           p.OCRConfig(),
		MultiLanguage: p.MultiLanguage,
		Preprocess:    p.Preprocess,
		DPI:           p.DPI,
		Tables:        p.Tables,
		Table:         p.Table,
		MinConfidence: p.MinConfidence,
		Workers:       p.Workers,
		Visualize:     p.Visualize,
		KeepImages:    p.KeepImages,
		Output: output.RunConfig{
			Root:      p.Output,
			Timestamp: now,
			Formats:   p.Formats,
			KeepRuns:  p.KeepRuns,
		},
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	profile, err := resolveProfile(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	engine, err := newRegistry().Get(profile.Engine)
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	if err := engine.ValidateConfig(profile.OCRConfig()); err != nil {
		return fmt.Errorf("engine %s: %w", engine.Name(), err)
	}

	processor := pipeline.New(engine, pdf.Poppler{}, pipelineOptions(profile, time.Now()))
	outcomes, err := processor.ProcessAll(cmd.Context(), args)

	for _, o := range outcomes {
		stats := o.Document.Statistics()
		fmt.Printf("\n%s\n", filepath.Base(o.Document.Source))
		fmt.Printf("  Session: %s\n", o.Session)
		fmt.Printf("  Pages: %d  Text regions: %d  Tables: %d\n", stats.TotalPages, stats.TotalRegions, o.Document.Tables())
		fmt.Printf("  Average confidence: %.3f\n", stats.AverageConfidence)
		for _, f := range o.Files {
			fmt.Printf("  - %s\n", filepath.Base(f))
		}
	}

	return utils.MaskSensitiveError(err)
}
