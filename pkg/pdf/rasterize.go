// Package pdf turns PDF documents into page images and reads their metadata.
package pdf

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultDPI is used when no resolution is configured.
const DefaultDPI = 300

// Rasterizer renders each page of a PDF to an image file.
type Rasterizer interface {
	// Rasterize writes one image per page into outDir and returns their paths
	// in page order.
	Rasterize(ctx context.Context, pdfPath string, dpi int, outDir string) ([]string, error)
}

// Poppler rasterizes with the pdftoppm command line tool.
type Poppler struct {
	// Binary overrides the pdftoppm executable path.
	Binary string
}

// Rasterize implements Rasterizer.
func (p Poppler) Rasterize(ctx context.Context, pdfPath string, dpi int, outDir string) ([]string, error) {
	bin := p.Binary
	if bin == "" {
		bin = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	prefix := filepath.Join(outDir, "page")
	cmd := exec.CommandContext(ctx, bin, "-png", "-r", strconv.Itoa(dpi), pdfPath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages for %s", filepath.Base(pdfPath))
	}
	SortPages(pages)
	return pages, nil
}

// SortPages orders pdftoppm output (page-1.png, page-02.png, ...) by page
// number rather than lexically.
func SortPages(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return pageNumber(paths[i]) < pageNumber(paths[j])
	})
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndexByte(base, '-')
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
