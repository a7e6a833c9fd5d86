package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

func TestSortPages(t *testing.T) {
	paths := []string{"out/page-10.png", "out/page-2.png", "out/page-1.png", "out/page-03.png"}
	SortPages(paths)

	want := []string{"out/page-1.png", "out/page-2.png", "out/page-03.png", "out/page-10.png"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("SortPages() = %v, want %v", paths, want)
	}
}

func TestPopplerRasterize(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}

	dir := t.TempDir()
	stub := filepath.Join(dir, "pdftoppm")
	script := `#!/bin/sh
for last; do :; done
for n in 1 2 10; do : > "$last-$n.png"; done
`
	if err := os.WriteFile(stub, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "pages")
	if err := os.Mkdir(outDir, 0755); err != nil {
		t.Fatal(err)
	}

	pages, err := Poppler{Binary: stub}.Rasterize(context.Background(), "doc.pdf", 150, outDir)
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	want := []string{
		filepath.Join(outDir, "page-1.png"),
		filepath.Join(outDir, "page-2.png"),
		filepath.Join(outDir, "page-10.png"),
	}
	if !reflect.DeepEqual(pages, want) {
		t.Errorf("pages = %v, want %v", pages, want)
	}
}

func TestPopplerRasterizeMissingBinary(t *testing.T) {
	_, err := Poppler{Binary: filepath.Join(t.TempDir(), "missing")}.Rasterize(context.Background(), "doc.pdf", 0, t.TempDir())
	if err == nil {
		t.Error("expected error for missing binary")
	}
}

// minimalPDF builds a one page PDF with an Info dictionary and a correct
// cross-reference table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >>",
		"<< /Title (Ledger 1921) /Author (County Clerk) /Producer (tabocr test) >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestReadInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.pdf")
	if err := os.WriteFile(path, minimalPDF(), 0644); err != nil {
		t.Fatal(err)
	}

	info, err := ReadInfo(path)
	if err != nil {
		t.Fatalf("ReadInfo() error = %v", err)
	}
	want := Info{Pages: 1, Title: "Ledger 1921", Author: "County Clerk", Producer: "tabocr test"}
	if info != want {
		t.Errorf("ReadInfo() = %+v, want %+v", info, want)
	}
}

func TestReadInfoNotPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadInfo(path); err == nil {
		t.Error("expected error for non-PDF input")
	}
}
