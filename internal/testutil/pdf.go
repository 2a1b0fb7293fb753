// Package testutil builds small labelled PDF fixtures for tests. Each page
// carries its label as text so page order can be read back.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/phpdave11/gofpdf"
)

// A4 portrait in points.
const (
	A4Width  = 595.0
	A4Height = 842.0
)

// WritePDF writes one A4 portrait page per label into dir/name.
func WritePDF(t testing.TB, dir, name string, labels ...string) string {
	t.Helper()
	return WriteSizedPDF(t, dir, name, A4Width, A4Height, labels...)
}

// WriteSizedPDF is WritePDF with an explicit page size in points.
func WriteSizedPDF(t testing.TB, dir, name string, w, h float64, labels ...string) string {
	t.Helper()
	if len(labels) == 0 {
		t.Fatalf("fixture %s needs at least one page", name)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetFont("Helvetica", "", 28)
	for _, label := range labels {
		pdf.AddPage()
		pdf.Text(72, 120, label)
	}

	path := filepath.Join(dir, name)
	if err := pdf.OutputFileAndClose(path); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// WriteFile writes raw bytes, for non-PDF inputs.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
