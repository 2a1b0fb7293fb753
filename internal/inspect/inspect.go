// Package inspect reports what a PDF looks like from the outside: page
// count, page sizes, and page text. It is how outputs are checked.
package inspect

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageInfo captures one page of an inspected PDF.
type PageInfo struct {
	Index  int     `json:"index"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Text   string  `json:"text,omitempty"`
	Err    string  `json:"err,omitempty"`
}

// Label is the first non-empty line of the page text.
func (p PageInfo) Label() string {
	for _, line := range strings.Split(p.Text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}

// Report is the result of Inspect.
type Report struct {
	FilePath   string     `json:"file_path"`
	PageCount  int        `json:"page_count"`
	Pages      []PageInfo `json:"pages"`
	DurationMs int64      `json:"duration_ms"`
}

// Doc abstracts a PDF document for text extraction.
type Doc interface {
	NumPage() int
	Page(i int) (Page, error)
	Close() error
}

// Page abstracts a single PDF page for text extraction.
type Page interface {
	Text() (string, error)
	Close()
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// defaultOpener is provided in doc_open_fitz.go using go-fitz.
var defaultOpener Opener

// setDefaultOpener allows swapping the default opener, useful for tests or alternate backends.
func setDefaultOpener(o Opener) { defaultOpener = o }

// Inspect reads sizes with pdfcpu and text with the default opener.
func Inspect(pdfPath string) (*Report, error) {
	if defaultOpener == nil {
		return nil, errors.New("no PDF opener configured")
	}
	start := time.Now()

	dims, err := api.PageDimsFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read page sizes: %w", err)
	}

	d, err := defaultOpener.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer d.Close()

	total := d.NumPage()
	if total != len(dims) {
		return nil, fmt.Errorf("page count disagreement: %d sizes, %d text pages", len(dims), total)
	}

	pages := make([]PageInfo, 0, total)
	for i := 0; i < total; i++ {
		info := PageInfo{Index: i, Width: dims[i].Width, Height: dims[i].Height}
		p, perr := d.Page(i)
		if perr != nil {
			info.Err = perr.Error()
			pages = append(pages, info)
			continue
		}
		text, terr := p.Text()
		p.Close()
		if terr != nil {
			info.Err = terr.Error()
		}
		info.Text = text
		pages = append(pages, info)
	}

	return &Report{
		FilePath:   pdfPath,
		PageCount:  total,
		Pages:      pages,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Labels returns the label of every page in order.
func Labels(pdfPath string) ([]string, error) {
	rep, err := Inspect(pdfPath)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rep.Pages))
	for i, p := range rep.Pages {
		out[i] = p.Label()
	}
	return out, nil
}
