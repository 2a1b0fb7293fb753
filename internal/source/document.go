// Package source opens the documents a compose operation reads from. Every
// Document is a scoped handle: callers defer Close, which releases any
// temp copy made for a remote ref.
package source

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfnotes/internal/filetype"
)

// Document is an opened, validated, read-only source PDF.
type Document struct {
	Role      string
	Ref       string
	Path      string
	PageCount int

	temp string
}

// Close releases the temp copy of a remote document. Local files are left alone.
func (d *Document) Close() error {
	if d == nil || d.temp == "" {
		return nil
	}
	err := os.Remove(d.temp)
	d.temp = ""
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// NewConf returns a fresh pdfcpu configuration. pdfcpu records the running
// command on the configuration it is handed, so every call gets its own.
func NewConf(validation string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if strings.EqualFold(validation, "strict") {
		conf.ValidationMode = model.ValidationStrict
	} else {
		conf.ValidationMode = model.ValidationRelaxed
	}
	return conf
}

// Opener resolves refs to local files and validates them as PDFs.
type Opener struct {
	WorkDir    string
	Validation string
	HTTPClient *http.Client
	S3         S3Downloader
	Detector   *filetype.Detector

	s3mu sync.Mutex
}

// NewOpener returns an Opener writing downloads under workDir.
func NewOpener(workDir, validation string) *Opener {
	return &Opener{WorkDir: workDir, Validation: validation, Detector: filetype.New()}
}

// Open resolves ref, checks that it is a PDF, and reads its page count.
// A zero page count is reported, not rejected; callers decide what empty means.
func (o *Opener) Open(ctx context.Context, role, ref string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	local, temp, err := o.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	doc := &Document{Role: role, Ref: ref, Path: local, temp: temp}

	det := o.Detector
	if det == nil {
		det = filetype.New()
	}
	if err := det.RequirePDF(local); err != nil {
		doc.Close()
		return nil, err
	}

	n, err := o.pageCount(local)
	if err != nil {
		doc.Close()
		return nil, err
	}
	doc.PageCount = n

	log.Debug().Str("role", role).Str("ref", ref).Int("pages", n).Msg("source opened")
	return doc, nil
}

func (o *Opener) pageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, NewConf(o.Validation))
	if err != nil {
		return 0, fmt.Errorf("pdf read failed: %w", err)
	}
	return ctx.PageCount, nil
}
