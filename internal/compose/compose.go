// Package compose builds interleaved and 2-up PDFs from a main document and
// an insert (template) document. Sources are read-only; every intermediate
// file lives in a private work directory and the result is published to the
// destination exactly once.
package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfnotes/internal/layout"
	"github.com/local/pdfnotes/internal/metrics"
	"github.com/local/pdfnotes/internal/source"
)

// Modes, also used as metric labels and batch manifest values.
const (
	ModeInterleave     = "interleave"
	ModeTwoUp          = "twoup"
	ModeMergeThenTwoUp = "merge-then-2up"
)

// WorkDirPrefix names per-operation work directories.
const WorkDirPrefix = "pdfnotes-"

// Options configures sheet geometry and 2-up pairing.
type Options struct {
	Sheet      layout.Sheet
	Pairing    layout.Pairing
	Order      layout.Order
	WorkDir    string
	Validation string
}

// DefaultOptions is A4 landscape, template pairing, forward order.
func DefaultOptions() Options {
	return Options{
		Sheet:   layout.A4Landscape,
		Pairing: layout.PairTemplate,
		Order:   layout.Forward,
	}
}

// DocumentOpener opens source refs as scoped documents.
type DocumentOpener interface {
	Open(ctx context.Context, role, ref string) (*source.Document, error)
}

// Result describes a published output.
type Result struct {
	RunID    string
	Mode     string
	Output   string
	Pages    int
	Sheets   int
	Duration time.Duration
}

// Service runs compose operations.
type Service struct {
	opts      Options
	opener    DocumentOpener
	publisher *Publisher
}

// New returns a Service. A nil opener opens refs with source.NewOpener.
func New(opts Options, opener DocumentOpener) *Service {
	if opts.Sheet == (layout.Sheet{}) {
		opts.Sheet = layout.A4Landscape
	}
	if opts.Pairing == "" {
		opts.Pairing = layout.PairTemplate
	}
	if opts.Order == "" {
		opts.Order = layout.Forward
	}
	if opener == nil {
		opener = source.NewOpener(opts.WorkDir, opts.Validation)
	}
	return &Service{opts: opts, opener: opener, publisher: &Publisher{}}
}

// WithPublisher replaces the output publisher.
func (s *Service) WithPublisher(p *Publisher) *Service {
	s.publisher = p
	return s
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// Interleave writes main's pages each followed by insert's first page.
func (s *Service) Interleave(ctx context.Context, mainRef, insertRef, outputRef string) (*Result, error) {
	return s.run(ctx, ModeInterleave, mainRef, insertRef, outputRef, func(j *job) error {
		seq := layout.Interleave(j.main.PageCount, j.main.PageCount+1)
		if err := j.collect(seq, j.out); err != nil {
			return err
		}
		j.res.Pages = len(seq)
		return nil
	})
}

// TwoUp writes one sheet per (main, insert) pair using the configured
// pairing and order.
func (s *Service) TwoUp(ctx context.Context, mainRef, insertRef, outputRef string) (*Result, error) {
	return s.run(ctx, ModeTwoUp, mainRef, insertRef, outputRef, func(j *job) error {
		return j.twoUp(s.opts.Pairing, s.opts.Order)
	})
}

// MergeThenTwoUp interleaves main with the template page and lays each
// (page, template) pair onto one sheet, in forward order.
func (s *Service) MergeThenTwoUp(ctx context.Context, mainRef, insertRef, outputRef string) (*Result, error) {
	return s.run(ctx, ModeMergeThenTwoUp, mainRef, insertRef, outputRef, func(j *job) error {
		return j.twoUp(layout.PairTemplate, layout.Forward)
	})
}

// job is one operation's state: opened sources, work directory, and the
// path the finished document is built at.
type job struct {
	svc      *Service
	log      zerolog.Logger
	main     *source.Document
	insert   *source.Document
	dir      string
	combined string
	out      string
	res      *Result
}

func (s *Service) run(ctx context.Context, mode, mainRef, insertRef, outputRef string, build func(*job) error) (_ *Result, err error) {
	metrics.Init()
	start := time.Now()
	res := &Result{RunID: uuid.NewString(), Mode: mode, Output: outputRef}
	l := log.With().Str("run_id", res.RunID).Str("mode", mode).Logger()

	defer func() {
		res.Duration = time.Since(start)
		result := "success"
		if err != nil {
			result = errorKind(err)
			l.Debug().Err(err).Str("kind", result).Msg("compose failed")
		} else {
			metrics.AddPages(mode, res.Pages)
			metrics.AddSheets(res.Sheets)
		}
		metrics.ObserveOperation(mode, result, res.Duration)
	}()

	l.Info().Str("main", mainRef).Str("insert", insertRef).Str("output", outputRef).Msg("compose started")

	j := &job{svc: s, log: l, res: res}

	j.main, err = s.openSource(ctx, "main", mainRef)
	if err != nil {
		return nil, err
	}
	defer j.main.Close()

	j.insert, err = s.openSource(ctx, "insert", insertRef)
	if err != nil {
		return nil, err
	}
	defer j.insert.Close()

	j.dir, err = os.MkdirTemp(s.opts.WorkDir, WorkDirPrefix+"*")
	if err != nil {
		return nil, &WriteError{Ref: s.opts.WorkDir, Err: fmt.Errorf("create work dir: %w", err)}
	}
	defer os.RemoveAll(j.dir)

	j.combined = filepath.Join(j.dir, "combined.pdf")
	j.out = filepath.Join(j.dir, "result.pdf")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := api.MergeCreateFile([]string{j.main.Path, j.insert.Path}, j.combined, false, source.NewConf(s.opts.Validation)); err != nil {
		return nil, &PageCopyError{Step: "merge", Err: err}
	}

	if err := build(j); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, j.out, outputRef); err != nil {
		return nil, err
	}

	l.Info().
		Int("main_pages", j.main.PageCount).
		Int("insert_pages", j.insert.PageCount).
		Int("pages", res.Pages).
		Int("sheets", res.Sheets).
		Dur("took", time.Since(start)).
		Msg("compose finished")
	return res, nil
}

func (s *Service) openSource(ctx context.Context, role, ref string) (*source.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.opener.Open(ctx, role, ref)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &DocumentOpenError{Role: role, Ref: ref, Err: err}
	}
	if doc.PageCount <= 0 {
		doc.Close()
		return nil, &EmptyDocumentError{Role: role, Ref: ref}
	}
	return doc, nil
}

// collect writes the pages of the combined document in seq order to dst.
func (j *job) collect(seq []int, dst string) error {
	conf := source.NewConf(j.svc.opts.Validation)
	if err := api.CollectFile(j.combined, dst, layout.Selection(seq), conf); err != nil {
		return &PageCopyError{Step: "collect", Err: err}
	}
	return nil
}

func (j *job) twoUp(p layout.Pairing, o layout.Order) error {
	pairs, err := layout.Pairs(j.main.PageCount, j.insert.PageCount, p, o)
	if err != nil {
		if errors.Is(err, layout.ErrCountMismatch) {
			return &PairingMismatchError{Left: j.main.PageCount, Right: j.insert.PageCount}
		}
		return &PageCopyError{Step: "pairing", Err: err}
	}

	paired := filepath.Join(j.dir, "paired.pdf")
	if err := j.collect(layout.Flatten(pairs), paired); err != nil {
		return err
	}
	if err := nUp(paired, j.out, j.svc.opts.Sheet, j.svc.opts.Validation); err != nil {
		return err
	}

	left, right := j.svc.opts.Sheet.Halves()
	j.log.Debug().
		Str("sheet", j.svc.opts.Sheet.String()).
		Floats64("left", []float64{left.LLX, left.LLY, left.URX, left.URY}).
		Floats64("right", []float64{right.LLX, right.LLY, right.URX, right.URY}).
		Str("pairing", string(p)).
		Str("order", string(o)).
		Msg("sheets laid out")

	j.res.Sheets = len(pairs)
	j.res.Pages = len(pairs)
	return nil
}

// errorKind maps an error to a metric label.
func errorKind(err error) string {
	var (
		openErr  *DocumentOpenError
		emptyErr *EmptyDocumentError
		pairErr  *PairingMismatchError
		copyErr  *PageCopyError
		writeErr *WriteError
	)
	switch {
	case errors.As(err, &openErr):
		return "open_error"
	case errors.As(err, &emptyErr):
		return "empty_document"
	case errors.As(err, &pairErr):
		return "pairing_mismatch"
	case errors.As(err, &copyErr):
		return "page_copy_error"
	case errors.As(err, &writeErr):
		return "write_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
