package compose

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfnotes/internal/inspect"
	"github.com/local/pdfnotes/internal/layout"
	"github.com/local/pdfnotes/internal/source"
	"github.com/local/pdfnotes/internal/storage"
	"github.com/local/pdfnotes/internal/testutil"
)

func newService(t *testing.T, mutate func(*Options)) *Service {
	t.Helper()
	opts := DefaultOptions()
	opts.WorkDir = t.TempDir()
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts, nil)
}

func labels(t *testing.T, path string) []string {
	t.Helper()
	got, err := inspect.Labels(path)
	require.NoError(t, err)
	return got
}

func fileHash(t *testing.T, path string) [32]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return sha256.Sum256(data)
}

// sheetBlock finds the text block containing label on sheet index of path.
func sheetBlock(t *testing.T, path string, index int, label string) inspect.TextBlock {
	t.Helper()
	blocks, err := inspect.TextBlocks(path, index)
	require.NoError(t, err)
	b, ok := inspect.FindBlock(blocks, label)
	require.True(t, ok, "%q not on sheet %d: %+v", label, index, blocks)
	return b
}

// assertHalves checks that left sits in the left half of a sheet of width w
// and right in the right half.
func assertHalves(t *testing.T, path string, index int, w float64, left, right string) {
	t.Helper()
	l := sheetBlock(t, path, index, left)
	r := sheetBlock(t, path, index, right)
	assert.Less(t, l.Left, w/2, "%s must be in the left half", left)
	assert.GreaterOrEqual(t, r.Left, w/2, "%s must be in the right half", right)
}

func TestInterleave(t *testing.T) {
	dir := t.TempDir()
	mainPDF := testutil.WritePDF(t, dir, "main.pdf", "P1", "P2")
	tplPDF := testutil.WritePDF(t, dir, "tpl.pdf", "T")
	out := filepath.Join(dir, "out.pdf")

	mainSum, tplSum := fileHash(t, mainPDF), fileHash(t, tplPDF)

	res, err := newService(t, nil).Interleave(context.Background(), mainPDF, tplPDF, out)
	require.NoError(t, err)

	assert.Equal(t, ModeInterleave, res.Mode)
	assert.Equal(t, 4, res.Pages)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"P1", "T", "P2", "T"}, labels(t, out))

	assert.Equal(t, mainSum, fileHash(t, mainPDF), "main document must not change")
	assert.Equal(t, tplSum, fileHash(t, tplPDF), "template document must not change")
}

func TestInterleaveSinglePage(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")

	_, err := newService(t, nil).Interleave(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "A1"),
		testutil.WritePDF(t, dir, "tpl.pdf", "T"),
		out)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "T"}, labels(t, out))
}

func TestInterleaveUsesFirstTemplatePageOnly(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")

	res, err := newService(t, nil).Interleave(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "P1", "P2", "P3"),
		testutil.WritePDF(t, dir, "tpl.pdf", "T1", "T2"),
		out)
	require.NoError(t, err)

	got := labels(t, out)
	require.Len(t, got, 2*3)
	assert.Equal(t, 6, res.Pages)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, "P"+string(rune('0'+i)), got[2*(i-1)])
		assert.Equal(t, "T1", got[2*(i-1)+1])
	}
}

func TestInterleaveIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	mainPDF := testutil.WritePDF(t, dir, "main.pdf", "P1", "P2", "P3")
	tplPDF := testutil.WritePDF(t, dir, "tpl.pdf", "T")
	svc := newService(t, nil)

	outA, outB := filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.pdf")
	_, err := svc.Interleave(context.Background(), mainPDF, tplPDF, outA)
	require.NoError(t, err)
	_, err = svc.Interleave(context.Background(), mainPDF, tplPDF, outB)
	require.NoError(t, err)

	assert.Equal(t, labels(t, outA), labels(t, outB))
}

func TestTwoUpTemplate(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sheets.pdf")

	res, err := newService(t, nil).TwoUp(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "L1", "L2"),
		testutil.WritePDF(t, dir, "tpl.pdf", "R"),
		out)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sheets)

	rep, err := inspect.Inspect(out)
	require.NoError(t, err)
	require.Equal(t, 2, rep.PageCount)
	for i, want := range []string{"L1", "L2"} {
		p := rep.Pages[i]
		assert.InDelta(t, 842, p.Width, 0.5, "sheet %d width", i)
		assert.InDelta(t, 595, p.Height, 0.5, "sheet %d height", i)
		assert.Contains(t, p.Text, want)
		assert.Contains(t, p.Text, "R")
		assertHalves(t, out, i, 842, want, "R")
	}
	assert.NotContains(t, rep.Pages[0].Text, "L2")
}

func TestTwoUpScalesWithoutRotating(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sheets.pdf")

	_, err := newService(t, nil).TwoUp(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "LEFTPAGE"),
		testutil.WriteSizedPDF(t, dir, "tpl.pdf", testutil.A4Height, testutil.A4Width, "RIGHTPAGE"),
		out)
	require.NoError(t, err)

	assertHalves(t, out, 0, 842, "LEFTPAGE", "RIGHTPAGE")

	// a landscape page fits the 421x595 half at scale 0.5: 28pt text
	// becomes 14pt, x=72 lands at 421+36
	r := sheetBlock(t, out, 0, "RIGHTPAGE")
	assert.InDelta(t, 14, r.FontSize, 1)
	assert.InDelta(t, 457, r.Left, 3)
	assert.Less(t, r.Top, 595.0/2)
}

func TestTwoUpPairwiseReverse(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sheets.pdf")
	svc := newService(t, func(o *Options) {
		o.Pairing = layout.PairPairwise
		o.Order = layout.Reverse
	})

	_, err := svc.TwoUp(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "L1", "L2"),
		testutil.WritePDF(t, dir, "ins.pdf", "R1", "R2"),
		out)
	require.NoError(t, err)

	rep, err := inspect.Inspect(out)
	require.NoError(t, err)
	require.Equal(t, 2, rep.PageCount)
	assert.Contains(t, rep.Pages[0].Text, "L2")
	assert.Contains(t, rep.Pages[0].Text, "R2")
	assert.NotContains(t, rep.Pages[0].Text, "L1")
	assert.Contains(t, rep.Pages[1].Text, "L1")
	assert.Contains(t, rep.Pages[1].Text, "R1")
	assertHalves(t, out, 0, 842, "L2", "R2")
	assertHalves(t, out, 1, 842, "L1", "R1")
}

func TestTwoUpPairwiseMismatch(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sheets.pdf")
	svc := newService(t, func(o *Options) { o.Pairing = layout.PairPairwise })

	_, err := svc.TwoUp(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "L1", "L2", "L3"),
		testutil.WritePDF(t, dir, "ins.pdf", "R1", "R2"),
		out)

	var mismatch *PairingMismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, 3, mismatch.Left)
	assert.Equal(t, 2, mismatch.Right)
	assert.NoFileExists(t, out)
}

func TestMergeThenTwoUp(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")
	// pairing/order options must not leak into the fixed merge-then-2up layout
	svc := newService(t, func(o *Options) { o.Order = layout.Reverse })

	res, err := svc.MergeThenTwoUp(context.Background(),
		testutil.WritePDF(t, dir, "b1_skript.pdf", "S1", "S2", "S3"),
		testutil.WritePDF(t, dir, "Template.pdf", "NOTES"),
		out)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sheets)

	rep, err := inspect.Inspect(out)
	require.NoError(t, err)
	require.Equal(t, 3, rep.PageCount)
	for i, want := range []string{"S1", "S2", "S3"} {
		assert.Contains(t, rep.Pages[i].Text, want)
		assert.Contains(t, rep.Pages[i].Text, "NOTES")
	}
}

func TestCustomSheet(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")
	svc := newService(t, func(o *Options) { o.Sheet = layout.Sheet{Width: 1190, Height: 842} })

	_, err := svc.TwoUp(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "L1"),
		testutil.WritePDF(t, dir, "tpl.pdf", "R"),
		out)
	require.NoError(t, err)

	rep, err := inspect.Inspect(out)
	require.NoError(t, err)
	assert.InDelta(t, 1190, rep.Pages[0].Width, 0.5)
	assert.InDelta(t, 842, rep.Pages[0].Height, 0.5)
}

func TestPortraitSheetRejected(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")
	svc := newService(t, func(o *Options) { o.Sheet = layout.Sheet{Width: 595, Height: 842} })

	_, err := svc.TwoUp(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "L1"),
		testutil.WritePDF(t, dir, "tpl.pdf", "R"),
		out)

	var copyErr *PageCopyError
	require.True(t, errors.As(err, &copyErr), "got %v", err)
	assert.Equal(t, "n-up config", copyErr.Step)
	assert.NoFileExists(t, out)
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	good := testutil.WritePDF(t, dir, "good.pdf", "P1")
	notPDF := testutil.WriteFile(t, dir, "notes.pdf", []byte("not a pdf at all"))
	missing := filepath.Join(dir, "missing.pdf")
	out := filepath.Join(dir, "out.pdf")
	svc := newService(t, nil)

	tests := []struct {
		name     string
		main     string
		insert   string
		wantRole string
	}{
		{"missing main", missing, good, "main"},
		{"missing insert", good, missing, "insert"},
		{"insert not a pdf", good, notPDF, "insert"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Interleave(context.Background(), tt.main, tt.insert, out)
			var openErr *DocumentOpenError
			require.True(t, errors.As(err, &openErr), "got %v", err)
			assert.Equal(t, tt.wantRole, openErr.Role)
			assert.NoFileExists(t, out)
		})
	}
}

type countOpener struct {
	counts map[string]int
	path   string
}

func (o countOpener) Open(_ context.Context, role, ref string) (*source.Document, error) {
	return &source.Document{Role: role, Ref: ref, Path: o.path, PageCount: o.counts[role]}, nil
}

func TestEmptyDocuments(t *testing.T) {
	dir := t.TempDir()
	fixture := testutil.WritePDF(t, dir, "x.pdf", "X")
	out := filepath.Join(dir, "out.pdf")

	for _, role := range []string{"main", "insert"} {
		t.Run(role, func(t *testing.T) {
			counts := map[string]int{"main": 2, "insert": 1}
			counts[role] = 0
			svc := New(Options{WorkDir: t.TempDir()}, countOpener{counts: counts, path: fixture})

			for _, op := range []func(context.Context, string, string, string) (*Result, error){svc.Interleave, svc.TwoUp, svc.MergeThenTwoUp} {
				_, err := op(context.Background(), "a.pdf", "b.pdf", out)
				var empty *EmptyDocumentError
				require.True(t, errors.As(err, &empty), "got %v", err)
				assert.Equal(t, role, empty.Role)
			}
			assert.NoFileExists(t, out)
		})
	}
}

func TestWriteErrors(t *testing.T) {
	dir := t.TempDir()
	mainPDF := testutil.WritePDF(t, dir, "main.pdf", "P1")
	tplPDF := testutil.WritePDF(t, dir, "tpl.pdf", "T")
	svc := newService(t, nil)

	t.Run("missing parent directory", func(t *testing.T) {
		dest := filepath.Join(dir, "no", "such", "dir", "out.pdf")
		_, err := svc.Interleave(context.Background(), mainPDF, tplPDF, dest)
		var writeErr *WriteError
		require.True(t, errors.As(err, &writeErr), "got %v", err)
		assert.Equal(t, dest, writeErr.Ref)
		assert.NoFileExists(t, dest)
	})

	t.Run("destination is a directory", func(t *testing.T) {
		parent := t.TempDir()
		dest := filepath.Join(parent, "taken")
		require.NoError(t, os.Mkdir(dest, 0o755))

		_, err := svc.Interleave(context.Background(), mainPDF, tplPDF, dest)
		var writeErr *WriteError
		require.True(t, errors.As(err, &writeErr), "got %v", err)

		entries, err := os.ReadDir(parent)
		require.NoError(t, err)
		require.Len(t, entries, 1, "temp file must be removed")
		assert.Equal(t, "taken", entries[0].Name())
	})
}

func TestOverwritesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	out := testutil.WriteFile(t, dir, "out.pdf", []byte("stale"))

	_, err := newService(t, nil).Interleave(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "P1"),
		testutil.WritePDF(t, dir, "tpl.pdf", "T"),
		out)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "T"}, labels(t, out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestOverwriteKeepsExistingMode(t *testing.T) {
	dir := t.TempDir()
	out := testutil.WriteFile(t, dir, "out.pdf", []byte("stale"))
	require.NoError(t, os.Chmod(out, 0o600))

	_, err := newService(t, nil).Interleave(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "P1"),
		testutil.WritePDF(t, dir, "tpl.pdf", "T"),
		out)
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFailuresReturnTypedErrors(t *testing.T) {
	dir := t.TempDir()
	mainPDF := testutil.WritePDF(t, dir, "main.pdf", "L1", "L2")
	insPDF := testutil.WritePDF(t, dir, "ins.pdf", "R1")
	missing := filepath.Join(dir, "missing.pdf")
	out := filepath.Join(dir, "out.pdf")

	tests := []struct {
		name string
		run  func() (*Result, error)
		kind string
	}{
		{"open", func() (*Result, error) {
			return newService(t, nil).Interleave(context.Background(), missing, insPDF, out)
		}, "open_error"},
		{"pairing", func() (*Result, error) {
			svc := newService(t, func(o *Options) { o.Pairing = layout.PairPairwise })
			return svc.TwoUp(context.Background(), mainPDF, insPDF, out)
		}, "pairing_mismatch"},
		{"page copy", func() (*Result, error) {
			svc := newService(t, func(o *Options) { o.Sheet = layout.Sheet{Width: 595, Height: 842} })
			return svc.MergeThenTwoUp(context.Background(), mainPDF, insPDF, out)
		}, "page_copy_error"},
		{"write", func() (*Result, error) {
			return newService(t, nil).Interleave(context.Background(), mainPDF, insPDF, filepath.Join(dir, "no", "out.pdf"))
		}, "write_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				res *Result
				err error
			)
			require.NotPanics(t, func() { res, err = tt.run() })
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.kind, errorKind(err))
			assert.NoFileExists(t, out)
		})
	}
}

func TestWorkDirRemoved(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()
	svc := New(Options{WorkDir: work}, nil)

	_, err := svc.Interleave(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "P1"),
		testutil.WritePDF(t, dir, "tpl.pdf", "T"),
		filepath.Join(dir, "out.pdf"))
	require.NoError(t, err)

	_, err = svc.TwoUp(context.Background(),
		testutil.WritePDF(t, dir, "main2.pdf", "P1", "P2"),
		testutil.WritePDF(t, dir, "tpl2.pdf", "T1", "T2", "T3"),
		filepath.Join(dir, "missing", "out.pdf"))
	require.Error(t, err)

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCancelledContext(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService(t, nil).Interleave(ctx,
		testutil.WritePDF(t, dir, "main.pdf", "P1"),
		testutil.WritePDF(t, dir, "tpl.pdf", "T"),
		filepath.Join(dir, "out.pdf"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "out.pdf"))
}

type fakeUploader struct {
	loc  storage.Location
	body []byte
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, loc storage.Location, body io.Reader) error {
	if f.err != nil {
		return f.err
	}
	f.loc = loc
	var buf bytes.Buffer
	_, err := io.Copy(&buf, body)
	f.body = buf.Bytes()
	return err
}

func TestPublishToS3(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{}
	svc := newService(t, nil).WithPublisher(&Publisher{S3: up})

	_, err := svc.Interleave(context.Background(),
		testutil.WritePDF(t, dir, "main.pdf", "P1"),
		testutil.WritePDF(t, dir, "tpl.pdf", "T"),
		"s3://notes/out/week1.pdf")
	require.NoError(t, err)
	assert.Equal(t, storage.Location{Bucket: "notes", Key: "out/week1.pdf"}, up.loc)
	assert.True(t, bytes.HasPrefix(up.body, []byte("%PDF-")))

	up.err = errors.New("access denied")
	_, err = svc.Interleave(context.Background(),
		testutil.WritePDF(t, dir, "main2.pdf", "P1"),
		testutil.WritePDF(t, dir, "tpl2.pdf", "T"),
		"s3://notes/out/week2.pdf")
	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.ErrorContains(t, err, "access denied")
}

func TestCleanupTemps(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)

	staleWork := filepath.Join(dir, WorkDirPrefix+"abc")
	require.NoError(t, os.Mkdir(staleWork, 0o755))
	staleDL := testutil.WriteFile(t, dir, source.DownloadPrefix+"1.pdf", []byte("x"))
	freshDL := testutil.WriteFile(t, dir, source.DownloadPrefix+"2.pdf", []byte("x"))
	unrelated := testutil.WriteFile(t, dir, "keep.pdf", []byte("x"))
	for _, p := range []string{staleWork, staleDL, unrelated} {
		require.NoError(t, os.Chtimes(p, old, old))
	}

	assert.Equal(t, 2, CleanupTemps(dir, 24*time.Hour))
	assert.NoDirExists(t, staleWork)
	assert.NoFileExists(t, staleDL)
	assert.FileExists(t, freshDL)
	assert.FileExists(t, unrelated)
}

func TestNUpDescription(t *testing.T) {
	assert.Equal(t, "dimensions:842 595, margin:0, border:off, guides:off, enforce:off", nUpDescription(layout.A4Landscape))
	assert.Equal(t, "dimensions:841.5 595, margin:0, border:off, guides:off, enforce:off", nUpDescription(layout.Sheet{Width: 841.5, Height: 595}))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "open_error", errorKind(&DocumentOpenError{Err: errors.New("x")}))
	assert.Equal(t, "empty_document", errorKind(&EmptyDocumentError{}))
	assert.Equal(t, "pairing_mismatch", errorKind(&PairingMismatchError{}))
	assert.Equal(t, "page_copy_error", errorKind(&PageCopyError{Err: errors.New("x")}))
	assert.Equal(t, "write_error", errorKind(&WriteError{Err: errors.New("x")}))
	assert.Equal(t, "cancelled", errorKind(context.Canceled))
	assert.Equal(t, "error", errorKind(errors.New("other")))
}
