package compose

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfnotes/internal/storage"
)

// Uploader is the slice of storage.S3Client used for s3:// outputs.
type Uploader interface {
	Upload(ctx context.Context, loc storage.Location, body io.Reader) error
}

// Publisher moves a finished document to its destination. Local
// destinations are written to a temp file beside the target and renamed
// into place, so a failed run never leaves a partial file at the target.
// An existing target keeps its permission bits; new files get 0644.
type Publisher struct {
	S3 Uploader

	mu sync.Mutex
}

// Publish copies the file at built to ref. All failures are *WriteError.
func (p *Publisher) Publish(ctx context.Context, built, ref string) error {
	if storage.IsS3(ref) {
		return p.publishS3(ctx, built, ref)
	}
	return publishLocal(built, ref)
}

func (p *Publisher) publishS3(ctx context.Context, built, ref string) error {
	loc, err := storage.ParseURL(ref)
	if err != nil {
		return &WriteError{Ref: ref, Err: err}
	}
	up, err := p.uploader(ctx)
	if err != nil {
		return &WriteError{Ref: ref, Err: err}
	}
	f, err := os.Open(built)
	if err != nil {
		return &WriteError{Ref: ref, Err: err}
	}
	defer f.Close()
	if err := up.Upload(ctx, loc, f); err != nil {
		return &WriteError{Ref: ref, Err: err}
	}
	return nil
}

func (p *Publisher) uploader(ctx context.Context) (Uploader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.S3 == nil {
		cli, err := storage.NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		p.S3 = cli
	}
	return p.S3, nil
}

func publishLocal(built, dest string) (err error) {
	if dest == "" {
		return &WriteError{Ref: dest, Err: os.ErrInvalid}
	}
	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(dest); statErr == nil && info.Mode().IsRegular() {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return &WriteError{Ref: dest, Err: err}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	in, err := os.Open(built)
	if err != nil {
		return &WriteError{Ref: dest, Err: err}
	}
	defer in.Close()

	if _, err = io.Copy(tmp, in); err != nil {
		return &WriteError{Ref: dest, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &WriteError{Ref: dest, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &WriteError{Ref: dest, Err: err}
	}
	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return &WriteError{Ref: dest, Err: err}
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return &WriteError{Ref: dest, Err: err}
	}
	log.Debug().Str("output", dest).Msg("output published")
	return nil
}
