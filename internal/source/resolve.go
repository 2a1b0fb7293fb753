package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfnotes/internal/storage"
)

// DownloadPrefix names temp copies of remote refs.
const DownloadPrefix = "pdfnotes-dl-"

// S3Downloader is the slice of storage.S3Client the resolver needs.
type S3Downloader interface {
	Download(ctx context.Context, loc storage.Location, w io.WriterAt) (int64, error)
}

// resolve maps ref to a local file. Supports:
// - file://path or absolute/relative filesystem paths
// - http(s):// URLs (downloads to temp)
// - s3://bucket/key (downloads to temp via AWS SDK v2)
// The returned temp path is non-empty when the caller must remove the file.
func (o *Opener) resolve(ctx context.Context, ref string) (local, temp string, err error) {
	// Strip optional #page fragment if present
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}

	switch {
	case storage.IsS3(ref):
		local, err = o.downloadS3(ctx, ref)
		return local, local, err
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		local, err = o.downloadHTTP(ctx, ref)
		return local, local, err
	case strings.HasPrefix(ref, "file://"):
		return strings.TrimPrefix(ref, "file://"), "", nil
	default:
		return ref, "", nil
	}
}

func (o *Opener) createTemp() (*os.File, error) {
	return os.CreateTemp(o.WorkDir, DownloadPrefix+"*.pdf")
}

func (o *Opener) downloadHTTP(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d fetching %s", resp.StatusCode, url)
	}
	f, err := o.createTemp()
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	log.Debug().Str("url", url).Str("file", filepath.Base(f.Name())).Msg("downloaded http pdf to temp")
	return f.Name(), nil
}

func (o *Opener) downloadS3(ctx context.Context, ref string) (string, error) {
	loc, err := storage.ParseURL(ref)
	if err != nil {
		return "", err
	}
	dl, err := o.s3Downloader(ctx)
	if err != nil {
		return "", err
	}
	f, err := o.createTemp()
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := dl.Download(ctx, loc, f); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	log.Info().Str("bucket", loc.Bucket).Str("key", loc.Key).Str("file", filepath.Base(f.Name())).Msg("downloaded s3 pdf to temp")
	return f.Name(), nil
}

func (o *Opener) s3Downloader(ctx context.Context) (S3Downloader, error) {
	o.s3mu.Lock()
	defer o.s3mu.Unlock()
	if o.S3 == nil {
		cli, err := storage.NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		o.S3 = cli
	}
	return o.S3, nil
}
