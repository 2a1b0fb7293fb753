package compose

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfnotes/internal/source"
)

// CleanupTemps removes work directories and downloads left in dir by runs
// that did not exit cleanly, when older than maxAge. It only touches names
// created by this package (pdfnotes-*) and the source opener (pdfnotes-dl-*).
// Returns the number of entries removed.
func CleanupTemps(dir string, maxAge time.Duration) int {
	if dir == "" {
		dir = os.TempDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, WorkDirPrefix) && !strings.HasPrefix(name, source.DownloadPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, name)); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Info().Str("dir", dir).Int("removed", removed).Msg("removed stale temp files")
	}
	return removed
}
