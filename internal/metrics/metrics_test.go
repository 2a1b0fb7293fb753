package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperationAndTextfile(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(operations.WithLabelValues("interleave", "success"))
	ObserveOperation("interleave", "success", 120*time.Millisecond)
	AddPages("interleave", 4)
	AddSheets(2)
	IncBatchJob("done")

	assert.Equal(t, before+1, testutil.ToFloat64(operations.WithLabelValues("interleave", "success")))

	path := filepath.Join(t.TempDir(), "pdfnotes.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pdfnotes_operations_total")
	assert.Contains(t, string(data), "pdfnotes_sheets_composed_total")
	assert.Contains(t, string(data), `pdfnotes_pages_written_total{mode="interleave"}`)
}

func TestWriteTextfileDisabled(t *testing.T) {
	assert.NoError(t, WriteTextfile(""))
}
