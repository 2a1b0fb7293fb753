package compose

import (
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/local/pdfnotes/internal/layout"
	"github.com/local/pdfnotes/internal/source"
)

// nUpDescription is the pdfcpu n-up description for a two-cell sheet with
// no margin and no border, so each grid cell is exactly one half of the
// sheet as given by layout.Sheet.Halves. Pages are scaled into their half
// and never rotated.
func nUpDescription(sheet layout.Sheet) string {
	return fmt.Sprintf("dimensions:%s %s, margin:0, border:off, guides:off, enforce:off",
		strconv.FormatFloat(sheet.Width, 'f', -1, 64),
		strconv.FormatFloat(sheet.Height, 'f', -1, 64))
}

func nUpConfig(sheet layout.Sheet, conf *model.Configuration) (*model.NUp, error) {
	if err := sheet.Validate(); err != nil {
		return nil, err
	}
	if !sheet.Landscape() {
		// two cells side by side need a sheet wider than tall
		return nil, fmt.Errorf("sheet %s is not landscape", sheet)
	}
	return api.PDFNUpConfig(2, nUpDescription(sheet), conf)
}

// nUp places consecutive page pairs of src onto sheets written to dst.
func nUp(src, dst string, sheet layout.Sheet, validation string) error {
	conf := source.NewConf(validation)
	nup, err := nUpConfig(sheet, conf)
	if err != nil {
		return &PageCopyError{Step: "n-up config", Err: err}
	}
	if err := api.NUpFile([]string{src}, dst, nil, nup, conf); err != nil {
		return &PageCopyError{Step: "n-up", Err: err}
	}
	return nil
}
