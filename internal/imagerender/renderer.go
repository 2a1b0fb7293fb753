package imagerender

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// Options controls page rendering. Zero values pick 72 dpi, quality 85, RGB.
type Options struct {
	DPI     int
	Quality int
	Color   ColorMode
}

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = 72
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 85
	}
	if o.Color == "" {
		o.Color = ColorRGB
	}
	return o
}

// RenderPageToJPEG renders a PDF page (1-based) as JPEG image in memory.
// Returns JPEG bytes, width, height, error
func RenderPageToJPEG(pdfPath string, pageNum int, opts Options) ([]byte, int, int, error) {
	opts = opts.withDefaults()

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if pageNum < 1 || pageNum > doc.NumPage() {
		return nil, 0, 0, fmt.Errorf("page %d out of range 1..%d", pageNum, doc.NumPage())
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(pageNum-1, float64(opts.DPI))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}

	bounds := img.Bounds()
	var finalImg image.Image = img
	if opts.Color == ColorGray {
		grayImg := image.NewGray(bounds)
		draw.Draw(grayImg, bounds, img, image.Point{}, draw.Src)
		finalImg = grayImg
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, finalImg, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	log.Debug().
		Int("page", pageNum).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Str("color", string(opts.Color)).
		Int("jpeg_size", buf.Len()).
		Int("dpi", opts.DPI).
		Msg("rendered page as JPEG")

	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}

// RenderPageToFile renders a page and writes the JPEG to dst.
func RenderPageToFile(pdfPath string, pageNum int, opts Options, dst string) error {
	data, _, _, err := RenderPageToJPEG(pdfPath, pageNum, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// GetImageDimensions extracts dimensions from JPEG bytes
func GetImageDimensions(jpegBytes []byte) (width, height int, err error) {
	img, err := jpeg.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode JPEG: %w", err)
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}
