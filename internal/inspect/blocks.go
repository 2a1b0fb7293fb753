package inspect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	fitz "github.com/gen2brain/go-fitz"
)

// TextBlock is one positioned line of text on a page, in points from the
// top-left corner.
type TextBlock struct {
	Text     string  `json:"text"`
	Left     float64 `json:"left"`
	Top      float64 `json:"top"`
	FontSize float64 `json:"font_size"`
}

// TextBlocks returns the positioned text lines of page index (0-based).
// Positions come from the MuPDF HTML rendering of the page.
func TextBlocks(pdfPath string, index int) ([]TextBlock, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if index < 0 || index >= doc.NumPage() {
		return nil, fmt.Errorf("page index %d out of range 0..%d", index, doc.NumPage()-1)
	}
	html, err := doc.HTML(index, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read page %d layout: %w", index, err)
	}
	return parseBlocks(html)
}

func parseBlocks(html string) ([]TextBlock, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page layout: %w", err)
	}
	var blocks []TextBlock
	dom.Find("p[style]").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		style, _ := s.Attr("style")
		p := styleValues(style)
		b := TextBlock{Text: text, Left: p["left"], Top: p["top"]}
		if span, ok := s.Find("span[style]").First().Attr("style"); ok {
			b.FontSize = styleValues(span)["font-size"]
		}
		blocks = append(blocks, b)
	})
	return blocks, nil
}

// styleValues reads the numeric pt properties of an inline style.
func styleValues(style string) map[string]float64 {
	out := make(map[string]float64)
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		v = strings.TrimSuffix(strings.TrimSpace(v), "pt")
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[strings.TrimSpace(k)] = f
		}
	}
	return out
}

// FindBlock returns the first block whose text contains s.
func FindBlock(blocks []TextBlock, s string) (TextBlock, bool) {
	for _, b := range blocks {
		if strings.Contains(b.Text, s) {
			return b, true
		}
	}
	return TextBlock{}, false
}
