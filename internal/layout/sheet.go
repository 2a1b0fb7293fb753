package layout

import "fmt"

// Rect is an axis-aligned rectangle in PDF points, lower-left origin.
type Rect struct {
	LLX, LLY, URX, URY float64
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }

// Overlaps reports whether r and o share any area. Touching edges do not count.
func (r Rect) Overlaps(o Rect) bool {
	return r.LLX < o.URX && o.LLX < r.URX && r.LLY < o.URY && o.LLY < r.URY
}

// Sheet is the physical size of a composite output page.
type Sheet struct {
	Width  float64
	Height float64
}

// A4Landscape is 842x595 points.
var A4Landscape = Sheet{Width: 842, Height: 595}

func (s Sheet) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid sheet size %gx%g", s.Width, s.Height)
	}
	return nil
}

func (s Sheet) Landscape() bool { return s.Width > s.Height }

// Halves bisects the sheet width: left covers [0, W/2], right [W/2, W],
// both at full height.
func (s Sheet) Halves() (left, right Rect) {
	mid := s.Width / 2
	left = Rect{LLX: 0, LLY: 0, URX: mid, URY: s.Height}
	right = Rect{LLX: mid, LLY: 0, URX: s.Width, URY: s.Height}
	return left, right
}

func (s Sheet) String() string { return fmt.Sprintf("%gx%g", s.Width, s.Height) }
