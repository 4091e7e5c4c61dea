// Package geometry holds the pure rectangle and kerf arithmetic used by the
// guillotine packer. Nothing in this package keeps state.
package geometry

import "github.com/piwi3910/PanelCut/internal/model"

// Epsilon is the tolerance (in mm) applied to every dimensional comparison so
// that exact fits are not lost to floating-point noise.
const Epsilon = 1e-6

// Fit is the outcome of testing a piece against a free rectangle.
type Fit struct {
	OK      bool
	Rotated bool
}

// Width returns the placed width of a w x h piece for this fit.
func (f Fit) Width(w, h float64) float64 {
	if f.Rotated {
		return h
	}
	return w
}

// Height returns the placed height of a w x h piece for this fit.
func (f Fit) Height(w, h float64) float64 {
	if f.Rotated {
		return w
	}
	return h
}

// Fits tests whether a w x h piece fits in free. The normal orientation is
// preferred; the rotated one is only tried when allowRotate is set and the
// piece does not fit as is.
func Fits(free model.Rect, w, h float64, allowRotate bool) Fit {
	if LessOrEqual(w, free.Width) && LessOrEqual(h, free.Height) {
		return Fit{OK: true}
	}
	if allowRotate && LessOrEqual(h, free.Width) && LessOrEqual(w, free.Height) {
		return Fit{OK: true, Rotated: true}
	}
	return Fit{}
}

// FitsOriented tests a single orientation without any fallback.
func FitsOriented(free model.Rect, w, h float64, rotated bool) bool {
	if rotated {
		w, h = h, w
	}
	return LessOrEqual(w, free.Width) && LessOrEqual(h, free.Height)
}

// Split is the result of one guillotine split.
type Split struct {
	Rects []model.Rect // at most two new free rectangles
	Cuts  []model.Cut  // cuts performed, in order
}

// CutLength returns the summed length of the split's cuts.
func (s Split) CutLength() float64 {
	var total float64
	for _, c := range s.Cuts {
		total += c.Length()
	}
	return total
}

// SplitRect performs a guillotine split of free after a w x h piece has been
// placed in its top-left corner. With horizontalFirst the first cut spans the
// full width of free; otherwise it spans the full height. Each new rectangle
// loses kerf on the edge next to the cut that produced it. A cut is recorded
// whenever material remains on that side of the piece, even if the remainder
// is too thin to survive the blade.
func SplitRect(free model.Rect, w, h, kerf float64, horizontalFirst bool) Split {
	var s Split
	remW := free.Width - w
	remH := free.Height - h

	if horizontalFirst {
		if remH > Epsilon {
			s.Cuts = append(s.Cuts, hCut(free.X, free.Right(), free.Y+h))
			if remH-kerf > Epsilon {
				s.Rects = append(s.Rects, model.Rect{X: free.X, Y: free.Y + h + kerf, Width: free.Width, Height: remH - kerf})
			}
		}
		if remW > Epsilon {
			s.Cuts = append(s.Cuts, vCut(free.X+w, free.Y, free.Y+h))
			if remW-kerf > Epsilon {
				s.Rects = append(s.Rects, model.Rect{X: free.X + w + kerf, Y: free.Y, Width: remW - kerf, Height: h})
			}
		}
		return s
	}

	if remW > Epsilon {
		s.Cuts = append(s.Cuts, vCut(free.X+w, free.Y, free.Bottom()))
		if remW-kerf > Epsilon {
			s.Rects = append(s.Rects, model.Rect{X: free.X + w + kerf, Y: free.Y, Width: remW - kerf, Height: free.Height})
		}
	}
	if remH > Epsilon {
		s.Cuts = append(s.Cuts, hCut(free.X, free.X+w, free.Y+h))
		if remH-kerf > Epsilon {
			s.Rects = append(s.Rects, model.Rect{X: free.X, Y: free.Y + h + kerf, Width: w, Height: remH - kerf})
		}
	}
	return s
}

// PreferHorizontal picks the split direction that leaves the larger maximal
// free rectangle. Ties go to the horizontal split.
func PreferHorizontal(free model.Rect, w, h float64) bool {
	remW := free.Width - w
	remH := free.Height - h
	// Horizontal first: bottom strip is full width, right strip is piece height.
	hBest := max(free.Width*remH, remW*h)
	// Vertical first: right strip is full height, bottom strip is piece width.
	vBest := max(remW*free.Height, w*remH)
	return hBest >= vBest-Epsilon
}

// TrimCuts returns the border cuts that take trim off every edge of a
// width x height panel. No cuts are returned when trim is zero.
func TrimCuts(width, height, trim float64) []model.Cut {
	if trim <= Epsilon {
		return nil
	}
	return []model.Cut{
		hCut(0, width, trim),
		hCut(0, width, height-trim),
		vCut(trim, 0, height),
		vCut(width-trim, 0, height),
	}
}

// UsableArea returns the region of a width x height panel left after
// trimming trim from every edge. ok is false when nothing remains.
func UsableArea(width, height, trim float64) (r model.Rect, ok bool) {
	r = model.Rect{X: trim, Y: trim, Width: width - 2*trim, Height: height - 2*trim}
	return r, r.Width > Epsilon && r.Height > Epsilon
}

// Overlaps reports whether a and b share interior area. Touching edges do not count.
func Overlaps(a, b model.Rect) bool {
	return a.X < b.Right()-Epsilon && a.Right() > b.X+Epsilon &&
		a.Y < b.Bottom()-Epsilon && a.Bottom() > b.Y+Epsilon
}

// Contains reports whether outer fully contains inner.
func Contains(outer, inner model.Rect) bool {
	return outer.X <= inner.X+Epsilon && outer.Y <= inner.Y+Epsilon &&
		outer.Right() >= inner.Right()-Epsilon && outer.Bottom() >= inner.Bottom()-Epsilon
}

// Expand grows r by d on its right and bottom edges, the sides a kerf is taken from.
func Expand(r model.Rect, d float64) model.Rect {
	return model.Rect{X: r.X, Y: r.Y, Width: r.Width + d, Height: r.Height + d}
}

// LessOrEqual compares two lengths with Epsilon tolerance.
func LessOrEqual(a, b float64) bool {
	return a <= b+Epsilon
}

// Equal compares two lengths with Epsilon tolerance.
func Equal(a, b float64) bool {
	d := a - b
	return d <= Epsilon && d >= -Epsilon
}

func hCut(x1, x2, y float64) model.Cut {
	return model.Cut{X1: x1, Y1: y, X2: x2, Y2: y, Horizontal: true}
}

func vCut(x, y1, y2 float64) model.Cut {
	return model.Cut{X1: x, Y1: y1, X2: x, Y2: y2}
}
