package model

import (
	"sort"
	"strconv"
)

// MinOffcutDimension is the minimum width or height (in mm) for a remnant
// to be considered a usable offcut. Remnants smaller than this are waste.
const MinOffcutDimension = 50.0

// MinOffcutArea is the minimum area (in sq mm) for a remnant to be considered usable.
const MinOffcutArea = 10000.0 // 100mm x 100mm equivalent

// IsUsableOffcut reports whether a leftover rectangle is worth keeping.
func IsUsableOffcut(r Rect) bool {
	return r.Width >= MinOffcutDimension && r.Height >= MinOffcutDimension && r.Area() >= MinOffcutArea
}

// DetectOffcuts filters the leftover free rectangles of a closed panel down to
// reusable remnants, largest first.
func DetectOffcuts(free []Rect) []Rect {
	var offcuts []Rect
	for _, r := range free {
		if IsUsableOffcut(r) {
			offcuts = append(offcuts, r)
		}
	}

	sort.SliceStable(offcuts, func(i, j int) bool {
		if offcuts[i].Area() != offcuts[j].Area() {
			return offcuts[i].Area() > offcuts[j].Area()
		}
		if offcuts[i].Y != offcuts[j].Y {
			return offcuts[i].Y < offcuts[j].Y
		}
		return offcuts[i].X < offcuts[j].X
	})
	return offcuts
}

// OffcutPanels converts the plan's offcuts into single-stock panel types so
// they can be fed back into a later optimization run.
func (cp CuttingPlan) OffcutPanels(pricePerArea float64, grain Grain) []Panel {
	panels := make([]Panel, 0, len(cp.Offcuts))
	for i, o := range cp.Offcuts {
		panels = append(panels, Panel{
			ID:            cp.PanelInstanceID + "-offcut-" + strconv.Itoa(i+1),
			Label:         "Offcut " + cp.PanelInstanceID,
			Width:         o.Width,
			Height:        o.Height,
			Material:      cp.Material,
			PricePerArea:  pricePerArea,
			StockQuantity: 1,
			Grain:         grain,
		})
	}
	return panels
}

// TotalOffcutArea returns the total area of all offcuts in square mm.
func TotalOffcutArea(offcuts []Rect) float64 {
	var total float64
	for _, o := range offcuts {
		total += o.Area()
	}
	return total
}
