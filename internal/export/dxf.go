package export

import (
	"fmt"

	"github.com/yofu/dxf"
	"github.com/yofu/dxf/color"
	"github.com/yofu/dxf/drawing"

	"github.com/piwi3910/PanelCut/internal/model"
)

// DXF layer names.
const (
	LayerPanels  = "PANELS"
	LayerPieces  = "PIECES"
	LayerCuts    = "CUTS"
	LayerOffcuts = "OFFCUTS"
	LayerLabels  = "LABELS"
)

// dxfPanelGap is the horizontal spacing between panels in the drawing, in mm.
const dxfPanelGap = 100.0

// ExportDXF writes every cutting plan to a single DXF drawing. Panels are
// laid out left to right. DXF has Y pointing up, so plan coordinates are
// flipped within each panel.
func ExportDXF(path string, result model.OptimizationResult) error {
	if len(result.CuttingPlans) == 0 {
		return ErrNothingToExport
	}

	d := dxf.NewDrawing()
	layers := []struct {
		name  string
		color color.ColorNumber
	}{
		{LayerPanels, color.White},
		{LayerPieces, color.Green},
		{LayerCuts, color.Red},
		{LayerOffcuts, color.Yellow},
		{LayerLabels, color.Cyan},
	}
	for _, l := range layers {
		if _, err := d.AddLayer(l.name, l.color, dxf.DefaultLineType, false); err != nil {
			return fmt.Errorf("add layer %s: %w", l.name, err)
		}
	}

	originX := 0.0
	for _, plan := range result.CuttingPlans {
		if err := drawPlan(d, plan, originX); err != nil {
			return fmt.Errorf("draw %s: %w", plan.PanelInstanceID, err)
		}
		originX += plan.PanelWidth + dxfPanelGap
	}

	return d.SaveAs(path)
}

func drawPlan(d *drawing.Drawing, plan model.CuttingPlan, originX float64) error {
	flip := func(x, y float64) (float64, float64) {
		return originX + x, plan.PanelHeight - y
	}
	rect := func(r model.Rect) error {
		x1, y1 := flip(r.X, r.Y)
		x2, y2 := flip(r.Right(), r.Bottom())
		_, err := d.LwPolyline(true,
			[]float64{x1, y2}, []float64{x2, y2}, []float64{x2, y1}, []float64{x1, y1})
		return err
	}

	if err := d.ChangeLayer(LayerPanels); err != nil {
		return err
	}
	if err := rect(model.Rect{Width: plan.PanelWidth, Height: plan.PanelHeight}); err != nil {
		return err
	}

	if err := d.ChangeLayer(LayerPieces); err != nil {
		return err
	}
	for _, p := range plan.Placements {
		if err := rect(p.Rect()); err != nil {
			return err
		}
	}

	if err := d.ChangeLayer(LayerOffcuts); err != nil {
		return err
	}
	for _, r := range plan.Offcuts {
		if err := rect(r); err != nil {
			return err
		}
	}

	if err := d.ChangeLayer(LayerCuts); err != nil {
		return err
	}
	for _, c := range plan.Cuts {
		x1, y1 := flip(c.X1, c.Y1)
		x2, y2 := flip(c.X2, c.Y2)
		if _, err := d.Line(x1, y1, 0, x2, y2, 0); err != nil {
			return err
		}
	}

	if err := d.ChangeLayer(LayerLabels); err != nil {
		return err
	}
	x, y := flip(0, -20)
	if _, err := d.Text(fmt.Sprintf("%s %.0fx%.0f", plan.PanelInstanceID, plan.PanelWidth, plan.PanelHeight), x, y, 0, 15); err != nil {
		return err
	}
	for _, p := range plan.Placements {
		height := textHeight(p.Width, p.Height)
		x, y := flip(p.X+5, p.Y+5+height)
		if _, err := d.Text(fmt.Sprintf("%s #%d", placementName(p), p.Unit+1), x, y, 0, height); err != nil {
			return err
		}
	}
	return nil
}

// textHeight scales label text with the piece, within 5..20 mm.
func textHeight(w, h float64) float64 {
	return max(5, min(20, min(w, h)/8))
}
