// Package export renders optimization results as PDF cut sheets, QR-coded
// piece labels, and DXF drawings.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-pdf/fpdf"

	"github.com/piwi3910/PanelCut/internal/model"
)

// ErrNothingToExport is returned when a result has no cutting plans.
var ErrNothingToExport = errors.New("no cutting plans to export")

// pieceColor represents an RGB color for a placed piece.
type pieceColor struct {
	R, G, B int
}

var pieceColors = []pieceColor{
	{R: 76, G: 175, B: 80},  // green
	{R: 33, G: 150, B: 243}, // blue
	{R: 255, G: 152, B: 0},  // orange
	{R: 156, G: 39, B: 176}, // purple
	{R: 0, G: 188, B: 212},  // cyan
	{R: 244, G: 67, B: 54},  // red
	{R: 255, G: 235, B: 59}, // yellow
	{R: 121, G: 85, B: 72},  // brown
}

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	headerHeight = 12.0
	legendHeight = 20.0
	drawAreaTop  = marginTop + headerHeight + 5.0
)

// ExportPDF writes the cut sheets of result to path.
func ExportPDF(path string, result model.OptimizationResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WritePDF(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WritePDF renders each cutting plan on its own page followed by a summary page.
func WritePDF(w io.Writer, result model.OptimizationResult) error {
	if len(result.CuttingPlans) == 0 {
		return ErrNothingToExport
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)

	colors := colorIndex(result)
	for _, plan := range result.CuttingPlans {
		pdf.AddPage()
		renderPlanPage(pdf, plan, colors)
	}

	pdf.AddPage()
	renderSummaryPage(pdf, result)

	return pdf.Output(w)
}

// colorIndex assigns one color per piece ID so every unit of a piece
// is drawn the same way across pages.
func colorIndex(result model.OptimizationResult) map[string]pieceColor {
	colors := map[string]pieceColor{}
	for _, plan := range result.CuttingPlans {
		for _, p := range plan.Placements {
			if _, ok := colors[p.PieceID]; !ok {
				colors[p.PieceID] = pieceColors[len(colors)%len(pieceColors)]
			}
		}
	}
	return colors
}

// renderPlanPage draws a single cutting plan on the current PDF page.
func renderPlanPage(pdf *fpdf.Fpdf, plan model.CuttingPlan, colors map[string]pieceColor) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(marginLeft, marginTop)
	title := fmt.Sprintf("%s: %s (%.0f x %.0f mm)", plan.PanelInstanceID, panelName(plan), plan.PanelWidth, plan.PanelHeight)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, headerHeight, title, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(marginLeft, marginTop+headerHeight)
	stats := fmt.Sprintf("Pieces: %d | Cuts: %d (%.0f mm) | Used: %.0f of %.0f mm² | Efficiency: %.1f%%",
		len(plan.Placements), len(plan.Cuts), plan.CuttingLength, plan.UsedArea, plan.PanelArea, plan.Efficiency)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 5, stats, "", 0, "L", false, 0, "")

	drawWidth := pageWidth - marginLeft - marginRight
	drawHeight := pageHeight - drawAreaTop - marginBottom - legendHeight
	scale := math.Min(drawWidth/plan.PanelWidth, drawHeight/plan.PanelHeight)

	canvasW := plan.PanelWidth * scale
	canvasH := plan.PanelHeight * scale
	offsetX := marginLeft + (drawWidth-canvasW)/2
	offsetY := drawAreaTop

	// Panel background (wood color)
	pdf.SetFillColor(210, 180, 140)
	pdf.SetDrawColor(100, 100, 100)
	pdf.SetLineWidth(0.5)
	pdf.Rect(offsetX, offsetY, canvasW, canvasH, "FD")

	drawOffcuts(pdf, plan.Offcuts, scale, offsetX, offsetY)

	for _, p := range plan.Placements {
		col := colors[p.PieceID]
		pw := p.Width * scale
		ph := p.Height * scale
		px := offsetX + p.X*scale
		py := offsetY + p.Y*scale

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.SetDrawColor(30, 30, 30)
		pdf.SetLineWidth(0.3)
		pdf.Rect(px, py, pw, ph, "FD")

		if pw > 15 && ph > 8 {
			pdf.SetFont("Helvetica", "", labelFontSize(pw, ph))
			pdf.SetTextColor(0, 0, 0)

			label := placementName(p)
			dims := fmt.Sprintf("%.0fx%.0f", p.Width, p.Height)
			labelW := pdf.GetStringWidth(label)
			dimsW := pdf.GetStringWidth(dims)

			if labelW < pw-2 {
				pdf.SetXY(px+(pw-labelW)/2, py+ph/2-4)
				pdf.CellFormat(labelW, 4, label, "", 0, "C", false, 0, "")
			}
			if ph > 14 && dimsW < pw-2 {
				pdf.SetXY(px+(pw-dimsW)/2, py+ph/2)
				pdf.CellFormat(dimsW, 4, dims, "", 0, "C", false, 0, "")
			}
		}
	}

	drawCuts(pdf, plan.Cuts, scale, offsetX, offsetY)
	drawDimensionAnnotations(pdf, plan, offsetX, offsetY, canvasW, canvasH)
	drawPiecesLegend(pdf, plan, colors, offsetY+canvasH+5)
}

// drawOffcuts hatches the reusable leftovers of a plan.
func drawOffcuts(pdf *fpdf.Fpdf, offcuts []model.Rect, scale, offsetX, offsetY float64) {
	for _, r := range offcuts {
		zx := offsetX + r.X*scale
		zy := offsetY + r.Y*scale
		zw := r.Width * scale
		zh := r.Height * scale

		pdf.SetFillColor(235, 220, 190)
		pdf.SetDrawColor(120, 100, 60)
		pdf.SetLineWidth(0.2)
		pdf.Rect(zx, zy, zw, zh, "FD")
		drawHatchPattern(pdf, zx, zy, zw, zh)

		if zw > 20 && zh > 8 {
			pdf.SetFont("Helvetica", "B", 6)
			pdf.SetTextColor(120, 100, 60)
			label := "OFFCUT"
			labelW := pdf.GetStringWidth(label)
			pdf.SetXY(zx+(zw-labelW)/2, zy+zh/2-2)
			pdf.CellFormat(labelW, 4, label, "", 0, "C", false, 0, "")
		}
	}
	pdf.SetTextColor(0, 0, 0)
}

// drawHatchPattern draws diagonal lines inside a rectangle.
func drawHatchPattern(pdf *fpdf.Fpdf, x, y, w, h float64) {
	pdf.SetLineWidth(0.15)

	spacing := 4.0
	for d := spacing; d < w+h; d += spacing {
		x1 := x + math.Max(0, d-h)
		y1 := y + math.Min(h, d)
		x2 := x + math.Min(w, d)
		y2 := y + math.Max(0, d-w)
		pdf.Line(x1, y1, x2, y2)
	}
}

// drawCuts overlays the guillotine cut lines in cut order.
func drawCuts(pdf *fpdf.Fpdf, cuts []model.Cut, scale, offsetX, offsetY float64) {
	pdf.SetDrawColor(200, 0, 0)
	pdf.SetLineWidth(0.2)
	for _, c := range cuts {
		pdf.Line(offsetX+c.X1*scale, offsetY+c.Y1*scale, offsetX+c.X2*scale, offsetY+c.Y2*scale)
	}
}

// drawDimensionAnnotations adds width and height labels outside the panel rectangle.
func drawDimensionAnnotations(pdf *fpdf.Fpdf, plan model.CuttingPlan, offsetX, offsetY, canvasW, canvasH float64) {
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(80, 80, 80)

	widthLabel := fmt.Sprintf("%.0f mm", plan.PanelWidth)
	wLabelW := pdf.GetStringWidth(widthLabel)
	pdf.SetXY(offsetX+(canvasW-wLabelW)/2, offsetY+canvasH+1)
	pdf.CellFormat(wLabelW, 4, widthLabel, "", 0, "C", false, 0, "")

	heightLabel := fmt.Sprintf("%.0f mm", plan.PanelHeight)
	pdf.TransformBegin()
	pdf.TransformRotate(90, offsetX-3, offsetY+canvasH/2)
	hLabelW := pdf.GetStringWidth(heightLabel)
	pdf.SetXY(offsetX-3-hLabelW/2, offsetY+canvasH/2-2)
	pdf.CellFormat(hLabelW, 4, heightLabel, "", 0, "C", false, 0, "")
	pdf.TransformEnd()

	pdf.SetTextColor(0, 0, 0)
}

// drawPiecesLegend renders a compact legend of the pieces on the page.
func drawPiecesLegend(pdf *fpdf.Fpdf, plan model.CuttingPlan, colors map[string]pieceColor, startY float64) {
	if len(plan.Placements) == 0 {
		return
	}

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, startY)
	pdf.CellFormat(30, 4, "Pieces placed:", "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	xPos := marginLeft + 32
	maxX := pageWidth - marginRight

	for _, p := range plan.Placements {
		col := colors[p.PieceID]
		label := fmt.Sprintf("%s #%d (%.0fx%.0f)", placementName(p), p.Unit+1, p.Width, p.Height)
		if p.Rotated {
			label += " R"
		}
		labelW := pdf.GetStringWidth(label) + 6

		if xPos+labelW > maxX {
			startY += 5
			xPos = marginLeft
		}

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.Rect(xPos, startY+0.5, 3, 3, "F")
		pdf.SetXY(xPos+4, startY)
		pdf.CellFormat(labelW-4, 4, label, "", 0, "L", false, 0, "")

		xPos += labelW + 2
	}
}

// renderSummaryPage draws the final page with overall statistics.
func renderSummaryPage(pdf *fpdf.Fpdf, result model.OptimizationResult) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 10, "Cutting Plan Summary", "", 0, "L", false, 0, "")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, marginTop+12, pageWidth-marginRight, marginTop+12)

	y := marginTop + 18

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Overall Statistics", "", 0, "L", false, 0, "")
	y += 9

	summaryItems := []struct {
		label string
		value string
	}{
		{"Strategy", result.Strategy.String()},
		{"Kerf Width", fmt.Sprintf("%.1f mm", result.KerfWidth)},
		{"Panels Used", fmt.Sprintf("%d", len(result.CuttingPlans))},
		{"Efficiency", fmt.Sprintf("%.1f%%", result.Efficiency)},
		{"Waste", fmt.Sprintf("%.1f%%", result.WastePercentage)},
		{"Total Cutting Length", fmt.Sprintf("%.0f mm", result.TotalCuttingLength)},
		{"Total Cost", fmt.Sprintf("%.2f", result.TotalCost)},
		{"Pieces Placed", fmt.Sprintf("%d", result.PlacedCount())},
		{"Pieces Unplaced", fmt.Sprintf("%d", len(result.UnplacedPieces))},
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range summaryItems {
		pdf.SetXY(marginLeft+5, y)
		pdf.CellFormat(60, 6, item.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, item.value, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		y += 6
	}

	y += 5

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Panel Breakdown", "", 0, "L", false, 0, "")
	y += 9

	colWidths := []float64{30, 60, 45, 20, 20, 30, 40}
	headers := []string{"Instance", "Panel", "Dimensions", "Pieces", "Cuts", "Efficiency", "Cutting Length"}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	xPos := marginLeft
	for i, header := range headers {
		pdf.SetXY(xPos, y)
		pdf.CellFormat(colWidths[i], 6, header, "1", 0, "C", true, 0, "")
		xPos += colWidths[i]
	}
	y += 6

	pdf.SetFont("Helvetica", "", 9)
	for i, plan := range result.CuttingPlans {
		if y > pageHeight-marginBottom-10 {
			pdf.AddPage()
			y = marginTop
		}
		xPos = marginLeft
		rowData := []string{
			plan.PanelInstanceID,
			panelName(plan),
			fmt.Sprintf("%.0f x %.0f mm", plan.PanelWidth, plan.PanelHeight),
			fmt.Sprintf("%d", len(plan.Placements)),
			fmt.Sprintf("%d", len(plan.Cuts)),
			fmt.Sprintf("%.1f%%", plan.Efficiency),
			fmt.Sprintf("%.0f mm", plan.CuttingLength),
		}

		if i%2 == 0 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		for j, cell := range rowData {
			pdf.SetXY(xPos, y)
			pdf.CellFormat(colWidths[j], 6, cell, "1", 0, "C", true, 0, "")
			xPos += colWidths[j]
		}
		y += 6
	}

	if len(result.UnplacedPieces) > 0 {
		y += 8
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(200, 0, 0)
		pdf.SetXY(marginLeft, y)
		pdf.CellFormat(200, 7, "WARNING: Unplaced Pieces", "", 0, "L", false, 0, "")
		y += 8

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)
		for _, u := range result.UnplacedPieces {
			if y > pageHeight-marginBottom-5 {
				pdf.AddPage()
				y = marginTop
			}
			name := u.Label
			if name == "" {
				name = u.PieceID
			}
			pdf.SetXY(marginLeft+5, y)
			text := fmt.Sprintf("- %s #%d: %.0f x %.0f mm (%s)", name, u.Unit+1, u.Width, u.Height, u.Reason)
			pdf.CellFormat(200, 5, text, "", 0, "L", false, 0, "")
			y += 5
		}
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, pageHeight-marginBottom)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 4, "Generated by PanelCut - Panel Cutting Optimizer", "", 0, "C", false, 0, "")
}

// labelFontSize returns an appropriate font size based on the rectangle dimensions.
func labelFontSize(w, h float64) float64 {
	minDim := math.Min(w, h)
	switch {
	case minDim > 40:
		return 8
	case minDim > 20:
		return 7
	default:
		return 6
	}
}

func panelName(plan model.CuttingPlan) string {
	if plan.PanelLabel != "" {
		return plan.PanelLabel
	}
	return plan.PanelTypeID
}

func placementName(p model.Placement) string {
	if p.Label != "" {
		return p.Label
	}
	return p.PieceID
}
