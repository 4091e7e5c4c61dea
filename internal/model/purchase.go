package model

import "math"

// PurchaseEstimate is a rough count of extra panels to buy for pieces that
// ran out of stock.
type PurchaseEstimate struct {
	PanelTypeID       string  `json:"panelTypeId"`
	Units             int     `json:"units"`
	PieceArea         float64 `json:"pieceArea"`         // mm², kerf allowance included
	PanelArea         float64 `json:"panelArea"`         // mm² of one panel
	PanelsNeededExact float64 `json:"panelsNeededExact"` // fractional lower bound
	PanelsNeededMin   int     `json:"panelsNeededMin"`
	PanelsWithWaste   int     `json:"panelsWithWaste"`
	WastePercent      float64 `json:"wastePercent"`
	EstimatedCost     float64 `json:"estimatedCost"`
}

// EstimatePurchase sizes a purchase of panel to cover the units that were
// reported as InsufficientStock. Each unit is grown by one kerf on both axes
// and the area total is padded by wastePercent.
func EstimatePurchase(unplaced []UnplacedPiece, panel Panel, kerf, wastePercent float64) PurchaseEstimate {
	est := PurchaseEstimate{
		PanelTypeID:  panel.ID,
		PanelArea:    panel.Area(),
		WastePercent: wastePercent,
	}
	for _, u := range unplaced {
		if u.Reason != ReasonInsufficientStock {
			continue
		}
		est.Units++
		est.PieceArea += (u.Width + kerf) * (u.Height + kerf)
	}
	if est.Units == 0 || est.PanelArea <= 0 {
		return est
	}

	est.PanelsNeededExact = est.PieceArea / est.PanelArea
	est.PanelsNeededMin = int(math.Ceil(est.PanelsNeededExact))
	est.PanelsWithWaste = max(est.PanelsNeededMin, int(math.Ceil(est.PanelsNeededExact*(1+wastePercent/100))))
	est.EstimatedCost = float64(est.PanelsWithWaste) * panel.Price()
	return est
}
