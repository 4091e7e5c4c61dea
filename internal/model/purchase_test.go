package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimatePurchase(t *testing.T) {
	panel := Panel{ID: "P", Width: 2000, Height: 1000, PricePerArea: 25}
	unplaced := []UnplacedPiece{
		{PieceID: "A", Width: 997, Height: 497, Reason: ReasonInsufficientStock},
		{PieceID: "A", Unit: 1, Width: 997, Height: 497, Reason: ReasonInsufficientStock},
		{PieceID: "A", Unit: 2, Width: 997, Height: 497, Reason: ReasonInsufficientStock},
		{PieceID: "B", Width: 5000, Height: 5000, Reason: ReasonPieceTooLarge},
	}

	est := EstimatePurchase(unplaced, panel, 3, 15)
	assert.Equal(t, "P", est.PanelTypeID)
	assert.Equal(t, 3, est.Units)
	assert.Equal(t, 1500000.0, est.PieceArea)
	assert.InDelta(t, 0.75, est.PanelsNeededExact, 1e-9)
	assert.Equal(t, 1, est.PanelsNeededMin)
	assert.Equal(t, 1, est.PanelsWithWaste)
	assert.Equal(t, 50.0, est.EstimatedCost)

	est = EstimatePurchase(unplaced, panel, 3, 50)
	assert.Equal(t, 2, est.PanelsWithWaste, "waste factor pushes 0.75 over one panel")
	assert.Equal(t, 100.0, est.EstimatedCost)
}

func TestEstimatePurchase_NothingShort(t *testing.T) {
	est := EstimatePurchase([]UnplacedPiece{{Reason: ReasonGrainMismatch, Width: 10, Height: 10}}, Panel{ID: "P", Width: 10, Height: 10}, 0, 15)
	assert.Zero(t, est.Units)
	assert.Zero(t, est.PanelsWithWaste)

	est = EstimatePurchase([]UnplacedPiece{{Reason: ReasonInsufficientStock, Width: 10, Height: 10}}, Panel{ID: "P"}, 0, 15)
	assert.Equal(t, 1, est.Units)
	assert.Zero(t, est.PanelsNeededMin, "a zero-area panel cannot be counted")
}
