// Package strategy implements the piece sequencing and free-space preference
// rules behind each model.Strategy. Every ordering is total, so identical
// input always yields identical plans.
package strategy

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/piwi3910/PanelCut/internal/geometry"
	"github.com/piwi3910/PanelCut/internal/model"
)

// Policy is the set of decisions a strategy makes for the packer.
type Policy interface {
	Strategy() model.Strategy
	// OrderPieces returns the units in placement order. The input is not modified.
	OrderPieces(units []model.PieceUnit) []model.PieceUnit
	// OrderFreeRects sorts candidate free rectangles in place, most preferred first.
	OrderFreeRects(rects []model.FreeRect)
	// Orientations reports which orientations a piece may take on a panel.
	Orientations(pieceGrain, panelGrain model.Grain) (normal, rotated bool)
	// HorizontalFirst picks the direction of the first guillotine cut after
	// placing a w x h piece in free.
	HorizontalFirst(free model.Rect, w, h float64) bool
}

// For returns the policy implementing s.
func For(s model.Strategy) (Policy, error) {
	switch s {
	case model.StrategyLengthFirst:
		return lengthFirst{}, nil
	case model.StrategyWidthFirst:
		return widthFirst{}, nil
	case model.StrategyWasteMinimize:
		return wasteMinimize{}, nil
	case model.StrategyGrainRespect:
		return grainRespect{}, nil
	}
	return nil, &model.Error{
		Code:    model.CodeStrategyNotSupported,
		Field:   "strategy",
		Message: fmt.Sprintf("unsupported strategy %q", string(s)),
	}
}

// lengthFirst sorts by the long axis and rips full-length strips first.
type lengthFirst struct{}

func (lengthFirst) Strategy() model.Strategy { return model.StrategyLengthFirst }

func (lengthFirst) OrderPieces(units []model.PieceUnit) []model.PieceUnit {
	return sortUnits(units, func(a, b model.PieceUnit) int {
		return cmp.Or(
			cmp.Compare(b.Piece.Width, a.Piece.Width),
			cmp.Compare(b.Piece.Height, a.Piece.Height),
		)
	})
}

func (lengthFirst) OrderFreeRects(rects []model.FreeRect) {
	slices.SortFunc(rects, func(a, b model.FreeRect) int {
		return cmp.Or(
			cmp.Compare(a.Instance, b.Instance),
			cmp.Compare(a.Y, b.Y),
			cmp.Compare(a.X, b.X),
			cmp.Compare(a.Index, b.Index),
		)
	})
}

func (lengthFirst) Orientations(pieceGrain, panelGrain model.Grain) (bool, bool) {
	return model.CanPlaceWithGrain(pieceGrain, panelGrain)
}

func (lengthFirst) HorizontalFirst(model.Rect, float64, float64) bool { return true }

// widthFirst mirrors lengthFirst along the panel's width axis.
type widthFirst struct{}

func (widthFirst) Strategy() model.Strategy { return model.StrategyWidthFirst }

func (widthFirst) OrderPieces(units []model.PieceUnit) []model.PieceUnit {
	return sortUnits(units, func(a, b model.PieceUnit) int {
		return cmp.Or(
			cmp.Compare(b.Piece.Height, a.Piece.Height),
			cmp.Compare(b.Piece.Width, a.Piece.Width),
		)
	})
}

func (widthFirst) OrderFreeRects(rects []model.FreeRect) {
	slices.SortFunc(rects, func(a, b model.FreeRect) int {
		return cmp.Or(
			cmp.Compare(a.Instance, b.Instance),
			cmp.Compare(a.X, b.X),
			cmp.Compare(a.Y, b.Y),
			cmp.Compare(a.Index, b.Index),
		)
	})
}

func (widthFirst) Orientations(pieceGrain, panelGrain model.Grain) (bool, bool) {
	return model.CanPlaceWithGrain(pieceGrain, panelGrain)
}

func (widthFirst) HorizontalFirst(model.Rect, float64, float64) bool { return false }

// wasteMinimize is best-fit decreasing by area across every open instance.
type wasteMinimize struct{}

func (wasteMinimize) Strategy() model.Strategy { return model.StrategyWasteMinimize }

func (wasteMinimize) OrderPieces(units []model.PieceUnit) []model.PieceUnit {
	return sortUnits(units, func(a, b model.PieceUnit) int {
		return cmp.Or(
			cmp.Compare(b.Piece.Area(), a.Piece.Area()),
			cmp.Compare(longSide(b.Piece), longSide(a.Piece)),
		)
	})
}

// OrderFreeRects puts the smallest rectangles first. The first one that
// admits a piece is then the one leaving the least area behind.
func (wasteMinimize) OrderFreeRects(rects []model.FreeRect) {
	slices.SortFunc(rects, func(a, b model.FreeRect) int {
		return cmp.Or(
			cmp.Compare(a.Area(), b.Area()),
			cmp.Compare(a.Instance, b.Instance),
			cmp.Compare(a.Y, b.Y),
			cmp.Compare(a.X, b.X),
			cmp.Compare(a.Index, b.Index),
		)
	})
}

func (wasteMinimize) Orientations(pieceGrain, panelGrain model.Grain) (bool, bool) {
	return model.CanPlaceWithGrain(pieceGrain, panelGrain)
}

func (wasteMinimize) HorizontalFirst(free model.Rect, w, h float64) bool {
	return geometry.PreferHorizontal(free, w, h)
}

// grainRespect sequences like wasteMinimize but never rotates anything that
// involves grain, on either side.
type grainRespect struct {
	wasteMinimize
}

func (grainRespect) Strategy() model.Strategy { return model.StrategyGrainRespect }

func (grainRespect) Orientations(pieceGrain, panelGrain model.Grain) (bool, bool) {
	if pieceGrain == model.GrainNone && panelGrain == model.GrainNone {
		return true, true
	}
	if pieceGrain != model.GrainNone && panelGrain != model.GrainNone && pieceGrain != panelGrain {
		return false, false
	}
	return true, false
}

// sortUnits copies units and sorts the copy by primary, then piece ID, then unit index.
func sortUnits(units []model.PieceUnit, primary func(a, b model.PieceUnit) int) []model.PieceUnit {
	out := slices.Clone(units)
	slices.SortFunc(out, func(a, b model.PieceUnit) int {
		return cmp.Or(
			primary(a, b),
			cmp.Compare(a.Piece.ID, b.Piece.ID),
			cmp.Compare(a.Unit, b.Unit),
		)
	})
	return out
}

func longSide(p model.Piece) float64 {
	return max(p.Width, p.Height)
}
