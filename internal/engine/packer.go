package engine

import (
	"fmt"
	"slices"

	"github.com/piwi3910/PanelCut/internal/geometry"
	"github.com/piwi3910/PanelCut/internal/model"
	"github.com/piwi3910/PanelCut/internal/strategy"
)

// instanceState tracks the lifecycle of one opened panel.
type instanceState int

const (
	stateEmpty instanceState = iota
	statePartial
	stateClosed
)

func (s instanceState) String() string {
	switch s {
	case stateEmpty:
		return "EMPTY"
	case statePartial:
		return "PARTIALLY_FILLED"
	default:
		return "CLOSED"
	}
}

// panelInstance is the packing state of one physical panel. Free space is an
// arena of rectangles: a placement removes the rectangle it consumed and
// appends whatever the guillotine split leaves over.
type panelInstance struct {
	panel      model.Panel
	id         string
	ordinal    int
	state      instanceState
	free       []model.Rect
	placements []model.Placement
	cuts       []model.Cut
	usedArea   float64
	plan       model.CuttingPlan
}

// openPanelInstance starts a fresh instance of panel. Its single free
// rectangle is the panel minus trim on every edge; the trim cuts themselves
// are recorded against the instance.
func openPanelInstance(panel model.Panel, ordinal, seq int, trim float64) *panelInstance {
	inst := &panelInstance{
		panel:   panel,
		id:      fmt.Sprintf("%s#%d", panel.ID, seq),
		ordinal: ordinal,
		state:   stateEmpty,
	}
	if usable, ok := geometry.UsableArea(panel.Width, panel.Height, trim); ok {
		inst.free = []model.Rect{usable}
	}
	inst.cuts = geometry.TrimCuts(panel.Width, panel.Height, trim)
	return inst
}

// candidate is a free rectangle that admits a given unit.
type candidate struct {
	inst  *panelInstance
	index int
	fit   geometry.Fit
}

// fitIn tests a piece against one free rectangle of a panel with the given
// grain, honouring the orientations the policy allows.
func fitIn(free model.Rect, piece model.Piece, panelGrain model.Grain, policy strategy.Policy) geometry.Fit {
	normal, rotated := policy.Orientations(piece.Grain, panelGrain)
	switch {
	case normal:
		return geometry.Fits(free, piece.Width, piece.Height, rotated)
	case rotated && geometry.FitsOriented(free, piece.Width, piece.Height, true):
		return geometry.Fit{OK: true, Rotated: true}
	}
	return geometry.Fit{}
}

// findFit searches the free rectangles of every given instance in policy
// order and returns the first that admits the unit.
func findFit(instances []*panelInstance, unit model.PieceUnit, policy strategy.Policy) (candidate, bool) {
	var rects []model.FreeRect
	byOrdinal := make(map[int]*panelInstance, len(instances))
	for _, inst := range instances {
		if inst.state == stateClosed || !inst.panel.MaterialMatches(unit.Piece.Material) {
			continue
		}
		byOrdinal[inst.ordinal] = inst
		for i, r := range inst.free {
			rects = append(rects, model.FreeRect{Rect: r, Instance: inst.ordinal, Index: i})
		}
	}
	if len(rects) == 0 {
		return candidate{}, false
	}
	policy.OrderFreeRects(rects)
	for _, fr := range rects {
		inst := byOrdinal[fr.Instance]
		if fit := fitIn(fr.Rect, unit.Piece, inst.panel.Grain, policy); fit.OK {
			return candidate{inst: inst, index: fr.Index, fit: fit}, true
		}
	}
	return candidate{}, false
}

// tryPlace places unit on inst if any of its free rectangles admits it.
func tryPlace(inst *panelInstance, unit model.PieceUnit, policy strategy.Policy, kerf float64) bool {
	c, ok := findFit([]*panelInstance{inst}, unit, policy)
	if !ok {
		return false
	}
	place(c, unit, policy, kerf)
	return true
}

// place commits a candidate: the piece goes in the top-left corner of the
// chosen rectangle and the rectangle is split around it.
func place(c candidate, unit model.PieceUnit, policy strategy.Policy, kerf float64) model.Placement {
	inst := c.inst
	free := inst.free[c.index]
	w := c.fit.Width(unit.Piece.Width, unit.Piece.Height)
	h := c.fit.Height(unit.Piece.Width, unit.Piece.Height)

	p := model.Placement{
		PieceID:         unit.Piece.ID,
		Label:           unit.Piece.Label,
		Unit:            unit.Unit,
		PanelInstanceID: inst.id,
		X:               free.X,
		Y:               free.Y,
		Width:           w,
		Height:          h,
		Rotated:         c.fit.Rotated,
	}

	split := geometry.SplitRect(free, w, h, kerf, policy.HorizontalFirst(free, w, h))
	inst.free = slices.Delete(inst.free, c.index, c.index+1)
	inst.free = append(inst.free, split.Rects...)
	inst.cuts = append(inst.cuts, split.Cuts...)
	inst.placements = append(inst.placements, p)
	inst.usedArea += p.Area()
	inst.state = statePartial
	return p
}

// accepts reports whether any of units could still go on inst.
func accepts(inst *panelInstance, units []model.PieceUnit, policy strategy.Policy) bool {
	if inst.state == stateClosed {
		return false
	}
	for _, u := range units {
		if !inst.panel.MaterialMatches(u.Piece.Material) {
			continue
		}
		for _, r := range inst.free {
			if fitIn(r, u.Piece, inst.panel.Grain, policy).OK {
				return true
			}
		}
	}
	return false
}

// closeInstance finalizes the instance into its cutting plan. Further
// placements on a closed instance are never attempted.
func closeInstance(inst *panelInstance) model.CuttingPlan {
	if inst.state == stateClosed {
		return inst.plan
	}
	inst.state = stateClosed

	var length float64
	for _, c := range inst.cuts {
		length += c.Length()
	}
	panelArea := inst.panel.Area()
	efficiency := 0.0
	if panelArea > 0 {
		efficiency = inst.usedArea / panelArea * 100
	}

	inst.plan = model.CuttingPlan{
		PanelTypeID:     inst.panel.ID,
		PanelInstanceID: inst.id,
		PanelLabel:      inst.panel.Label,
		Material:        inst.panel.Material,
		PanelWidth:      inst.panel.Width,
		PanelHeight:     inst.panel.Height,
		Placements:      inst.placements,
		Cuts:            inst.cuts,
		Offcuts:         model.DetectOffcuts(inst.free),
		UsedArea:        inst.usedArea,
		PanelArea:       panelArea,
		CuttingLength:   length,
		Efficiency:      efficiency,
	}
	if inst.plan.Placements == nil {
		inst.plan.Placements = []model.Placement{}
	}
	if inst.plan.Cuts == nil {
		inst.plan.Cuts = []model.Cut{}
	}
	return inst.plan
}
