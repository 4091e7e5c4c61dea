package engine

import (
	"cmp"
	"context"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/piwi3910/PanelCut/internal/geometry"
	"github.com/piwi3910/PanelCut/internal/model"
	"github.com/piwi3910/PanelCut/internal/strategy"
)

// allocator drives the packer across the panel inventory. Its stock
// counters are only ever touched by run's sequential loop.
type allocator struct {
	policy  strategy.Policy
	panels  []model.Panel
	kerf    float64
	trim    float64
	workers int
	logger  klog.Logger

	remaining map[string]int // stock left per panel type
	opened    map[string]int // instances opened per panel type
	instances []*panelInstance
}

func newAllocator(policy strategy.Policy, panels []model.Panel, kerf float64, settings model.Settings, logger klog.Logger) *allocator {
	workers := settings.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	a := &allocator{
		policy:    policy,
		panels:    panels,
		kerf:      kerf,
		trim:      settings.EdgeTrim,
		workers:   workers,
		logger:    logger,
		remaining: make(map[string]int, len(panels)),
		opened:    make(map[string]int, len(panels)),
	}
	for _, p := range panels {
		a.remaining[p.ID] = p.StockQuantity
	}
	return a
}

// runResult is what the allocator hands to the result builder.
type runResult struct {
	plans     []model.CuttingPlan
	unplaced  []model.UnplacedPiece
	cancelled bool
}

// run places every unit it can. Units are attempted in policy order; the
// context is checked before each one and, once done, every unit not yet
// attempted is reported as cancelled.
func (a *allocator) run(ctx context.Context, units []model.PieceUnit) runResult {
	ordered := a.policy.OrderPieces(units)
	reasons := a.precheck(ordered)

	var res runResult
	for i, u := range ordered {
		if ctx.Err() != nil {
			res.cancelled = true
			for _, rest := range ordered[i:] {
				res.unplaced = append(res.unplaced, unplacedUnit(rest, model.ReasonCancelled))
			}
			break
		}

		if reason, bad := reasons[u.Piece.ID]; bad {
			res.unplaced = append(res.unplaced, unplacedUnit(u, reason))
			continue
		}

		rest := ordered[i+1:]
		if c, ok := findFit(a.instances, u, a.policy); ok {
			place(c, u, a.policy, a.kerf)
			a.closeIfDone(c.inst, rest)
			continue
		}

		panel, ok := a.selectPanelType(ctx, u, rest)
		if !ok {
			res.unplaced = append(res.unplaced, unplacedUnit(u, model.ReasonInsufficientStock))
			continue
		}
		inst, ok := a.placeOnNew(panel, u)
		if !ok {
			res.unplaced = append(res.unplaced, unplacedUnit(u, model.ReasonPieceTooLarge))
			continue
		}
		a.closeIfDone(inst, rest)
	}

	res.plans = make([]model.CuttingPlan, 0, len(a.instances))
	for _, inst := range a.instances {
		res.plans = append(res.plans, closeInstance(inst))
	}
	return res
}

func (a *allocator) open(panel model.Panel) *panelInstance {
	a.remaining[panel.ID]--
	a.opened[panel.ID]++
	inst := openPanelInstance(panel, len(a.instances), a.opened[panel.ID], a.trim)
	a.instances = append(a.instances, inst)
	a.logger.V(4).Info("Opened panel instance", "instance", inst.id, "stockLeft", a.remaining[panel.ID])
	return inst
}

// placeOnNew opens an instance of panel for u. selectPanelType only offers
// types that admit u on an empty instance; should the placement fail anyway,
// the instance is handed back so no empty panel is charged.
func (a *allocator) placeOnNew(panel model.Panel, u model.PieceUnit) (*panelInstance, bool) {
	inst := a.open(panel)
	if tryPlace(inst, u, a.policy, a.kerf) {
		return inst, true
	}
	a.instances = a.instances[:len(a.instances)-1]
	a.remaining[panel.ID]++
	a.opened[panel.ID]--
	a.logger.V(4).Info("Released unused panel instance", "instance", inst.id, "piece", u.Piece.ID, "unit", u.Unit)
	return nil, false
}

func (a *allocator) closeIfDone(inst *panelInstance, rest []model.PieceUnit) {
	if accepts(inst, rest, a.policy) {
		return
	}
	plan := closeInstance(inst)
	a.logger.V(4).Info("Closed panel instance", "instance", inst.id, "placements", len(plan.Placements), "efficiency", plan.Efficiency)
}

// precheck classifies every piece that can never be placed, whatever the
// stock situation during the run. Zero-stock panel types count here so that
// a piece which would only fit on them is reported as a stock problem.
func (a *allocator) precheck(units []model.PieceUnit) map[string]model.Reason {
	reasons := make(map[string]model.Reason)
	checked := make(map[string]bool)
	for _, u := range units {
		if checked[u.Piece.ID] {
			continue
		}
		checked[u.Piece.ID] = true
		if reason, bad := a.admissibility(u.Piece); bad {
			reasons[u.Piece.ID] = reason
		}
	}
	return reasons
}

func (a *allocator) admissibility(piece model.Piece) (model.Reason, bool) {
	if len(a.panels) == 0 {
		return model.ReasonInsufficientStock, true
	}
	var geometric, material, allowed, stocked bool
	for _, panel := range a.panels {
		usable, ok := geometry.UsableArea(panel.Width, panel.Height, a.trim)
		if !ok || !geometry.Fits(usable, piece.Width, piece.Height, true).OK {
			continue
		}
		geometric = true
		if !panel.MaterialMatches(piece.Material) {
			continue
		}
		material = true
		if !fitIn(usable, piece, panel.Grain, a.policy).OK {
			continue
		}
		allowed = true
		if panel.StockQuantity > 0 {
			stocked = true
		}
	}
	switch {
	case !geometric:
		return model.ReasonPieceTooLarge, true
	case !material:
		return model.ReasonMaterialMismatch, true
	case !allowed:
		return model.ReasonGrainMismatch, true
	case !stocked:
		return model.ReasonInsufficientStock, true
	}
	return "", false
}

// admits reports whether an empty instance of panel can take piece.
func (a *allocator) admits(panel model.Panel, piece model.Piece) bool {
	if !panel.MaterialMatches(piece.Material) {
		return false
	}
	usable, ok := geometry.UsableArea(panel.Width, panel.Height, a.trim)
	return ok && fitIn(usable, piece, panel.Grain, a.policy).OK
}

// selectPanelType picks the panel type to open for u: the smallest admissible
// type with stock left. Types tied on area are compared by projected waste,
// then price per area, then ID.
func (a *allocator) selectPanelType(ctx context.Context, u model.PieceUnit, rest []model.PieceUnit) (model.Panel, bool) {
	var candidates []model.Panel
	for _, p := range a.panels {
		if a.remaining[p.ID] > 0 && a.admits(p, u.Piece) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return model.Panel{}, false
	}

	slices.SortFunc(candidates, func(x, y model.Panel) int {
		return cmp.Or(cmp.Compare(x.Area(), y.Area()), cmp.Compare(x.ID, y.ID))
	})
	tied := candidates[:1]
	for _, p := range candidates[1:] {
		if !geometry.Equal(p.Area(), candidates[0].Area()) {
			break
		}
		tied = append(tied, p)
	}
	if len(tied) == 1 {
		return tied[0], true
	}

	waste := a.projectWaste(ctx, tied, append([]model.PieceUnit{u}, rest...))
	best := 0
	for i := 1; i < len(tied); i++ {
		if betterType(tied[i], waste[i], tied[best], waste[best]) {
			best = i
		}
	}
	a.logger.V(4).Info("Selected panel type", "piece", u.Piece.ID, "unit", u.Unit, "panel", tied[best].ID, "projectedWaste", waste[best], "tied", len(tied))
	return tied[best], true
}

func betterType(p model.Panel, waste float64, than model.Panel, thanWaste float64) bool {
	if !geometry.Equal(waste, thanWaste) {
		return waste < thanWaste
	}
	if p.PricePerArea != than.PricePerArea {
		return p.PricePerArea < than.PricePerArea
	}
	return p.ID < than.ID
}

// projectWaste trial-packs units onto a fresh instance of each panel type and
// returns the area each would leave unassigned. Trials run in parallel on
// private state; results land in their own slot so the reduction does not
// depend on finishing order.
func (a *allocator) projectWaste(ctx context.Context, panels []model.Panel, units []model.PieceUnit) []float64 {
	waste := make([]float64, len(panels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, panel := range panels {
		g.Go(func() error {
			waste[i] = a.trialPack(gctx, panel, units)
			return nil
		})
	}
	_ = g.Wait()
	return waste
}

func (a *allocator) trialPack(ctx context.Context, panel model.Panel, units []model.PieceUnit) float64 {
	inst := openPanelInstance(panel, 0, 1, a.trim)
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		tryPlace(inst, u, a.policy, a.kerf)
	}
	return panel.Area() - inst.usedArea
}

func unplacedUnit(u model.PieceUnit, reason model.Reason) model.UnplacedPiece {
	return model.UnplacedPiece{
		PieceID: u.Piece.ID,
		Label:   u.Piece.Label,
		Unit:    u.Unit,
		Width:   u.Piece.Width,
		Height:  u.Piece.Height,
		Reason:  reason,
	}
}
