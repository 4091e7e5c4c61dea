package engine

import (
	"time"

	"github.com/piwi3910/PanelCut/internal/model"
)

// buildResult aggregates the per-instance plans into run-level metrics.
func buildResult(s model.Strategy, kerf float64, panels []model.Panel, run runResult, elapsed time.Duration) model.OptimizationResult {
	res := model.OptimizationResult{
		Strategy:        s,
		KerfWidth:       kerf,
		PanelsUsed:      make(map[string]int),
		CuttingPlans:    run.plans,
		UnplacedPieces:  run.unplaced,
		ExecutionTimeMs: float64(elapsed.Microseconds()) / 1000,
	}
	if res.CuttingPlans == nil {
		res.CuttingPlans = []model.CuttingPlan{}
	}
	if res.UnplacedPieces == nil {
		res.UnplacedPieces = []model.UnplacedPiece{}
	}

	var used, total float64
	for _, plan := range res.CuttingPlans {
		res.PanelsUsed[plan.PanelTypeID]++
		res.TotalCuttingLength += plan.CuttingLength
		used += plan.UsedArea
		total += plan.PanelArea
	}
	// Summed in inventory order so the float total is reproducible.
	for _, p := range panels {
		res.TotalCost += float64(res.PanelsUsed[p.ID]) * p.Price()
	}

	res.Efficiency, res.WastePercentage = efficiency(used, total)
	return res
}

// efficiency returns the used share of total as a percentage, and its
// complement, both clamped to [0, 100]. Nothing opened means nothing used.
func efficiency(used, total float64) (eff, waste float64) {
	if total <= 0 {
		return 0, 100
	}
	eff = clampPercent(used / total * 100)
	return eff, 100 - eff
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
